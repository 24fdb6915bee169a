package reconstruct

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testParams() Params {
	return Params{
		Inactivity:    35 * time.Minute,
		MaxGap:        30 * time.Minute,
		LastPageDwell: 30 * time.Second,
	}
}

func at(offset time.Duration) time.Time {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	return base.Add(offset)
}

func TestReconstruct(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		day := Reconstruct(nil, testParams())
		assert.Empty(t, day.Sessions)
		assert.Zero(t, day.ObservedSeconds)
		assert.Zero(t, day.EstimatedSeconds)
	})

	t.Run("single event observes nothing", func(t *testing.T) {
		day := Reconstruct([]time.Time{at(0)}, testParams())
		assert.Len(t, day.Sessions, 1)
		assert.EqualValues(t, 0, day.ObservedSeconds)
		assert.EqualValues(t, 30, day.EstimatedSeconds)
	})

	t.Run("close events accumulate observed gaps", func(t *testing.T) {
		day := Reconstruct([]time.Time{at(0), at(10 * time.Second), at(50 * time.Second)}, testParams())
		assert.Len(t, day.Sessions, 1)
		assert.EqualValues(t, 50, day.ObservedSeconds)
		assert.EqualValues(t, 80, day.EstimatedSeconds)
	})

	t.Run("inactivity gap splits sessions", func(t *testing.T) {
		day := Reconstruct([]time.Time{at(0), at(40 * time.Minute)}, testParams())
		assert.Len(t, day.Sessions, 2)
		// Both sessions are single-event: nothing observed, dwell estimated twice.
		assert.EqualValues(t, 0, day.ObservedSeconds)
		assert.EqualValues(t, 60, day.EstimatedSeconds)
	})

	t.Run("gap at the inactivity boundary stays one session", func(t *testing.T) {
		day := Reconstruct([]time.Time{at(0), at(35 * time.Minute)}, testParams())
		assert.Len(t, day.Sessions, 1)
	})

	t.Run("in-session gap is capped", func(t *testing.T) {
		p := testParams()
		p.Inactivity = 2 * time.Hour
		p.MaxGap = 30 * time.Minute
		day := Reconstruct([]time.Time{at(0), at(90 * time.Minute)}, p)
		assert.Len(t, day.Sessions, 1)
		assert.EqualValues(t, 1800, day.ObservedSeconds)
	})
}

func TestAggregateDay(t *testing.T) {
	p := testParams()

	engaged := Reconstruct([]time.Time{at(0), at(10 * time.Second), at(50 * time.Second)}, p)
	bounce := Reconstruct([]time.Time{at(0)}, p)

	m := AggregateDay([]VisitorDay{engaged, bounce})

	// The bounce visitor observed nothing and is filtered out entirely.
	assert.EqualValues(t, 1, m.Visitors)
	assert.EqualValues(t, 1, m.Sessions)
	assert.EqualValues(t, 50, m.ObservedSeconds)
	assert.EqualValues(t, 80, m.EstimatedSeconds)
	assert.InDelta(t, 80.0, m.AvgSecondsPerVisitor, 0.001)
}

func TestAggregateDayNoQualifyingVisitors(t *testing.T) {
	bounce := Reconstruct([]time.Time{at(0)}, testParams())
	m := AggregateDay([]VisitorDay{bounce})
	assert.Zero(t, m.Visitors)
	assert.Zero(t, m.AvgSecondsPerVisitor)
}

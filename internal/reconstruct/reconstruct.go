// Package reconstruct rebuilds sessions and time-on-site from sparse event
// timestamps. The client beacon has no reliable close signal, so dwell time
// is reconstructed from inter-event gaps after the fact.
package reconstruct

import "time"

// SessionSpan is one reconstructed session.
type SessionSpan struct {
	Start            time.Time
	End              time.Time
	Events           int
	ObservedSeconds  int64
	EstimatedSeconds int64
}

// VisitorDay is the reconstruction outcome for one visitor's day.
type VisitorDay struct {
	Sessions         []SessionSpan
	ObservedSeconds  int64
	EstimatedSeconds int64
}

// Params are the tenant tunables the algorithm depends on.
type Params struct {
	Inactivity    time.Duration // gap that splits sessions
	MaxGap        time.Duration // per-gap contribution cap
	LastPageDwell time.Duration // fixed estimate added once per session
}

// Reconstruct splits one visitor's chronologically sorted timestamps into
// sessions and computes both dwell metrics. Observed seconds is the
// capped-gap sum only; a single-event session observes nothing. Estimated
// seconds adds the last-page dwell once per session, so single-event sessions
// do not vanish from averages. Pure and side-effect free.
func Reconstruct(timestamps []time.Time, p Params) VisitorDay {
	var day VisitorDay
	if len(timestamps) == 0 {
		return day
	}

	sessionStart := 0
	for i := 1; i <= len(timestamps); i++ {
		if i < len(timestamps) && timestamps[i].Sub(timestamps[i-1]) <= p.Inactivity {
			continue
		}
		span := reconstructSession(timestamps[sessionStart:i], p)
		day.Sessions = append(day.Sessions, span)
		day.ObservedSeconds += span.ObservedSeconds
		day.EstimatedSeconds += span.EstimatedSeconds
		sessionStart = i
	}

	return day
}

func reconstructSession(timestamps []time.Time, p Params) SessionSpan {
	span := SessionSpan{
		Start:  timestamps[0],
		End:    timestamps[len(timestamps)-1],
		Events: len(timestamps),
	}

	for i := 1; i < len(timestamps); i++ {
		gap := timestamps[i].Sub(timestamps[i-1])
		if gap > p.MaxGap {
			gap = p.MaxGap
		}
		span.ObservedSeconds += int64(gap.Seconds())
	}

	span.EstimatedSeconds = span.ObservedSeconds + int64(p.LastPageDwell.Seconds())
	return span
}

// DayMetrics aggregates per-visitor reconstructions into day totals.
type DayMetrics struct {
	Visitors             int64 // visitors passing the minimum-dwell filter
	Sessions             int64 // sessions of those visitors
	ObservedSeconds      int64
	EstimatedSeconds     int64
	AvgSecondsPerVisitor float64
}

// minObservedSeconds is the minimum-dwell filter: a visitor counts toward the
// day only with at least one observed second.
const minObservedSeconds = 1

// AggregateDay folds per-visitor reconstructions into the day averages. Only
// visitors passing the observed-seconds filter contribute, but their
// estimated seconds (last-page dwell included) feed the average.
func AggregateDay(visitorDays []VisitorDay) DayMetrics {
	var m DayMetrics
	for _, vd := range visitorDays {
		if vd.ObservedSeconds < minObservedSeconds {
			continue
		}
		m.Visitors++
		m.Sessions += int64(len(vd.Sessions))
		m.ObservedSeconds += vd.ObservedSeconds
		m.EstimatedSeconds += vd.EstimatedSeconds
	}
	if m.Visitors > 0 {
		m.AvgSecondsPerVisitor = float64(m.EstimatedSeconds) / float64(m.Visitors)
	}
	return m
}

package botscore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func defaultThresholds() Thresholds {
	return Thresholds{
		PvRate10s:       10,
		PvCount5m:       120,
		StddevMs:        400,
		MinEngagementMs: 2000,
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name    string
		sample  Sample
		reasons []string
	}{
		{
			name:    "clean engaged visitor",
			sample:  Sample{PvCount10s: 2, PvCount5m: 8, InteractionCount: 3, EngagementMs: 45000},
			reasons: nil,
		},
		{
			name:    "burst rate",
			sample:  Sample{PvCount10s: 10, InteractionCount: 1},
			reasons: []string{ReasonVeryHighPvRate},
		},
		{
			name:    "sustained volume",
			sample:  Sample{PvCount5m: 120, InteractionCount: 1},
			reasons: []string{ReasonExtremePvShortTime},
		},
		{
			name:    "metronome intervals",
			sample:  Sample{IntervalStddevMs: 120, InteractionCount: 1},
			reasons: []string{ReasonPeriodicPattern},
		},
		{
			name:    "zero stddev is uninformative, not periodic",
			sample:  Sample{IntervalStddevMs: 0, InteractionCount: 1},
			reasons: nil,
		},
		{
			name:    "no interaction and no dwell",
			sample:  Sample{InteractionCount: 0, EngagementMs: 1999},
			reasons: []string{ReasonNoInteraction},
		},
		{
			name:    "no interaction but enough dwell",
			sample:  Sample{InteractionCount: 0, EngagementMs: 2000},
			reasons: nil,
		},
		{
			name:    "declared crawler",
			sample:  Sample{BotUserAgent: true, InteractionCount: 1},
			reasons: []string{ReasonBotUserAgent},
		},
		{
			name: "rules accumulate",
			sample: Sample{
				PvCount10s:       15,
				PvCount5m:        300,
				IntervalStddevMs: 50,
				BotUserAgent:     true,
			},
			reasons: []string{
				ReasonVeryHighPvRate,
				ReasonExtremePvShortTime,
				ReasonPeriodicPattern,
				ReasonNoInteraction,
				ReasonBotUserAgent,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.sample, defaultThresholds())
			assert.Equal(t, tt.reasons, got.Reasons)
			assert.Equal(t, len(tt.reasons), got.BotScore)
			assert.Equal(t, len(tt.reasons) > 0, got.IsSuspicious)
		})
	}
}

func TestIntervalStddev(t *testing.T) {
	t.Run("too few samples", func(t *testing.T) {
		assert.Zero(t, IntervalStddev([]int64{0, 1000, 2000, 3000, 4000}))
	})

	t.Run("perfectly periodic", func(t *testing.T) {
		assert.Zero(t, IntervalStddev([]int64{0, 1000, 2000, 3000, 4000, 5000}))
	})

	t.Run("human jitter", func(t *testing.T) {
		got := IntervalStddev([]int64{0, 900, 2400, 3100, 5600, 6200})
		assert.Greater(t, got, 400.0)
	})
}

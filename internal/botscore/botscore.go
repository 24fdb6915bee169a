// Package botscore flags suspicious traffic. Scoring is a pure decision
// table: it annotates, never rejects, and every rule can trigger
// independently. False positives are absorbed downstream by soft-mode
// inclusion rather than silent drops.
package botscore

import "math"

// Reasons emitted by the decision table.
const (
	ReasonVeryHighPvRate     = "very_high_pv_rate"
	ReasonExtremePvShortTime = "extreme_pv_short_time"
	ReasonPeriodicPattern    = "periodic_pattern"
	ReasonNoInteraction      = "no_interaction"
	ReasonBotUserAgent       = "bot_user_agent"
)

// Sample is everything the scorer looks at for one event.
type Sample struct {
	PvCount10s       int64
	PvCount5m        int64
	IntervalStddevMs float64 // 0 when uninformative (< 5 samples)
	InteractionCount int64
	EngagementMs     int64
	BotUserAgent     bool
}

// Thresholds are the tenant's scoring tunables.
type Thresholds struct {
	PvRate10s       int
	PvCount5m       int
	StddevMs        int
	MinEngagementMs int
}

// Result is the scorer's annotation for an event.
type Result struct {
	IsSuspicious bool     `json:"is_suspicious"`
	BotScore     int      `json:"bot_score"`
	Reasons      []string `json:"reasons"`
}

// Score evaluates the decision table. Reasons accumulate; the score is the
// number of triggered rules.
func Score(s Sample, t Thresholds) Result {
	var reasons []string

	if s.PvCount10s >= int64(t.PvRate10s) {
		reasons = append(reasons, ReasonVeryHighPvRate)
	}
	if s.PvCount5m >= int64(t.PvCount5m) {
		reasons = append(reasons, ReasonExtremePvShortTime)
	}
	if s.IntervalStddevMs > 0 && s.IntervalStddevMs < float64(t.StddevMs) {
		reasons = append(reasons, ReasonPeriodicPattern)
	}
	if s.InteractionCount == 0 && s.EngagementMs < int64(t.MinEngagementMs) {
		reasons = append(reasons, ReasonNoInteraction)
	}
	if s.BotUserAgent {
		reasons = append(reasons, ReasonBotUserAgent)
	}

	return Result{
		IsSuspicious: len(reasons) > 0,
		BotScore:     len(reasons),
		Reasons:      reasons,
	}
}

// IntervalStddev computes the standard deviation of inter-event intervals
// from a series of timestamps in milliseconds. With fewer than 5 intervals
// the signal is uninformative and 0 is returned.
func IntervalStddev(timestampsMs []int64) float64 {
	if len(timestampsMs) < 6 {
		return 0
	}

	intervals := make([]float64, 0, len(timestampsMs)-1)
	for i := 1; i < len(timestampsMs); i++ {
		intervals = append(intervals, float64(timestampsMs[i]-timestampsMs[i-1]))
	}

	var sum float64
	for _, iv := range intervals {
		sum += iv
	}
	mean := sum / float64(len(intervals))

	var variance float64
	for _, iv := range intervals {
		variance += (iv - mean) * (iv - mean)
	}
	variance /= float64(len(intervals))

	return math.Sqrt(variance)
}

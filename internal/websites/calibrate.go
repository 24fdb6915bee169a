package websites

import "math"

// ReferenceMetrics is an external measurement of a day's traffic used to
// calibrate the tunables toward convergence.
type ReferenceMetrics struct {
	Visitors         int64   `json:"visitors"`
	Sessions         int64   `json:"sessions"`
	AvgSecondsOnSite float64 `json:"avg_seconds_on_site"`
}

// MeasuredMetrics is what this system computed for the same day.
type MeasuredMetrics struct {
	Visitors         int64   `json:"visitors"`
	Sessions         int64   `json:"sessions"`
	AvgSecondsOnSite float64 `json:"avg_seconds_on_site"`
}

// Calibrate nudges the tunables one bounded step toward the reference
// measurement and clamps every parameter to its valid range. Repeated calls
// converge instead of overshooting; a zero reference leaves the config alone.
func Calibrate(cfg Config, ref ReferenceMetrics, measured MeasuredMetrics) Config {
	// Dwell-time convergence: adjust the constants feeding estimated seconds.
	if ref.AvgSecondsOnSite > 0 && measured.AvgSecondsOnSite > 0 {
		ratio := ref.AvgSecondsOnSite / measured.AvgSecondsOnSite
		cfg.LastPageDwellSeconds = nudgeInt(cfg.LastPageDwellSeconds, ratio)
		cfg.MaxGapSeconds = nudgeInt(cfg.MaxGapSeconds, ratio)
	}

	// Session-count convergence: a longer inactivity window merges sessions,
	// a shorter one splits them.
	if ref.Sessions > 0 && measured.Sessions > 0 {
		ratio := float64(measured.Sessions) / float64(ref.Sessions)
		cfg.InactivityMinutes = nudgeInt(cfg.InactivityMinutes, ratio)
	}

	// Visitor-count convergence: when we count more visitors than the
	// reference, bot filtering is too lax; tighten the thresholds.
	if ref.Visitors > 0 && measured.Visitors > 0 {
		ratio := float64(ref.Visitors) / float64(measured.Visitors)
		cfg.BotPvRate10s = nudgeInt(cfg.BotPvRate10s, ratio)
		cfg.BotPvCount5m = nudgeInt(cfg.BotPvCount5m, ratio)
	}

	cfg.Clamp()
	return cfg
}

// nudgeInt moves v a bounded fraction toward v*ratio. The step is capped at
// 10% per calibration round so noisy references cannot whiplash the config.
func nudgeInt(v int, ratio float64) int {
	const maxStep = 0.10

	if v == 0 || ratio <= 0 {
		return v
	}
	step := ratio - 1
	if step > maxStep {
		step = maxStep
	}
	if step < -maxStep {
		step = -maxStep
	}
	nudged := float64(v) * (1 + step)
	out := int(math.Round(nudged))
	// A sub-unit nudge still moves one step toward the target.
	if out == v && step != 0 {
		if step > 0 {
			out++
		} else {
			out--
		}
	}
	return out
}

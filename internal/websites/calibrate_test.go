package websites

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalibrate(t *testing.T) {
	t.Run("zero reference is a no-op", func(t *testing.T) {
		cfg := DefaultConfig(1)
		got := Calibrate(cfg, ReferenceMetrics{}, MeasuredMetrics{Visitors: 100, Sessions: 50, AvgSecondsOnSite: 60})
		assert.Equal(t, cfg.LastPageDwellSeconds, got.LastPageDwellSeconds)
		assert.Equal(t, cfg.InactivityMinutes, got.InactivityMinutes)
		assert.Equal(t, cfg.BotPvRate10s, got.BotPvRate10s)
	})

	t.Run("longer reference dwell raises the dwell constants", func(t *testing.T) {
		cfg := DefaultConfig(1)
		got := Calibrate(cfg,
			ReferenceMetrics{AvgSecondsOnSite: 120},
			MeasuredMetrics{AvgSecondsOnSite: 60})
		assert.Greater(t, got.LastPageDwellSeconds, cfg.LastPageDwellSeconds)
		assert.Greater(t, got.MaxGapSeconds, cfg.MaxGapSeconds)
	})

	t.Run("step is bounded to ten percent", func(t *testing.T) {
		cfg := DefaultConfig(1)
		got := Calibrate(cfg,
			ReferenceMetrics{AvgSecondsOnSite: 600},
			MeasuredMetrics{AvgSecondsOnSite: 6})
		// A 100x reference mismatch still moves at most one bounded step.
		assert.LessOrEqual(t, got.LastPageDwellSeconds, cfg.LastPageDwellSeconds+cfg.LastPageDwellSeconds/10+1)
	})

	t.Run("more measured sessions than reference lengthens inactivity", func(t *testing.T) {
		cfg := DefaultConfig(1)
		got := Calibrate(cfg,
			ReferenceMetrics{Sessions: 100},
			MeasuredMetrics{Sessions: 140})
		assert.Greater(t, got.InactivityMinutes, cfg.InactivityMinutes)
	})

	t.Run("result is always clamped", func(t *testing.T) {
		cfg := DefaultConfig(1)
		cfg.InactivityMinutes = 120 // already at the ceiling
		got := Calibrate(cfg,
			ReferenceMetrics{Sessions: 10},
			MeasuredMetrics{Sessions: 100})
		assert.LessOrEqual(t, got.InactivityMinutes, 120)
	})

	t.Run("repeated rounds converge instead of oscillating", func(t *testing.T) {
		cfg := DefaultConfig(1)
		ref := ReferenceMetrics{AvgSecondsOnSite: 45}
		for i := 0; i < 20; i++ {
			measured := MeasuredMetrics{AvgSecondsOnSite: float64(cfg.LastPageDwellSeconds)}
			cfg = Calibrate(cfg, ref, measured)
		}
		assert.InDelta(t, 45, cfg.LastPageDwellSeconds, 5)
	})
}

func TestConfigClamp(t *testing.T) {
	cfg := DefaultConfig(1)
	cfg.InactivityMinutes = 1000
	cfg.LastPageDwellSeconds = -5
	cfg.HeartbeatMs = 0
	cfg.Clamp()

	assert.Equal(t, 120, cfg.InactivityMinutes)
	assert.Equal(t, 0, cfg.LastPageDwellSeconds)
	assert.Greater(t, cfg.HeartbeatMs, 0)
}

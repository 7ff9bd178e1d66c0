package intervals

import (
	"fmt"
	"math"
)

// RestingPolicy selects how samples are classified as resting.
type RestingPolicy string

const (
	RestingPolicySpeed         RestingPolicy = "speed"
	RestingPolicySpeedOrStride RestingPolicy = "speed_or_stride"
)

// Config controls segmentation thresholds and derived-metric options.
// The zero value is not usable; start from DefaultConfig.
type Config struct {
	EffortDistanceM          float64  `json:"effort_distance_m" mapstructure:"effort_distance_m"`
	RecoveryDistanceM        float64  `json:"recovery_distance_m" mapstructure:"recovery_distance_m"`
	RestingSpeedThresholdKmh float64  `json:"resting_speed_threshold_kmh" mapstructure:"resting_speed_threshold_kmh"`
	RestingStrideThresholdMM *float64 `json:"resting_stride_threshold_mm,omitempty" mapstructure:"resting_stride_threshold_mm"`
	MaxCycles                int      `json:"max_cycles" mapstructure:"max_cycles"`
	HalfSplitCycleCount      int      `json:"half_split_cycle_count" mapstructure:"half_split_cycle_count"`
	SearchTriggerMarginM     float64  `json:"search_trigger_margin_m" mapstructure:"search_trigger_margin_m"`
	ConfirmationMarginM      float64  `json:"confirmation_margin_m" mapstructure:"confirmation_margin_m"`
	TopNCorrelations         int      `json:"top_n_correlations" mapstructure:"top_n_correlations"`

	// Moving-time detection: a gap of at least PauseMinGapS seconds covering
	// at most PauseMaxDistanceM metres is treated as a pause.
	PauseMinGapS      float64 `json:"pause_min_gap_s" mapstructure:"pause_min_gap_s"`
	PauseMaxDistanceM float64 `json:"pause_max_distance_m" mapstructure:"pause_max_distance_m"`
}

// DefaultConfig returns the nominal 200 m effort / 100 m recovery setup.
func DefaultConfig() Config {
	return Config{
		EffortDistanceM:          200,
		RecoveryDistanceM:        100,
		RestingSpeedThresholdKmh: 15,
		MaxCycles:                16,
		HalfSplitCycleCount:      8,
		SearchTriggerMarginM:     20,
		ConfirmationMarginM:      50,
		TopNCorrelations:         5,
		PauseMinGapS:             10,
		PauseMaxDistanceM:        1,
	}
}

// Policy reports the resting policy implied by the configuration.
func (c Config) Policy() RestingPolicy {
	if c.RestingStrideThresholdMM != nil {
		return RestingPolicySpeedOrStride
	}
	return RestingPolicySpeed
}

// CycleDistanceM is the nominal distance of one effort+recovery cycle.
func (c Config) CycleDistanceM() float64 {
	return c.EffortDistanceM + c.RecoveryDistanceM
}

// TriggerDistanceM is the distance from the cycle start at which the
// boundary search begins.
func (c Config) TriggerDistanceM() float64 {
	return c.CycleDistanceM() - c.SearchTriggerMarginM
}

// ConfirmationDistanceM is the minimum distance from the cycle start a
// resting sample must reach to close the cycle.
func (c Config) ConfirmationDistanceM() float64 {
	return c.CycleDistanceM() - c.ConfirmationMarginM
}

// Validate rejects configurations the segmenter cannot run with.
func (c Config) Validate() error {
	positive := []struct {
		name  string
		value float64
	}{
		{"effort_distance_m", c.EffortDistanceM},
		{"recovery_distance_m", c.RecoveryDistanceM},
		{"resting_speed_threshold_kmh", c.RestingSpeedThresholdKmh},
	}
	for _, p := range positive {
		if !isFinite(p.value) || p.value <= 0 {
			return fmt.Errorf("%s must be > 0 (got %v)", p.name, p.value)
		}
	}
	if c.RestingStrideThresholdMM != nil {
		if v := *c.RestingStrideThresholdMM; !isFinite(v) || v <= 0 {
			return fmt.Errorf("resting_stride_threshold_mm must be > 0 when set (got %v)", v)
		}
	}
	if c.MaxCycles < 1 {
		return fmt.Errorf("max_cycles must be >= 1 (got %d)", c.MaxCycles)
	}
	if c.HalfSplitCycleCount < 1 {
		return fmt.Errorf("half_split_cycle_count must be >= 1 (got %d)", c.HalfSplitCycleCount)
	}
	if c.SearchTriggerMarginM < 0 || c.ConfirmationMarginM < 0 {
		return fmt.Errorf("margins must be >= 0 (trigger %v, confirmation %v)", c.SearchTriggerMarginM, c.ConfirmationMarginM)
	}
	if c.ConfirmationMarginM < c.SearchTriggerMarginM {
		return fmt.Errorf("confirmation_margin_m (%v) must be >= search_trigger_margin_m (%v)", c.ConfirmationMarginM, c.SearchTriggerMarginM)
	}
	if c.TriggerDistanceM() <= 0 {
		return fmt.Errorf("search trigger distance must be > 0 (cycle %.1f m, margin %.1f m)", c.CycleDistanceM(), c.SearchTriggerMarginM)
	}
	if c.TopNCorrelations < 1 {
		return fmt.Errorf("top_n_correlations must be >= 1 (got %d)", c.TopNCorrelations)
	}
	if c.PauseMinGapS < 0 || c.PauseMaxDistanceM < 0 || math.IsNaN(c.PauseMinGapS) || math.IsNaN(c.PauseMaxDistanceM) {
		return fmt.Errorf("pause thresholds must be >= 0")
	}
	return nil
}

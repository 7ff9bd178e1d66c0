// Package config loads analysis settings from a file and the environment.
package config

import (
	"fmt"
	"strings"

	intervals "github.com/lucasjlepore/fit-intervals"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// FIT_INTERVALS_MAX_CYCLES=12.
const EnvPrefix = "FIT_INTERVALS"

var keys = []string{
	"effort_distance_m",
	"recovery_distance_m",
	"resting_speed_threshold_kmh",
	"resting_stride_threshold_mm",
	"max_cycles",
	"half_split_cycle_count",
	"search_trigger_margin_m",
	"confirmation_margin_m",
	"top_n_correlations",
	"pause_min_gap_s",
	"pause_max_distance_m",
}

// Load builds a validated intervals.Config. Defaults come from
// intervals.DefaultConfig, then the optional file at path (YAML, JSON or
// TOML by extension), then FIT_INTERVALS_* environment variables.
func Load(path string) (intervals.Config, error) {
	v := viper.New()
	def := intervals.DefaultConfig()
	v.SetDefault("effort_distance_m", def.EffortDistanceM)
	v.SetDefault("recovery_distance_m", def.RecoveryDistanceM)
	v.SetDefault("resting_speed_threshold_kmh", def.RestingSpeedThresholdKmh)
	v.SetDefault("max_cycles", def.MaxCycles)
	v.SetDefault("half_split_cycle_count", def.HalfSplitCycleCount)
	v.SetDefault("search_trigger_margin_m", def.SearchTriggerMarginM)
	v.SetDefault("confirmation_margin_m", def.ConfirmationMarginM)
	v.SetDefault("top_n_correlations", def.TopNCorrelations)
	v.SetDefault("pause_min_gap_s", def.PauseMinGapS)
	v.SetDefault("pause_max_distance_m", def.PauseMaxDistanceM)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, k := range keys {
		// Unmarshal only sees keys viper knows about; the stride threshold
		// has no default.
		if err := v.BindEnv(k); err != nil {
			return intervals.Config{}, fmt.Errorf("bind env %s: %w", k, err)
		}
	}

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return intervals.Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg intervals.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return intervals.Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return intervals.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

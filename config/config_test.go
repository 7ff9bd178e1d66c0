package config

import (
	"os"
	"path/filepath"
	"testing"

	intervals "github.com/lucasjlepore/fit-intervals"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, intervals.DefaultConfig(), cfg)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intervals.yaml")
	yaml := "effort_distance_m: 400\nrecovery_distance_m: 200\nmax_cycles: 10\nhalf_split_cycle_count: 5\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	t.Setenv("FIT_INTERVALS_MAX_CYCLES", "12")
	t.Setenv("FIT_INTERVALS_RESTING_STRIDE_THRESHOLD_MM", "950")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 400.0, cfg.EffortDistanceM)
	assert.Equal(t, 200.0, cfg.RecoveryDistanceM)
	assert.Equal(t, 12, cfg.MaxCycles, "environment overrides the file")
	assert.Equal(t, 5, cfg.HalfSplitCycleCount)
	require.NotNil(t, cfg.RestingStrideThresholdMM)
	assert.Equal(t, 950.0, *cfg.RestingStrideThresholdMM)
	assert.Equal(t, intervals.RestingPolicySpeedOrStride, cfg.Policy())
	assert.Equal(t, 15.0, cfg.RestingSpeedThresholdKmh)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("FIT_INTERVALS_MAX_CYCLES", "0")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_cycles")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyTuningConfigDefaults(t *testing.T) {
	t.Parallel()

	c := EmptyTuningConfig()
	assert.Equal(t, "youngest", c.GetMatchingAlgorithm())
	assert.Equal(t, 8, c.GetStorageCapacity())
	assert.Equal(t, 7, c.GetRemoteCapacity())
	assert.Equal(t, 0.15, c.GetStdDev())

	_, enabled := c.GetTwoDPositionHeight()
	assert.False(t, enabled)
}

func TestLoadTuningConfigOverridesOnlySetFields(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"matching_algorithm": "random", "stddev": 0.3}`), 0o644))

	cfg, err := LoadTuningConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "random", cfg.GetMatchingAlgorithm())
	assert.Equal(t, 0.3, cfg.GetStdDev())
	// Untouched fields keep their defaults.
	assert.Equal(t, 8, cfg.GetStorageCapacity())
}

func TestLoadTuningConfigRejectsNonJSONExtension(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))

	_, err := LoadTuningConfig(path)
	assert.Error(t, err)
}

func TestValidateRejectsUnknownMatchingAlgorithm(t *testing.T) {
	t.Parallel()

	c := &TuningConfig{MatchingAlgorithm: ptrString("coin-flip")}
	assert.Error(t, c.Validate())
}

func TestValidateRejectsNonPositiveStdDev(t *testing.T) {
	t.Parallel()

	c := &TuningConfig{StdDev: ptrFloat64(0)}
	assert.Error(t, c.Validate())
}

func TestGetTwoDPositionHeightEnabledWhenSet(t *testing.T) {
	t.Parallel()

	c := &TuningConfig{TwoDPositionHeight: ptrFloat64(0.4)}
	height, enabled := c.GetTwoDPositionHeight()
	assert.True(t, enabled)
	assert.Equal(t, 0.4, height)
}

func TestGetReceiveTimeoutMSOverride(t *testing.T) {
	t.Parallel()

	c := &TuningConfig{ReceiveTimeoutMS: ptrInt64(5000)}
	assert.Equal(t, int64(5000), c.GetReceiveTimeoutMS())
}

func TestValidateRejectsNonPositiveCapacities(t *testing.T) {
	t.Parallel()

	assert.Error(t, (&TuningConfig{StorageCapacity: ptrInt(0)}).Validate())
	assert.Error(t, (&TuningConfig{RemoteCapacity: ptrInt(-1)}).Validate())
}

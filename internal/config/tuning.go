// Package config loads and validates the runtime tuning knobs for the
// TDoA engine and tag driver, following the same pointer-field JSON
// schema the rest of this codebase uses for partial overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the canonical tuning defaults file, checked in
// alongside cmd/tdoa-sim and cmd/tdoa-replay.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig is the root configuration for the engine and driver.
// Fields omitted from a JSON document retain their Get* default, so
// partial overrides are always safe to load.
type TuningConfig struct {
	// Engine params
	MatchingAlgorithm *string  `json:"matching_algorithm,omitempty"` // "random" or "youngest"
	StorageCapacity   *int     `json:"storage_capacity,omitempty"`
	RemoteCapacity    *int     `json:"remote_capacity,omitempty"`
	TimestampFreqHz   *float64 `json:"timestamp_freq_hz,omitempty"`

	// Driver params
	StdDev                *float64 `json:"stddev,omitempty"`
	TwoDPositionHeight    *float64 `json:"two_d_position_height,omitempty"`
	ReceiveTimeoutMS      *int64   `json:"receive_timeout_ms,omitempty"`
	LPPSendTimeoutEvents  *int     `json:"lpp_send_timeout_events,omitempty"`
	AnchorStatusTimeoutMS *int64   `json:"anchor_status_timeout_ms,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// EmptyTuningConfig returns a TuningConfig with every field nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file at path.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching from the
// current directory up through likely package depths. Panics if the
// file cannot be found, intended for test setup only.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that set fields hold plausible values.
func (c *TuningConfig) Validate() error {
	if c.MatchingAlgorithm != nil {
		switch *c.MatchingAlgorithm {
		case "random", "youngest":
		default:
			return fmt.Errorf("matching_algorithm must be \"random\" or \"youngest\", got %q", *c.MatchingAlgorithm)
		}
	}
	if c.StorageCapacity != nil && *c.StorageCapacity < 1 {
		return fmt.Errorf("storage_capacity must be positive, got %d", *c.StorageCapacity)
	}
	if c.RemoteCapacity != nil && *c.RemoteCapacity < 1 {
		return fmt.Errorf("remote_capacity must be positive, got %d", *c.RemoteCapacity)
	}
	if c.StdDev != nil && *c.StdDev <= 0 {
		return fmt.Errorf("stddev must be positive, got %f", *c.StdDev)
	}
	return nil
}

// GetMatchingAlgorithm returns the configured peer-matching algorithm
// name, defaulting to "youngest" (the original firmware's default).
func (c *TuningConfig) GetMatchingAlgorithm() string {
	if c.MatchingAlgorithm == nil {
		return "youngest"
	}
	return *c.MatchingAlgorithm
}

// GetStorageCapacity returns the anchor storage size, defaulting to
// the 8 TDoA2 anchor slots the wire format supports.
func (c *TuningConfig) GetStorageCapacity() int {
	if c.StorageCapacity == nil {
		return 8
	}
	return *c.StorageCapacity
}

// GetRemoteCapacity returns the per-anchor remote-rx/tof cache size,
// defaulting to enough room for every other anchor.
func (c *TuningConfig) GetRemoteCapacity() int {
	if c.RemoteCapacity == nil {
		return 7
	}
	return *c.RemoteCapacity
}

// GetTimestampFreqHz returns the UWB timestamp counter frequency,
// defaulting to the DW1000's 63.8976 GHz tick rate.
func (c *TuningConfig) GetTimestampFreqHz() float64 {
	if c.TimestampFreqHz == nil {
		return 63.8976e9
	}
	return *c.TimestampFreqHz
}

// GetStdDev returns the per-measurement standard deviation reported to
// the estimator, defaulting to the engine's built-in value.
func (c *TuningConfig) GetStdDev() float64 {
	if c.StdDev == nil {
		return 0.15
	}
	return *c.StdDev
}

// GetTwoDPositionHeight returns the fixed height to report alongside
// every TDoA measurement, and whether 2-D mode is enabled at all (a
// nil field means the deck is in full 3-D mode).
func (c *TuningConfig) GetTwoDPositionHeight() (height float64, enabled bool) {
	if c.TwoDPositionHeight == nil {
		return 0, false
	}
	return *c.TwoDPositionHeight, true
}

// GetReceiveTimeoutMS returns the radio's receive-wait timeout.
func (c *TuningConfig) GetReceiveTimeoutMS() int64 {
	if c.ReceiveTimeoutMS == nil {
		return 10000
	}
	return *c.ReceiveTimeoutMS
}

// GetLPPSendTimeoutEvents returns the retry cap before a queued LPP
// short packet is discarded.
func (c *TuningConfig) GetLPPSendTimeoutEvents() int {
	if c.LPPSendTimeoutEvents == nil {
		return 10
	}
	return *c.LPPSendTimeoutEvents
}

// GetAnchorStatusTimeoutMS returns how long an anchor stays "active"
// in the ranging-state bitmap after its last successfully processed
// packet.
func (c *TuningConfig) GetAnchorStatusTimeoutMS() int64 {
	if c.AnchorStatusTimeoutMS == nil {
		return 1500
	}
	return *c.AnchorStatusTimeoutMS
}

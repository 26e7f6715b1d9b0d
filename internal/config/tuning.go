package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// The schema matches the /api/config endpoint so the same JSON can be used
// for both startup configuration and runtime inspection.
type TuningConfig struct {
	// Reconciler params
	PositionEpsilonDeg *float64 `json:"position_epsilon_deg,omitempty"`

	// Dead-reckoning params
	MovementThresholdKmh *float64 `json:"movement_threshold_kmh,omitempty"`
	FastSpeedKmh         *float64 `json:"fast_speed_kmh,omitempty"`
	FastHorizonMinutes   *float64 `json:"fast_horizon_minutes,omitempty"`
	SlowHorizonMinutes   *float64 `json:"slow_horizon_minutes,omitempty"`

	// Risk params
	CorridorToleranceKm *float64 `json:"corridor_tolerance_km,omitempty"`

	// Poll intervals (duration strings like "5s")
	ActivePollInterval *string `json:"active_poll_interval,omitempty"`
	AlertPollInterval  *string `json:"alert_poll_interval,omitempty"`
	AnimalPollInterval *string `json:"animal_poll_interval,omitempty"`
	ZoneRefreshInterval *string `json:"zone_refresh_interval,omitempty"`

	// Live channel params
	ReconnectMinBackoff *string `json:"reconnect_min_backoff,omitempty"`
	ReconnectMaxBackoff *string `json:"reconnect_max_backoff,omitempty"`

	// Playback params
	PlaybackTickInterval *string `json:"playback_tick_interval,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// Fields omitted from the JSON file retain their default values, so partial
// configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
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

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
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

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.PositionEpsilonDeg != nil && *c.PositionEpsilonDeg < 0 {
		return fmt.Errorf("position_epsilon_deg must be non-negative, got %f", *c.PositionEpsilonDeg)
	}
	if c.MovementThresholdKmh != nil && *c.MovementThresholdKmh < 0 {
		return fmt.Errorf("movement_threshold_kmh must be non-negative, got %f", *c.MovementThresholdKmh)
	}
	if c.CorridorToleranceKm != nil && *c.CorridorToleranceKm < 0 {
		return fmt.Errorf("corridor_tolerance_km must be non-negative, got %f", *c.CorridorToleranceKm)
	}

	durations := map[string]*string{
		"active_poll_interval":   c.ActivePollInterval,
		"alert_poll_interval":    c.AlertPollInterval,
		"animal_poll_interval":   c.AnimalPollInterval,
		"zone_refresh_interval":  c.ZoneRefreshInterval,
		"reconnect_min_backoff":  c.ReconnectMinBackoff,
		"reconnect_max_backoff":  c.ReconnectMaxBackoff,
		"playback_tick_interval": c.PlaybackTickInterval,
	}
	for name, v := range durations {
		if v != nil && *v != "" {
			if _, err := time.ParseDuration(*v); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
			}
		}
	}

	return nil
}

func (c *TuningConfig) duration(v *string, fallback time.Duration) time.Duration {
	if v == nil || *v == "" {
		return fallback
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fallback
	}
	return d
}

// GetPositionEpsilonDeg returns the reconciler movement noise floor in degrees.
// The default of 1e-4 degrees is roughly eleven metres.
func (c *TuningConfig) GetPositionEpsilonDeg() float64 {
	if c.PositionEpsilonDeg == nil {
		return 1e-4
	}
	return *c.PositionEpsilonDeg
}

// GetMovementThresholdKmh returns the speed below which an entity is
// considered stationary for dead-reckoning.
func (c *TuningConfig) GetMovementThresholdKmh() float64 {
	if c.MovementThresholdKmh == nil {
		return 0.5
	}
	return *c.MovementThresholdKmh
}

// GetFastSpeedKmh returns the speed above which the long prediction horizon applies.
func (c *TuningConfig) GetFastSpeedKmh() float64 {
	if c.FastSpeedKmh == nil {
		return 2.0
	}
	return *c.FastSpeedKmh
}

// GetFastHorizonMinutes returns the prediction horizon for fast-moving entities.
func (c *TuningConfig) GetFastHorizonMinutes() float64 {
	if c.FastHorizonMinutes == nil {
		return 30
	}
	return *c.FastHorizonMinutes
}

// GetSlowHorizonMinutes returns the prediction horizon for slow-moving entities.
func (c *TuningConfig) GetSlowHorizonMinutes() float64 {
	if c.SlowHorizonMinutes == nil {
		return 10
	}
	return *c.SlowHorizonMinutes
}

// GetCorridorToleranceKm returns the default corridor path tolerance.
func (c *TuningConfig) GetCorridorToleranceKm() float64 {
	if c.CorridorToleranceKm == nil {
		return 2.0
	}
	return *c.CorridorToleranceKm
}

// GetActivePollInterval returns the active-tracking refresh interval.
func (c *TuningConfig) GetActivePollInterval() time.Duration {
	return c.duration(c.ActivePollInterval, 5*time.Second)
}

// GetAlertPollInterval returns the alert/ranger refresh interval.
func (c *TuningConfig) GetAlertPollInterval() time.Duration {
	return c.duration(c.AlertPollInterval, 30*time.Second)
}

// GetAnimalPollInterval returns the full animal snapshot interval.
func (c *TuningConfig) GetAnimalPollInterval() time.Duration {
	return c.duration(c.AnimalPollInterval, 60*time.Second)
}

// GetZoneRefreshInterval returns the reference-layer refresh interval.
func (c *TuningConfig) GetZoneRefreshInterval() time.Duration {
	return c.duration(c.ZoneRefreshInterval, 300*time.Second)
}

// GetReconnectMinBackoff returns the initial live-channel reconnect delay.
func (c *TuningConfig) GetReconnectMinBackoff() time.Duration {
	return c.duration(c.ReconnectMinBackoff, 1*time.Second)
}

// GetReconnectMaxBackoff returns the live-channel reconnect delay ceiling.
func (c *TuningConfig) GetReconnectMaxBackoff() time.Duration {
	return c.duration(c.ReconnectMaxBackoff, 30*time.Second)
}

// GetPlaybackTickInterval returns the trail playback animation cadence.
func (c *TuningConfig) GetPlaybackTickInterval() time.Duration {
	return c.duration(c.PlaybackTickInterval, 500*time.Millisecond)
}

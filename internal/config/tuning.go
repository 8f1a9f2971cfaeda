// Package config loads the daemon's tuning parameters. The JSON schema
// matches the /api/filter/params control surface so the same document can
// be used for startup configuration and runtime updates. Fields omitted
// from the file keep their defaults, so partial configs are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TuningConfig is the root configuration for pipeline tuning. All fields
// are optional; the Get* accessors supply defaults.
type TuningConfig struct {
	// Filter params
	Alpha         *float64 `json:"alpha,omitempty"`
	MedianWindow  *int     `json:"median_window,omitempty"`
	OutlierK      *float64 `json:"outlier_k,omitempty"`
	MinDistanceCm *float64 `json:"min_distance_cm,omitempty"`
	MaxDistanceCm *float64 `json:"max_distance_cm,omitempty"`

	// History buffer params
	HistoryHighWater *int `json:"history_high_water,omitempty"`
	HistoryLowWater  *int `json:"history_low_water,omitempty"`

	// Scheduling params
	TickInterval       *string `json:"tick_interval,omitempty"`        // duration string like "33ms"
	ReplayBaseInterval *string `json:"replay_base_interval,omitempty"` // duration string like "30ms"

	// Serial port params
	BaudRate *int    `json:"baud_rate,omitempty"`
	DataBits *int    `json:"data_bits,omitempty"`
	StopBits *int    `json:"stop_bits,omitempty"`
	Parity   *string `json:"parity,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The path must
// have a .json extension and the file must be under 1MB.
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

// Validate checks structural validity: durations must parse and the
// buffer water marks must be ordered. Numeric filter ranges are not
// rejected here; out-of-range values are clamped by the accessors, the
// same policy the runtime setters use.
func (c *TuningConfig) Validate() error {
	if c.TickInterval != nil && *c.TickInterval != "" {
		if _, err := time.ParseDuration(*c.TickInterval); err != nil {
			return fmt.Errorf("invalid tick_interval '%s': %w", *c.TickInterval, err)
		}
	}

	if c.ReplayBaseInterval != nil && *c.ReplayBaseInterval != "" {
		if _, err := time.ParseDuration(*c.ReplayBaseInterval); err != nil {
			return fmt.Errorf("invalid replay_base_interval '%s': %w", *c.ReplayBaseInterval, err)
		}
	}

	if c.HistoryHighWater != nil && *c.HistoryHighWater <= 0 {
		return fmt.Errorf("history_high_water must be positive, got %d", *c.HistoryHighWater)
	}

	if c.HistoryHighWater != nil && c.HistoryLowWater != nil {
		if *c.HistoryLowWater <= 0 || *c.HistoryLowWater >= *c.HistoryHighWater {
			return fmt.Errorf("history_low_water must be in (0, %d), got %d", *c.HistoryHighWater, *c.HistoryLowWater)
		}
	}

	return nil
}

// GetAlpha returns the smoothing factor, clamped, or the default.
func (c *TuningConfig) GetAlpha() float64 {
	if c.Alpha == nil {
		return 0.3
	}
	return clampFloat(*c.Alpha, 0.1, 0.9)
}

// GetMedianWindow returns the median window length, clamped, or the default.
func (c *TuningConfig) GetMedianWindow() int {
	if c.MedianWindow == nil {
		return 5
	}
	return clampInt(*c.MedianWindow, 3, 15)
}

// GetOutlierK returns the outlier gate multiplier, clamped, or the default.
func (c *TuningConfig) GetOutlierK() float64 {
	if c.OutlierK == nil {
		return 2.0
	}
	return clampFloat(*c.OutlierK, 1.0, 5.0)
}

// GetMinDistanceCm returns the minimum plausible reading or the default.
func (c *TuningConfig) GetMinDistanceCm() float64 {
	if c.MinDistanceCm == nil || *c.MinDistanceCm <= 0 {
		return 10
	}
	return *c.MinDistanceCm
}

// GetMaxDistanceCm returns the maximum plausible reading or the default.
func (c *TuningConfig) GetMaxDistanceCm() float64 {
	if c.MaxDistanceCm == nil || *c.MaxDistanceCm <= c.GetMinDistanceCm() {
		return 400
	}
	return *c.MaxDistanceCm
}

// GetHistoryHighWater returns the history truncation trigger or the default.
func (c *TuningConfig) GetHistoryHighWater() int {
	if c.HistoryHighWater == nil {
		return 1000
	}
	return *c.HistoryHighWater
}

// GetHistoryLowWater returns the post-truncation size or the default.
func (c *TuningConfig) GetHistoryLowWater() int {
	if c.HistoryLowWater == nil {
		return 800
	}
	return *c.HistoryLowWater
}

// GetTickInterval parses and returns the pipeline tick interval.
func (c *TuningConfig) GetTickInterval() time.Duration {
	if c.TickInterval == nil || *c.TickInterval == "" {
		return 33 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.TickInterval)
	if err != nil {
		return 33 * time.Millisecond
	}
	return d
}

// GetReplayBaseInterval parses and returns the nominal replay interval.
func (c *TuningConfig) GetReplayBaseInterval() time.Duration {
	if c.ReplayBaseInterval == nil || *c.ReplayBaseInterval == "" {
		return 30 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.ReplayBaseInterval)
	if err != nil {
		return 30 * time.Millisecond
	}
	return d
}

// GetBaudRate returns the serial baud rate or the default.
func (c *TuningConfig) GetBaudRate() int {
	if c.BaudRate == nil || *c.BaudRate <= 0 {
		return 115200
	}
	return *c.BaudRate
}

// GetDataBits returns the serial data bits or the default.
func (c *TuningConfig) GetDataBits() int {
	if c.DataBits == nil {
		return 8
	}
	return *c.DataBits
}

// GetStopBits returns the serial stop bits or the default.
func (c *TuningConfig) GetStopBits() int {
	if c.StopBits == nil {
		return 1
	}
	return *c.StopBits
}

// GetParity returns the serial parity or the default.
func (c *TuningConfig) GetParity() string {
	if c.Parity == nil || *c.Parity == "" {
		return "N"
	}
	return *c.Parity
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

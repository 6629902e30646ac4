// Package config loads the session tuning file. All fields are pointers so
// a partial JSON file overrides only what it names; the Get* accessors fall
// back to the production defaults for everything else.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gully-data/crease.review/internal/calib"
	"github.com/gully-data/crease.review/internal/events"
	"github.com/gully-data/crease.review/internal/replay"
	"github.com/gully-data/crease.review/internal/rules"
	"github.com/gully-data/crease.review/internal/segment"
	"github.com/gully-data/crease.review/internal/track"
	"github.com/gully-data/crease.review/internal/units"
)

// SessionConfig is the root tuning schema. The same JSON shape serves
// startup configuration and runtime parameter updates.
type SessionConfig struct {
	// Video params
	FPS *float64 `json:"fps,omitempty"`

	// Tracker params
	MeasurementNoise  *float64 `json:"measurement_noise,omitempty"`
	ProcessNoise      *float64 `json:"process_noise,omitempty"`
	MaxCovarianceDiag *float64 `json:"max_covariance_diag,omitempty"`

	// Segmenter params
	MinFrames   *int     `json:"min_frames,omitempty"`
	IdleFrames  *int     `json:"idle_frames,omitempty"`
	MinMotionPx *float64 `json:"min_motion_px,omitempty"`

	// Event detection params
	ImpactThresholdPx *float64 `json:"impact_threshold_px,omitempty"`
	CooldownFrames    *int     `json:"cooldown_frames,omitempty"`

	// Rule params
	Strictness           *string  `json:"strictness,omitempty"`
	StumpTolerance       *float64 `json:"stump_tolerance,omitempty"`
	MinOutConfidence     *float64 `json:"min_out_confidence,omitempty"`
	MinPreImpactSamples  *int     `json:"min_pre_impact_samples,omitempty"`
	EdgeVelocityChangePx *float64 `json:"edge_velocity_change_px,omitempty"`
	GravityPxPerFrame2   *float64 `json:"gravity_px_per_frame2,omitempty"`

	// Session params
	ReplayCapacity *int    `json:"replay_capacity,omitempty"`
	ArchivePath    *string `json:"archive_path,omitempty"`
}

// EmptySessionConfig returns a SessionConfig with every field unset, so
// every accessor answers with its default.
func EmptySessionConfig() *SessionConfig {
	return &SessionConfig{}
}

// LoadSessionConfig loads a SessionConfig from a JSON file. Fields omitted
// from the file keep their defaults, so partial configs are safe.
func LoadSessionConfig(path string) (*SessionConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySessionConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes the config as indented JSON.
func (c *SessionConfig) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks every set field against its allowed range.
func (c *SessionConfig) Validate() error {
	if c.FPS != nil && *c.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %g", *c.FPS)
	}
	if c.MeasurementNoise != nil && *c.MeasurementNoise <= 0 {
		return fmt.Errorf("measurement_noise must be positive, got %g", *c.MeasurementNoise)
	}
	if c.ProcessNoise != nil && *c.ProcessNoise <= 0 {
		return fmt.Errorf("process_noise must be positive, got %g", *c.ProcessNoise)
	}
	if c.MinFrames != nil && *c.MinFrames < 1 {
		return fmt.Errorf("min_frames must be at least 1, got %d", *c.MinFrames)
	}
	if c.IdleFrames != nil && *c.IdleFrames < 1 {
		return fmt.Errorf("idle_frames must be at least 1, got %d", *c.IdleFrames)
	}
	if c.ImpactThresholdPx != nil && *c.ImpactThresholdPx <= 0 {
		return fmt.Errorf("impact_threshold_px must be positive, got %g", *c.ImpactThresholdPx)
	}
	if c.ReplayCapacity != nil && *c.ReplayCapacity < 1 {
		return fmt.Errorf("replay_capacity must be at least 1, got %d", *c.ReplayCapacity)
	}
	if err := c.RuleParameters().Validate(); err != nil {
		return err
	}
	return nil
}

// GetFPS returns the frame rate or the default.
func (c *SessionConfig) GetFPS() float64 {
	if c.FPS == nil {
		return 30 // default
	}
	return *c.FPS
}

// GetReplayCapacity returns the replay history size or the default.
func (c *SessionConfig) GetReplayCapacity() int {
	if c.ReplayCapacity == nil {
		return replay.DefaultCapacity
	}
	return *c.ReplayCapacity
}

// GetArchivePath returns the sqlite archive path or the default.
func (c *SessionConfig) GetArchivePath() string {
	if c.ArchivePath == nil || *c.ArchivePath == "" {
		return "crease.db" // default
	}
	return *c.ArchivePath
}

// TrackerConfig assembles the Kalman tracker tuning.
func (c *SessionConfig) TrackerConfig() track.TrackerConfig {
	cfg := track.DefaultTrackerConfig()
	cfg.FPS = c.GetFPS()
	if c.MeasurementNoise != nil {
		cfg.MeasurementNoise = *c.MeasurementNoise
	}
	if c.ProcessNoise != nil {
		cfg.ProcessNoise = *c.ProcessNoise
	}
	if c.MaxCovarianceDiag != nil {
		cfg.MaxCovarianceDiag = *c.MaxCovarianceDiag
	}
	return cfg
}

// SegmenterConfig assembles the delivery segmentation thresholds.
func (c *SessionConfig) SegmenterConfig() segment.Config {
	cfg := segment.DefaultConfig()
	if c.MinFrames != nil {
		cfg.MinFrames = *c.MinFrames
	}
	if c.IdleFrames != nil {
		cfg.IdleFrames = *c.IdleFrames
	}
	if c.MinMotionPx != nil {
		cfg.MinMotionPx = *c.MinMotionPx
	}
	return cfg
}

// EventsConfig assembles the event detection thresholds.
func (c *SessionConfig) EventsConfig() events.Config {
	cfg := events.DefaultConfig()
	if c.ImpactThresholdPx != nil {
		cfg.ImpactThresholdPx = *c.ImpactThresholdPx
	}
	if c.CooldownFrames != nil {
		cfg.CooldownFrames = *c.CooldownFrames
	}
	if c.StumpTolerance != nil {
		cfg.StumpTolerance = *c.StumpTolerance
	}
	return cfg
}

// RuleParameters assembles the rule engine parameters: the strictness
// preset seeds them, then explicit overrides apply on top.
func (c *SessionConfig) RuleParameters() rules.Parameters {
	level := rules.StrictnessStandard
	if c.Strictness != nil {
		level = rules.Strictness(*c.Strictness)
	}
	p := rules.ParametersFor(level)
	p.Strictness = level
	if c.StumpTolerance != nil {
		p.StumpTolerance = *c.StumpTolerance
	}
	if c.MinOutConfidence != nil {
		p.MinOutConfidence = *c.MinOutConfidence
	}
	if c.MinPreImpactSamples != nil {
		p.MinPreImpactSamples = *c.MinPreImpactSamples
	}
	if c.EdgeVelocityChangePx != nil {
		p.EdgeVelocityChangePx = *c.EdgeVelocityChangePx
	}
	if c.GravityPxPerFrame2 != nil {
		p.GravityPxPerFrame2 = *c.GravityPxPerFrame2
	}
	return p
}

// LoadCalibration loads a scene calibration from a JSON file and checks
// its wall polygon.
func LoadCalibration(path string) (calib.Calibration, error) {
	var cal calib.Calibration

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return cal, fmt.Errorf("failed to read calibration file: %w", err)
	}
	if err := json.Unmarshal(data, &cal); err != nil {
		return cal, fmt.Errorf("failed to parse calibration JSON: %w", err)
	}
	if cal.Pitch.PitchLengthM == 0 && cal.Pitch.PitchLengthFt > 0 {
		cal.Pitch.PitchLengthM = units.FeetToMeters(cal.Pitch.PitchLengthFt)
	}
	if len(cal.Wall.Polygon) > 0 {
		if err := cal.Wall.Validate(); err != nil {
			return cal, err
		}
	}
	return cal, nil
}

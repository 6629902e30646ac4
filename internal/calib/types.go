// Package calib holds the session calibration data and the coordinate
// mapper that converts between pixel space and real-world units. The
// calibration is captured once per session (reference points clicked on a
// still frame plus the measured pitch length) and is immutable afterwards;
// every component that needs real-world conversion receives the same
// Calibration value.
package calib

import (
	"fmt"

	"github.com/gully-data/crease.review/internal/geom"
)

// Stump end identifiers.
const (
	BattingEnd = "batting"
	BowlingEnd = "bowling"
)

// CalibrationError reports invalid or missing reference geometry. It is
// fatal to any conversion: rule evaluation must not proceed until the
// session is recalibrated.
type CalibrationError struct {
	Reason string
}

func (e *CalibrationError) Error() string {
	return fmt.Sprintf("calibration: %s", e.Reason)
}

// PitchConfig holds the physical pitch dimensions entered during calibration
// together with the pixel anchors of the two creases.
type PitchConfig struct {
	PitchLengthM    float64    `json:"pitch_length_m"`            // crease-to-crease distance in metres
	PitchLengthFt   float64    `json:"pitch_length_ft,omitempty"` // imperial entry, converted to metres at load
	BowlingCreasePx geom.Point `json:"bowling_crease_px"`         // pixel anchor of the bowling crease centre
	BattingCreasePx geom.Point `json:"batting_crease_px"`         // pixel anchor of the batting crease centre
}

// StumpPosition holds detected or manually marked stump coordinates for one
// end of the pitch. Positions are the pixel locations of the stump tops.
type StumpPosition struct {
	OffStumpPx    geom.Point `json:"off_stump_px"`
	MiddleStumpPx geom.Point `json:"middle_stump_px"`
	LegStumpPx    geom.Point `json:"leg_stump_px"`
	StumpWidthPx  float64    `json:"stump_width_px"`  // off-stump to leg-stump pixel distance
	StumpHeightPx float64    `json:"stump_height_px"` // pixel height of the stumps
	Confidence    float64    `json:"confidence"`      // detection confidence, 1.0 if marked manually
	End           string     `json:"end"`             // BattingEnd or BowlingEnd
}

// WideConfig holds the configured wide-corridor distances either side of
// the stumps, in metres.
type WideConfig struct {
	OffSideDistanceM float64 `json:"off_side_distance_m"`
	LegSideDistanceM float64 `json:"leg_side_distance_m"`
}

// WallBoundary is the drawn polygon defining the catch zone behind the
// wicket for the caught-behind wall rule.
type WallBoundary struct {
	Polygon geom.Polygon `json:"polygon"`
}

// Validate checks the boundary polygon has enough vertices to enclose area.
func (w WallBoundary) Validate() error {
	if len(w.Polygon) < 3 {
		return &CalibrationError{Reason: fmt.Sprintf("wall boundary needs at least 3 vertices, got %d", len(w.Polygon))}
	}
	return nil
}

// Calibration aggregates everything a session needs for real-world
// conversion and zone derivation. Immutable for the session's duration.
type Calibration struct {
	Pitch         PitchConfig   `json:"pitch"`
	BattingStumps StumpPosition `json:"batting_stumps"`
	Wide          WideConfig    `json:"wide"`
	Wall          WallBoundary  `json:"wall"`
}

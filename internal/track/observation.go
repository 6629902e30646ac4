// Package track contains the per-delivery state estimator: the observation
// model produced by the external ball detector, the six-state constant-
// acceleration Kalman filter that fuses those observations into a filtered
// motion state, and the trajectory accumulated from the filter output.
package track

import "github.com/gully-data/crease.review/internal/geom"

// Visibility tags one frame's detector outcome. Absent is the explicit
// no-observation variant: the tracker still advances on absent frames but
// performs no measurement correction, which is what bridges occlusion when
// the ball passes behind the batsman.
type Visibility string

const (
	VisibilityVisible  Visibility = "visible"
	VisibilityOccluded Visibility = "occluded"
	VisibilityAbsent   Visibility = "absent"
)

// Observation is one frame of detector output. Immutable once created.
type Observation struct {
	Frame       int64      `json:"frame"`
	X           float64    `json:"x"`
	Y           float64    `json:"y"`
	Confidence  float64    `json:"confidence"` // detector heatmap peak confidence [0,1]
	Visibility  Visibility `json:"visibility"`
	TimestampMs float64    `json:"timestamp_ms"`
}

// Present reports whether the observation carries a usable position.
func (o Observation) Present() bool {
	return o.Visibility == VisibilityVisible || o.Visibility == VisibilityOccluded
}

// Pixel returns the observed position as a point.
func (o Observation) Pixel() geom.Point {
	return geom.Point{X: o.X, Y: o.Y}
}

// AbsentObservation builds the no-detection variant for a frame.
func AbsentObservation(frame int64, timestampMs float64) Observation {
	return Observation{
		Frame:       frame,
		Visibility:  VisibilityAbsent,
		TimestampMs: timestampMs,
	}
}

// Package rules contains the adjudication engines. Each engine is a pure
// function over a finalized trajectory, its detected events and the scene
// calibration, returning a Decision with a graded confidence and the
// geometry that justified it. Engines never mutate their inputs.
package rules

import (
	"fmt"

	"github.com/gully-data/crease.review/internal/geom"
)

// Kind names the rule an engine adjudicated.
type Kind string

const (
	KindLBW          Kind = "lbw"
	KindWide         Kind = "wide"
	KindCaughtBehind Kind = "caught_behind"
)

// Verdict is the outcome of an adjudication.
type Verdict string

const (
	VerdictOut     Verdict = "out"
	VerdictNotOut  Verdict = "not_out"
	VerdictWide    Verdict = "wide"
	VerdictNotWide Verdict = "not_wide"
	// VerdictNotApplicable means the rule had nothing to adjudicate, for
	// example a caught-behind appeal with no edge. Distinct from NOT OUT:
	// no ruling was made.
	VerdictNotApplicable Verdict = "not_applicable"
)

// Geometry carries the spatial evidence behind a decision, for overlays
// and replay. Fields are populated per rule; absent ones are omitted.
type Geometry struct {
	PitchPoint     *geom.Point  `json:"pitch_point,omitempty"`     // where the ball bounced
	ImpactPoint    *geom.Point  `json:"impact_point,omitempty"`    // where it struck pad or bat
	ProjectedPoint *geom.Point  `json:"projected_point,omitempty"` // projected position at the stumps
	ProjectedPath  []geom.Point `json:"projected_path,omitempty"`
	CrossingPoint  *geom.Point  `json:"crossing_point,omitempty"` // crease crossing for wide calls
	WideMarginM    float64      `json:"wide_margin_m,omitempty"`  // distance beyond the wide line, metres
	EdgeFrame      int64        `json:"edge_frame,omitempty"`
}

// Decision is one adjudication result. Immutable once returned.
type Decision struct {
	Kind       Kind     `json:"kind"`
	Verdict    Verdict  `json:"verdict"`
	Reason     string   `json:"reason"`
	Confidence float64  `json:"confidence"`
	Geometry   Geometry `json:"geometry"`
}

// Out reports whether the verdict dismisses the batsman.
func (d Decision) Out() bool { return d.Verdict == VerdictOut }

// InsufficientDataError is the recoverable refusal to adjudicate: the
// trajectory did not carry enough samples for the rule to reason from.
// Callers surface it to the operator rather than guessing.
type InsufficientDataError struct {
	Rule Kind
	Need int
	Got  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient trajectory data: need %d samples, got %d", e.Rule, e.Need, e.Got)
}

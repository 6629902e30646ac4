package rules

import (
	"math"

	"github.com/gully-data/crease.review/internal/calib"
	"github.com/gully-data/crease.review/internal/track"
)

// Fewest trajectory samples a wide call will reason from.
const minWideSamples = 3

// Sample count at which the wide confidence base factor saturates.
const fullWideSampleCount = 10

// Distance beyond or inside the wide line, in metres, at which the margin
// factor saturates. A ball exactly on the line gets the floor: the
// boundary case is the least certain call.
const wideMarginNormM = 0.3

// EvaluateWide adjudicates a wide: where the ball crossed the batting
// crease laterally against the calibrated wide lines. The crossing is
// interpolated between the bracketing samples; a delivery that never
// reaches the crease is judged at its final position at reduced
// confidence. Confidence rises with the margin from the line on either
// side, so a ball exactly on the wide line gets the lowest confidence of
// any call.
func EvaluateWide(t *track.Trajectory, m *calib.Mapper, p Parameters) (Decision, error) {
	if t.Len() < minWideSamples {
		return Decision{}, &InsufficientDataError{Rule: KindWide, Need: minWideSamples, Got: t.Len()}
	}

	creaseY := m.Calibration().Pitch.BattingCreasePx.Y
	crossing, reached := t.CreaseCrossing(creaseY)
	if !reached {
		crossing = t.End().Pixel
	}

	offX, legX := m.WideLineXs()

	// Signed margin: positive means beyond a wide line.
	offMargin := towardMargin(crossing.X, offX, legX)
	legMargin := towardMargin(crossing.X, legX, offX)
	marginPx := math.Max(offMargin, legMargin)
	marginM := m.PixelsToMeters(marginPx)

	sampleFactor := clamp(float64(t.Len())/fullWideSampleCount, 0.3, 1.0)
	marginFactor := clamp(math.Abs(marginM)/wideMarginNormM, 0, 1)
	conf := sampleFactor * (0.3 + 0.7*marginFactor)
	if !reached {
		conf *= incompleteTrajectoryFactor
	}
	if !t.Complete {
		conf *= incompleteTrajectoryFactor
	}
	conf = clamp(conf, 0, 1)

	geo := Geometry{CrossingPoint: ptr(crossing), WideMarginM: marginM}

	if marginPx > 0 {
		side := "off"
		if legMargin > offMargin {
			side = "leg"
		}
		return Decision{
			Kind:       KindWide,
			Verdict:    VerdictWide,
			Reason:     "crossed the crease beyond the " + side + " side wide line",
			Confidence: conf,
			Geometry:   geo,
		}, nil
	}

	return Decision{
		Kind:       KindWide,
		Verdict:    VerdictNotWide,
		Reason:     "crossed the crease within the wide lines",
		Confidence: conf,
		Geometry:   geo,
	}, nil
}

// towardMargin returns how far x sits beyond lineX, measured away from the
// pitch centre (the opposite line). Negative when inside.
func towardMargin(x, lineX, otherX float64) float64 {
	if lineX < otherX {
		return lineX - x
	}
	return x - lineX
}

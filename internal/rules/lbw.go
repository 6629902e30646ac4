package rules

import (
	"github.com/gully-data/crease.review/internal/calib"
	"github.com/gully-data/crease.review/internal/events"
	"github.com/gully-data/crease.review/internal/monitoring"
	"github.com/gully-data/crease.review/internal/track"
)

// Handedness is the batsman's stance. The calibration labels the stumps
// for a right-hander; a left-hander mirrors which physical side is leg.
type Handedness string

const (
	RightHanded Handedness = "right"
	LeftHanded  Handedness = "left"
)

// LBWInput is the per-appeal context the engine cannot derive from the
// trajectory.
type LBWInput struct {
	Handedness  Handedness `json:"handedness"`
	ShotOffered bool       `json:"shot_offered"`
}

// EvaluateLBW adjudicates an LBW appeal against a finalized delivery.
// The checks run in law order: bat involvement, pitching, impact line,
// then projection to the stumps. Outright rejections (pitched outside leg,
// struck outside off with a shot offered) return a firm NOT OUT at a fixed
// low confidence since no projection backs them. A projected OUT below the
// confidence floor is demoted to NOT OUT: benefit of the doubt goes to the
// batsman.
func EvaluateLBW(t *track.Trajectory, impacts []events.Impact, m *calib.Mapper, p Parameters, in LBWInput) (Decision, error) {
	p = p.Normalize()

	pad, batFirst := findPadImpact(impacts)
	if batFirst {
		return Decision{
			Kind:       KindLBW,
			Verdict:    VerdictNotOut,
			Reason:     "ball hit bat before pad",
			Confidence: outrightRejectConfidence,
		}, nil
	}
	if pad == nil {
		return Decision{
			Kind:       KindLBW,
			Verdict:    VerdictNotOut,
			Reason:     "no pad impact detected",
			Confidence: outrightRejectConfidence,
		}, nil
	}

	pre := t.PreImpactPoints(pad.Frame)
	if len(pre) < p.MinPreImpactSamples {
		return Decision{}, &InsufficientDataError{Rule: KindLBW, Need: p.MinPreImpactSamples, Got: len(pre)}
	}

	geo := Geometry{ImpactPoint: ptr(pad.Pixel)}

	offX, legX := stumpLineXs(m, in.Handedness)

	if b := t.Bounce(); b != nil {
		geo.PitchPoint = ptr(b.Pixel)
		if outsideLeg(b.Pixel.X, offX, legX) {
			return Decision{
				Kind:       KindLBW,
				Verdict:    VerdictNotOut,
				Reason:     "pitched outside leg stump",
				Confidence: outrightRejectConfidence,
				Geometry:   geo,
			}, nil
		}
	}

	if !m.InStumpLine(pad.Pixel.X, p.StumpTolerance) {
		if outsideLeg(pad.Pixel.X, offX, legX) {
			return Decision{
				Kind:       KindLBW,
				Verdict:    VerdictNotOut,
				Reason:     "struck outside the line of leg stump",
				Confidence: outrightRejectConfidence,
				Geometry:   geo,
			}, nil
		}
		if in.ShotOffered {
			return Decision{
				Kind:       KindLBW,
				Verdict:    VerdictNotOut,
				Reason:     "struck outside off stump with a shot offered",
				Confidence: outrightRejectConfidence,
				Geometry:   geo,
			}, nil
		}
		// No shot offered outside off: the appeal survives to projection.
	}

	// Project to the batting-crease line, the same reference the wide
	// engine judges at.
	seed := pre[len(pre)-1]
	creaseY := m.Calibration().Pitch.BattingCreasePx.Y
	projector := NewPathProjector(seed, p.GravityPxPerFrame2)
	crossing, path, reached := projector.ProjectToY(creaseY)
	if !reached {
		monitoring.Logf("lbw: projection from frame %d never reached the crease", seed.Frame)
		return Decision{
			Kind:       KindLBW,
			Verdict:    VerdictNotOut,
			Reason:     "projected path does not reach the stumps",
			Confidence: outrightRejectConfidence,
			Geometry:   geo,
		}, nil
	}
	geo.ProjectedPoint = ptr(crossing)
	geo.ProjectedPath = path

	conf := projectionConfidence(pre, creaseY-seed.Pixel.Y)
	conf *= 0.5 + 0.5*pad.Confidence
	if !t.Complete {
		conf *= incompleteTrajectoryFactor
	}
	conf = clamp(conf, 0, 1)

	if !m.InStumpLine(crossing.X, p.StumpTolerance) {
		return Decision{
			Kind:       KindLBW,
			Verdict:    VerdictNotOut,
			Reason:     "projected to miss the stumps",
			Confidence: conf,
			Geometry:   geo,
		}, nil
	}

	if conf < p.MinOutConfidence {
		return Decision{
			Kind:       KindLBW,
			Verdict:    VerdictNotOut,
			Reason:     "projected to hit, confidence below the out threshold",
			Confidence: conf,
			Geometry:   geo,
		}, nil
	}

	return Decision{
		Kind:       KindLBW,
		Verdict:    VerdictOut,
		Reason:     "projected to hit the stumps",
		Confidence: conf,
		Geometry:   geo,
	}, nil
}

// findPadImpact picks the impact the appeal is about: the first pad or
// unknown-surface impact. batFirst reports a bat impact earlier in the
// sequence, which kills the appeal outright.
func findPadImpact(impacts []events.Impact) (pad *events.Impact, batFirst bool) {
	for i := range impacts {
		switch impacts[i].Surface {
		case events.SurfaceBat:
			return nil, true
		case events.SurfacePad, events.SurfaceUnknown:
			return &impacts[i], false
		}
	}
	return nil, false
}

// stumpLineXs returns the effective off and leg stump x positions for the
// batsman's stance.
func stumpLineXs(m *calib.Mapper, h Handedness) (offX, legX float64) {
	s := m.Calibration().BattingStumps
	offX, legX = s.OffStumpPx.X, s.LegStumpPx.X
	if h == LeftHanded {
		offX, legX = legX, offX
	}
	return offX, legX
}

// outsideLeg reports whether x sits beyond the leg stump on the leg side.
func outsideLeg(x, offX, legX float64) bool {
	if legX >= offX {
		return x > legX
	}
	return x < legX
}

func ptr[T any](v T) *T { return &v }

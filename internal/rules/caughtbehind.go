package rules

import (
	"github.com/gully-data/crease.review/internal/events"
	"github.com/gully-data/crease.review/internal/track"
)

// EvaluateCaughtBehind adjudicates a caught-behind appeal from the impact
// sequence: an edge (a bat impact, or an unclassified impact sharp enough
// to read as one) followed by the ball carrying to the wall without
// touching the ground in between. Ground contact or a bounce after the
// edge kills the appeal; the catch did not carry. Without an edge the
// appeal does not apply at all, which is not the same as NOT OUT.
func EvaluateCaughtBehind(t *track.Trajectory, impacts []events.Impact, p Parameters) (Decision, error) {
	p = p.Normalize()

	edgeIdx := -1
	for i, imp := range impacts {
		if imp.Surface == events.SurfaceBat {
			edgeIdx = i
			break
		}
		if imp.Surface == events.SurfaceUnknown && imp.VelocityChange >= p.EdgeVelocityChangePx {
			edgeIdx = i
			break
		}
	}

	if edgeIdx < 0 {
		return Decision{
			Kind:       KindCaughtBehind,
			Verdict:    VerdictNotApplicable,
			Reason:     "no edge detected",
			Confidence: outrightRejectConfidence,
		}, nil
	}

	edge := impacts[edgeIdx]
	geo := Geometry{ImpactPoint: ptr(edge.Pixel), EdgeFrame: edge.Frame}

	conf := edge.Confidence
	if edge.Surface == events.SurfaceUnknown {
		// An inferred edge is weaker evidence than a classified bat contact.
		conf *= 0.8
	}
	if !t.Complete {
		conf *= incompleteTrajectoryFactor
	}
	conf = clamp(conf, 0, 1)

	for _, imp := range impacts[edgeIdx+1:] {
		switch imp.Surface {
		case events.SurfaceGround:
			return Decision{
				Kind:       KindCaughtBehind,
				Verdict:    VerdictNotOut,
				Reason:     "ball touched the ground after the edge",
				Confidence: conf,
				Geometry:   geo,
			}, nil
		case events.SurfaceWall:
			// The bounce is kept out of the impacts list, so pitching
			// between bat and wall only shows up on the trajectory.
			if b := t.Bounce(); b != nil && b.Frame > edge.Frame && b.Frame < imp.Frame {
				geo.PitchPoint = ptr(b.Pixel)
				return Decision{
					Kind:       KindCaughtBehind,
					Verdict:    VerdictNotOut,
					Reason:     "ball bounced between bat and wall",
					Confidence: conf,
					Geometry:   geo,
				}, nil
			}
			if conf < p.MinOutConfidence {
				return Decision{
					Kind:       KindCaughtBehind,
					Verdict:    VerdictNotOut,
					Reason:     "edge carried, confidence below the out threshold",
					Confidence: conf,
					Geometry:   geo,
				}, nil
			}
			return Decision{
				Kind:       KindCaughtBehind,
				Verdict:    VerdictOut,
				Reason:     "edge carried to the wall on the full",
				Confidence: conf,
				Geometry:   geo,
			}, nil
		}
	}

	return Decision{
		Kind:       KindCaughtBehind,
		Verdict:    VerdictNotOut,
		Reason:     "edge did not carry to the wall",
		Confidence: conf,
		Geometry:   geo,
	}, nil
}

package track

import (
	"github.com/gully-data/crease.review/internal/calib"
	"github.com/gully-data/crease.review/internal/geom"
	"github.com/gully-data/crease.review/internal/monitoring"
)

// Mean detection confidence below which a finalized trajectory is marked
// incomplete. Incomplete trajectories still flow through the rule engines;
// they only lower the decision confidence (graceful degradation).
const defaultConfidenceFloor = 0.3

// TrajectoryPoint is one finalized, time-ordered sample of a delivery's
// path. Velocity and acceleration are the filter estimates at that frame,
// in pixels per frame.
type TrajectoryPoint struct {
	Frame      int64      `json:"frame"`
	Pixel      geom.Point `json:"pixel"`
	World      geom.Point `json:"world"` // metres, relative to the batting crease anchor
	VX         float64    `json:"vx"`
	VY         float64    `json:"vy"`
	AX         float64    `json:"ax"`
	AY         float64    `json:"ay"`
	Confidence float64    `json:"confidence"`
	Bounce     bool       `json:"bounce,omitempty"`
}

// Trajectory owns the ordered samples of one delivery plus the derived
// scalar metrics. Points are append-only while the delivery is live; after
// Finalize the trajectory is read-only and safe for concurrent readers.
// Points are strictly increasing in frame index and at most one carries
// the bounce flag.
type Trajectory struct {
	DeliveryID string            `json:"delivery_id"`
	Points     []TrajectoryPoint `json:"points"`

	// Metrics, valid only once Finalized.
	SpeedKmh    float64 `json:"speed_kmh"`
	DeviationPx float64 `json:"deviation_px"` // mean lateral deviation from the straight-line chord
	Complete    bool    `json:"complete"`     // false when detection confidence was persistently low

	BounceIndex int  `json:"bounce_index"` // index into Points, -1 when no bounce
	finalized   bool
}

// NewTrajectory creates an empty trajectory for a starting delivery.
func NewTrajectory(deliveryID string) *Trajectory {
	return &Trajectory{
		DeliveryID:  deliveryID,
		BounceIndex: -1,
	}
}

// Append adds a sample. Appends that would violate the strictly-increasing
// frame invariant or land on a finalized trajectory are dropped with a
// diagnostic; frame ordering is a caller contract, not a recoverable input.
func (t *Trajectory) Append(p TrajectoryPoint) {
	if t.finalized {
		monitoring.Logf("trajectory %s: append after finalize dropped (frame %d)", t.DeliveryID, p.Frame)
		return
	}
	if n := len(t.Points); n > 0 && p.Frame <= t.Points[n-1].Frame {
		monitoring.Logf("trajectory %s: non-increasing frame %d dropped", t.DeliveryID, p.Frame)
		return
	}
	t.Points = append(t.Points, p)
}

// MarkBounce flags the sample at index i as the bounce point. Only the
// first marking sticks; a trajectory has at most one bounce.
func (t *Trajectory) MarkBounce(i int) {
	if t.BounceIndex >= 0 || i < 0 || i >= len(t.Points) {
		return
	}
	t.BounceIndex = i
	t.Points[i].Bounce = true
}

// Bounce returns the bounce sample, or nil when no bounce was detected.
func (t *Trajectory) Bounce() *TrajectoryPoint {
	if t.BounceIndex < 0 || t.BounceIndex >= len(t.Points) {
		return nil
	}
	return &t.Points[t.BounceIndex]
}

// Len returns the number of samples.
func (t *Trajectory) Len() int { return len(t.Points) }

// Finalized reports whether metrics have been computed and the trajectory
// sealed.
func (t *Trajectory) Finalized() bool { return t.finalized }

// Start returns the first sample, or nil when empty.
func (t *Trajectory) Start() *TrajectoryPoint {
	if len(t.Points) == 0 {
		return nil
	}
	return &t.Points[0]
}

// End returns the last sample, or nil when empty.
func (t *Trajectory) End() *TrajectoryPoint {
	if len(t.Points) == 0 {
		return nil
	}
	return &t.Points[len(t.Points)-1]
}

// MeanConfidence returns the average detection confidence across samples.
func (t *Trajectory) MeanConfidence() float64 {
	if len(t.Points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range t.Points {
		sum += p.Confidence
	}
	return sum / float64(len(t.Points))
}

// Finalize computes the derived metrics and seals the trajectory:
//
//   - SpeedKmh from the straight-line pixel distance between first and last
//     sample over the elapsed frames, converted through the mapper.
//   - DeviationPx as the mean perpendicular distance of interior samples
//     from the first→last chord.
//   - Complete is false when the mean detection confidence sat below the
//     floor, signalling a detection-gap-degraded delivery.
//
// Finalize is idempotent; repeated calls are no-ops.
func (t *Trajectory) Finalize(m *calib.Mapper, fps float64) {
	if t.finalized {
		return
	}
	t.finalized = true

	t.Complete = t.MeanConfidence() >= defaultConfidenceFloor && len(t.Points) > 1

	if len(t.Points) > 1 {
		first := t.Points[0]
		last := t.Points[len(t.Points)-1]
		frames := float64(last.Frame - first.Frame)
		if frames > 0 && m != nil {
			pxPerFrame := geom.Dist(first.Pixel, last.Pixel) / frames
			t.SpeedKmh = m.SpeedKmh(pxPerFrame, fps)
		}
	}

	if len(t.Points) >= 3 {
		first := t.Points[0].Pixel
		last := t.Points[len(t.Points)-1].Pixel
		var total float64
		for i := 1; i < len(t.Points)-1; i++ {
			total += geom.PerpendicularDistance(t.Points[i].Pixel, first, last)
		}
		t.DeviationPx = total / float64(len(t.Points)-2)
	}
}

// PreImpactPoints returns the samples strictly before the given frame.
func (t *Trajectory) PreImpactPoints(frame int64) []TrajectoryPoint {
	var out []TrajectoryPoint
	for _, p := range t.Points {
		if p.Frame < frame {
			out = append(out, p)
		}
	}
	return out
}

// PointAtFrame returns the sample at the exact frame, or the nearest
// earlier sample when the frame fell in a detection gap. Returns nil when
// the frame precedes the trajectory.
func (t *Trajectory) PointAtFrame(frame int64) *TrajectoryPoint {
	var best *TrajectoryPoint
	for i := range t.Points {
		if t.Points[i].Frame <= frame {
			best = &t.Points[i]
		} else {
			break
		}
	}
	return best
}

// CreaseCrossing returns the interpolated pixel position where the path
// crosses the horizontal line y = creaseY, interpolating between the two
// bracketing samples when the crossing falls between frames. The second
// return is false when the trajectory never reaches the crease; callers
// then fall back to the final sample.
func (t *Trajectory) CreaseCrossing(creaseY float64) (geom.Point, bool) {
	for i := 1; i < len(t.Points); i++ {
		a := t.Points[i-1].Pixel
		b := t.Points[i].Pixel
		if (a.Y <= creaseY && b.Y >= creaseY) || (a.Y >= creaseY && b.Y <= creaseY) {
			if a.Y == b.Y {
				return a, true
			}
			frac := (creaseY - a.Y) / (b.Y - a.Y)
			return geom.Lerp(a, b, frac), true
		}
	}
	return geom.Point{}, false
}

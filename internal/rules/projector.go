package rules

import (
	"github.com/gully-data/crease.review/internal/geom"
	"github.com/gully-data/crease.review/internal/track"
)

// Ceiling on projected frames. At typical frame rates this is several
// seconds of flight, far beyond any pitch; hitting it means the motion
// state could not carry the ball to the stumps.
const maxProjectionSteps = 300

// PathProjector extrapolates a motion state forward frame by frame under
// the filtered velocity and acceleration plus gravity. It is lazy (one
// step per Next call) and restartable, so the same seed state can be
// projected to several targets.
type PathProjector struct {
	seed    track.TrajectoryPoint
	gravity float64

	x, y   float64
	vx, vy float64
	steps  int
}

// NewPathProjector seeds a projector from a trajectory sample, typically
// the last clean pre-impact point.
func NewPathProjector(seed track.TrajectoryPoint, gravityPxPerFrame2 float64) *PathProjector {
	p := &PathProjector{seed: seed, gravity: gravityPxPerFrame2}
	p.Restart()
	return p
}

// Restart rewinds the projector to its seed state.
func (p *PathProjector) Restart() {
	p.x = p.seed.Pixel.X
	p.y = p.seed.Pixel.Y
	p.vx = p.seed.VX
	p.vy = p.seed.VY
	p.steps = 0
}

// Next advances one frame and returns the new position. The second return
// is false once the step ceiling is reached.
func (p *PathProjector) Next() (geom.Point, bool) {
	if p.steps >= maxProjectionSteps {
		return geom.Point{}, false
	}
	p.steps++

	ay := p.seed.AY + p.gravity
	p.x += p.vx + p.seed.AX/2
	p.y += p.vy + ay/2
	p.vx += p.seed.AX
	p.vy += ay
	return geom.Point{X: p.x, Y: p.y}, true
}

// ProjectToY iterates until the path reaches the horizontal line
// y = targetY, interpolating the crossing between the bracketing steps.
// Returns the crossing point, the stepped path up to it, and whether the
// target was reached. The seed must be moving toward the target or the
// projection exhausts its step ceiling.
func (p *PathProjector) ProjectToY(targetY float64) (geom.Point, []geom.Point, bool) {
	p.Restart()

	prev := p.seed.Pixel
	if prev.Y >= targetY {
		return prev, nil, true
	}

	var path []geom.Point
	for {
		cur, ok := p.Next()
		if !ok {
			return geom.Point{}, path, false
		}
		if cur.Y >= targetY {
			frac := 1.0
			if cur.Y != prev.Y {
				frac = (targetY - prev.Y) / (cur.Y - prev.Y)
			}
			crossing := geom.Lerp(prev, cur, frac)
			path = append(path, crossing)
			return crossing, path, true
		}
		path = append(path, cur)
		prev = cur
	}
}

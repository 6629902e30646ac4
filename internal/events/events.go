// Package events detects the physical events of a finished delivery from
// its trajectory: the bounce (at most one) and the impacts, each classified
// against the calibrated scene geometry.
package events

import (
	"math"

	"github.com/gully-data/crease.review/internal/calib"
	"github.com/gully-data/crease.review/internal/geom"
	"github.com/gully-data/crease.review/internal/monitoring"
	"github.com/gully-data/crease.review/internal/track"
)

// Surface is what the ball hit.
type Surface string

const (
	SurfaceStumps  Surface = "stumps"
	SurfaceWall    Surface = "wall"
	SurfaceGround  Surface = "ground"
	SurfaceBat     Surface = "bat"
	SurfacePad     Surface = "pad"
	SurfaceUnknown Surface = "unknown"
)

// Impact is one detected collision: a frame where the filtered velocity
// changed sharply, classified by where in the scene it happened.
type Impact struct {
	Frame          int64      `json:"frame"`
	Pixel          geom.Point `json:"pixel"`
	VelocityChange float64    `json:"velocity_change"` // px/frame
	Surface        Surface    `json:"surface"`
	Confidence     float64    `json:"confidence"`
}

// PlayerBox is the batsman's bounding box for a frame window, supplied by
// the upstream person detector when available. Tag disambiguates bat from
// pad contact; an untagged or missing box defaults to pad, the safer call
// for LBW.
type PlayerBox struct {
	Box geom.Rect `json:"box"`
	Tag Surface   `json:"tag"`
}

// Config holds the event-detection thresholds.
type Config struct {
	// ImpactThresholdPx is the per-frame velocity change above which a
	// frame registers as an impact.
	ImpactThresholdPx float64
	// CooldownFrames suppresses further impacts this many frames after one
	// fires, so a single collision is not reported once per frame while the
	// filter settles.
	CooldownFrames int
	// StumpTolerance widens the stump zone used for impact classification.
	StumpTolerance float64
}

// DefaultConfig returns the production detection thresholds.
func DefaultConfig() Config {
	return Config{
		ImpactThresholdPx: 12,
		CooldownFrames:    3,
		StumpTolerance:    1.0,
	}
}

// Detector scans finalized trajectories for bounces and impacts.
type Detector struct {
	cfg Config
	m   *calib.Mapper
}

// NewDetector creates a detector against the given calibration. Zero config
// fields fall back to defaults.
func NewDetector(cfg Config, m *calib.Mapper) *Detector {
	def := DefaultConfig()
	if cfg.ImpactThresholdPx <= 0 {
		cfg.ImpactThresholdPx = def.ImpactThresholdPx
	}
	if cfg.CooldownFrames <= 0 {
		cfg.CooldownFrames = def.CooldownFrames
	}
	if cfg.StumpTolerance <= 0 {
		cfg.StumpTolerance = def.StumpTolerance
	}
	return &Detector{cfg: cfg, m: m}
}

// ScanBounce finds the bounce, the first frame where the vertical velocity
// flips from downward to upward (positive to negative in image space), and
// marks it on the trajectory. Returns the bounce index, or -1 when the
// delivery never bounced (a full toss). Idempotent: a trajectory already
// carrying a bounce keeps it.
func (d *Detector) ScanBounce(t *track.Trajectory) int {
	if t.BounceIndex >= 0 {
		return t.BounceIndex
	}
	for i := 1; i < t.Len(); i++ {
		prev := t.Points[i-1]
		cur := t.Points[i]
		if prev.VY > 0 && cur.VY < 0 {
			t.MarkBounce(i)
			monitoring.Logf("events: bounce at frame %d (%.0f, %.0f)", cur.Frame, cur.Pixel.X, cur.Pixel.Y)
			return i
		}
	}
	return -1
}

// DetectImpacts scans the trajectory for frames where the velocity changed
// by more than the threshold and classifies each against the scene.
// ScanBounce must run first so post-bounce ground contact classifies
// correctly; callers use Scan to get the ordering for free.
func (d *Detector) DetectImpacts(t *track.Trajectory, player *PlayerBox) []Impact {
	var impacts []Impact
	cooldown := 0

	for i := 1; i < t.Len(); i++ {
		if cooldown > 0 {
			cooldown--
			continue
		}
		prev := t.Points[i-1]
		cur := t.Points[i]

		dvx := cur.VX - prev.VX
		dvy := cur.VY - prev.VY
		dv := math.Hypot(dvx, dvy)
		if dv < d.cfg.ImpactThresholdPx {
			continue
		}

		// The bounce is its own event, not an impact.
		if i == t.BounceIndex {
			cooldown = d.cfg.CooldownFrames
			continue
		}

		imp := Impact{
			Frame:          cur.Frame,
			Pixel:          cur.Pixel,
			VelocityChange: dv,
			Surface:        d.classify(t, i, player),
			Confidence:     impactConfidence(dv, d.cfg.ImpactThresholdPx),
		}
		impacts = append(impacts, imp)
		cooldown = d.cfg.CooldownFrames
	}
	return impacts
}

// Scan runs bounce detection then impact detection on a finalized
// trajectory.
func (d *Detector) Scan(t *track.Trajectory, player *PlayerBox) []Impact {
	d.ScanBounce(t)
	return d.DetectImpacts(t, player)
}

// classify maps an impact to a surface. Precedence: stump zone, then wall,
// then post-bounce ground level, then the player box, else unknown.
func (d *Detector) classify(t *track.Trajectory, i int, player *PlayerBox) Surface {
	p := t.Points[i].Pixel

	if d.m != nil {
		if d.m.StumpZone(d.cfg.StumpTolerance).Contains(p) {
			return SurfaceStumps
		}
		cal := d.m.Calibration()
		if len(cal.Wall.Polygon) >= 3 && cal.Wall.Polygon.Contains(p) {
			return SurfaceWall
		}
		if t.BounceIndex >= 0 && i > t.BounceIndex && p.Y >= d.m.GroundLevelY() {
			return SurfaceGround
		}
	}

	if player != nil && player.Box.Contains(p) {
		if player.Tag == SurfaceBat {
			return SurfaceBat
		}
		return SurfacePad
	}

	return SurfaceUnknown
}

// impactConfidence maps the velocity change magnitude to [0,1], saturating
// at twice the detection threshold.
func impactConfidence(dv, threshold float64) float64 {
	return math.Min(1, dv/(2*threshold))
}

package calib

import (
	"math"

	"github.com/gully-data/crease.review/internal/geom"
)

// Pixel extent of the wide-line overlay segments below the batting crease.
const wideLineOverlayLengthPx = 100

// Mapper converts pixel distances and positions to real-world units using
// the calibrated reference points, and derives the rule-engine zones
// (stump zone, wide corridor) from the stump positions. It is stateless
// after construction: the scale factor and calibration inputs are fixed.
type Mapper struct {
	scale float64 // pixels per metre
	cal   Calibration
}

// NewMapper derives the pixel-per-metre scale from the pixel distance
// between the two crease anchors and the measured pitch length. Returns a
// *CalibrationError when the pitch length is not positive or the crease
// anchors coincide.
func NewMapper(cal Calibration) (*Mapper, error) {
	if cal.Pitch.PitchLengthM <= 0 {
		return nil, &CalibrationError{Reason: "pitch length must be positive"}
	}
	pixelDist := geom.Dist(cal.Pitch.BowlingCreasePx, cal.Pitch.BattingCreasePx)
	if pixelDist <= 0 {
		return nil, &CalibrationError{Reason: "crease reference points coincide"}
	}
	return &Mapper{
		scale: pixelDist / cal.Pitch.PitchLengthM,
		cal:   cal,
	}, nil
}

// Scale returns the derived scale factor in pixels per metre.
func (m *Mapper) Scale() float64 { return m.scale }

// Calibration returns the calibration the mapper was built from.
func (m *Mapper) Calibration() Calibration { return m.cal }

// PixelsToMeters converts a pixel distance to metres.
func (m *Mapper) PixelsToMeters(px float64) float64 {
	return px / m.scale
}

// MetersToPixels converts a distance in metres to pixels.
func (m *Mapper) MetersToPixels(meters float64) float64 {
	return meters * m.scale
}

// SpeedKmh converts a pixel velocity in pixels per frame to km/h:
// px/frame ÷ scale × fps × 3.6.
func (m *Mapper) SpeedKmh(pxPerFrame, fps float64) float64 {
	metersPerSecond := m.PixelsToMeters(pxPerFrame) * fps
	return metersPerSecond * 3.6
}

// WideLineXs returns the pixel x-coordinates of the off-side and leg-side
// wide lines. Each line sits the configured corridor distance beyond its
// stump, on the far side from the wicket regardless of which way the off
// side faces in the image.
func (m *Mapper) WideLineXs() (offX, legX float64) {
	offStumpX := m.cal.BattingStumps.OffStumpPx.X
	legStumpX := m.cal.BattingStumps.LegStumpPx.X
	offPx := m.MetersToPixels(m.cal.Wide.OffSideDistanceM)
	legPx := m.MetersToPixels(m.cal.Wide.LegSideDistanceM)

	if offStumpX <= legStumpX {
		return offStumpX - offPx, legStumpX + legPx
	}
	return offStumpX + offPx, legStumpX - legPx
}

// WideLines returns the wide-corridor overlay segments: vertical lines at
// the wide-line x positions, dropped from the batting crease.
func (m *Mapper) WideLines() (off, leg geom.Segment) {
	offX, legX := m.WideLineXs()
	creaseY := m.cal.Pitch.BattingCreasePx.Y
	off = geom.Segment{
		A: geom.Point{X: offX, Y: creaseY},
		B: geom.Point{X: offX, Y: creaseY + wideLineOverlayLengthPx},
	}
	leg = geom.Segment{
		A: geom.Point{X: legX, Y: creaseY},
		B: geom.Point{X: legX, Y: creaseY + wideLineOverlayLengthPx},
	}
	return off, leg
}

// StumpZone returns the rectangle spanning the three stumps expanded by the
// tolerance multiplier: centred between off and leg stump, with width
// stumpWidth × tolerance and height covering the stumps with a small margin
// above the tops and below the bases.
func (m *Mapper) StumpZone(tolerance float64) geom.Rect {
	s := m.cal.BattingStumps
	centerX := (s.OffStumpPx.X + s.LegStumpPx.X) / 2
	halfWidth := s.StumpWidthPx * tolerance / 2

	topY := math.Min(s.OffStumpPx.Y, s.LegStumpPx.Y) - 10
	bottomY := math.Max(s.OffStumpPx.Y, s.LegStumpPx.Y) + s.StumpHeightPx

	return geom.Rect{
		Min: geom.Point{X: centerX - halfWidth, Y: topY},
		Max: geom.Point{X: centerX + halfWidth, Y: bottomY},
	}
}

// InStumpLine reports whether a lateral pixel position is within the
// tolerance-expanded stump corridor. Only the x-axis matters: pitching and
// impact in-line checks ignore height.
func (m *Mapper) InStumpLine(x, tolerance float64) bool {
	zone := m.StumpZone(tolerance)
	return x >= zone.Min.X && x <= zone.Max.X
}

// GroundLevelY returns the pixel y below which a post-bounce impact is
// classified as ground contact: the lowest stump-top y of the batting end.
func (m *Mapper) GroundLevelY() float64 {
	s := m.cal.BattingStumps
	return math.Max(s.OffStumpPx.Y, math.Max(s.MiddleStumpPx.Y, s.LegStumpPx.Y))
}

// NearestStump returns which stump ("off", "middle" or "leg") is closest
// to the given pixel position.
func (m *Mapper) NearestStump(p geom.Point) string {
	s := m.cal.BattingStumps
	dOff := geom.Dist(p, s.OffStumpPx)
	dMiddle := geom.Dist(p, s.MiddleStumpPx)
	dLeg := geom.Dist(p, s.LegStumpPx)

	switch {
	case dOff <= dMiddle && dOff <= dLeg:
		return "off"
	case dMiddle <= dLeg:
		return "middle"
	default:
		return "leg"
	}
}

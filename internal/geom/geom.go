// Package geom provides the small amount of 2D pixel-space geometry shared
// by the calibration mapper, the event detector and the rule engines:
// points, segments, axis-aligned rectangles and simple polygons.
package geom

import "math"

// Point is a 2D position in pixel space. X grows laterally across the
// pitch (off side to leg side for a right-hander), Y grows down the image.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Segment is a line segment between two points.
type Segment struct {
	A Point `json:"a"`
	B Point `json:"b"`
}

// Rect is an axis-aligned rectangle. Min is the top-left corner in image
// coordinates (smallest X and Y), Max the bottom-right.
type Rect struct {
	Min Point `json:"min"`
	Max Point `json:"max"`
}

// Polygon is an ordered list of vertices describing a simple closed polygon.
type Polygon []Point

// Dist returns the Euclidean distance between two points.
func Dist(a, b Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Contains reports whether p lies inside the rectangle (inclusive bounds).
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

// Width returns the rectangle width.
func (r Rect) Width() float64 { return r.Max.X - r.Min.X }

// Height returns the rectangle height.
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

// Center returns the rectangle centre point.
func (r Rect) Center() Point {
	return Point{X: (r.Min.X + r.Max.X) / 2, Y: (r.Min.Y + r.Max.Y) / 2}
}

// Vertices returns the rectangle corners as a polygon, clockwise from the
// top-left. Used to hand rectangles to overlay renderers that draw polygons.
func (r Rect) Vertices() Polygon {
	return Polygon{
		{X: r.Min.X, Y: r.Min.Y},
		{X: r.Max.X, Y: r.Min.Y},
		{X: r.Max.X, Y: r.Max.Y},
		{X: r.Min.X, Y: r.Max.Y},
	}
}

// Contains reports whether p lies inside the polygon using the ray casting
// algorithm. Polygons with fewer than 3 vertices contain nothing.
func (poly Polygon) Contains(p Point) bool {
	n := len(poly)
	if n < 3 {
		return false
	}

	inside := false
	p1 := poly[0]
	for i := 1; i <= n; i++ {
		p2 := poly[i%n]
		if p.Y > math.Min(p1.Y, p2.Y) && p.Y <= math.Max(p1.Y, p2.Y) && p.X <= math.Max(p1.X, p2.X) {
			var xIntersect float64
			if p1.Y != p2.Y {
				xIntersect = (p.Y-p1.Y)*(p2.X-p1.X)/(p2.Y-p1.Y) + p1.X
			}
			if p1.X == p2.X || p.X <= xIntersect {
				inside = !inside
			}
		}
		p1 = p2
	}
	return inside
}

// PerpendicularDistance returns the distance from p to the infinite line
// through a and b. Returns the distance to a when a and b coincide.
func PerpendicularDistance(p, a, b Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	length := math.Sqrt(dx*dx + dy*dy)
	if length == 0 {
		return Dist(p, a)
	}
	return math.Abs(dy*p.X-dx*p.Y+b.X*a.Y-b.Y*a.X) / length
}

// Lerp linearly interpolates between a and b; t=0 yields a, t=1 yields b.
func Lerp(a, b Point, t float64) Point {
	return Point{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
	}
}

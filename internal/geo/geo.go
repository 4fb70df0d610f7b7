// Package geo provides the planar geometry and angle arithmetic used by
// calibration, fusion, and steering. Arena coordinates are normalized so
// the four corner markers span the unit square; angles are radians.
package geo

import "math"

// Point is a position in arena-normalized coordinates. Both axes are in
// [0, 1] while the point lies inside the arena.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pixel is a position in one camera's raw pixel space. Pixel coordinates
// from different cameras are not comparable.
type Pixel struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dist returns the Euclidean distance between p and q.
func Dist(p, q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// Bearing returns the direction from p toward q in radians.
func Bearing(p, q Point) float64 {
	return math.Atan2(q.Y-p.Y, q.X-p.X)
}

// Midpoint returns the point halfway between p and q.
func Midpoint(p, q Point) Point {
	return Point{X: (p.X + q.X) / 2, Y: (p.Y + q.Y) / 2}
}

// NormalizeAngle wraps a into the half-open interval (-π, π].
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a > math.Pi {
		a -= 2 * math.Pi
	}
	if a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// AngleDiff returns the shortest signed angle from b to a, in (-π, π].
func AngleDiff(a, b float64) float64 {
	return NormalizeAngle(a - b)
}

// CircularMean averages angles on the circle, avoiding the wraparound
// error a linear mean would produce near ±π.
func CircularMean(angles ...float64) float64 {
	var sin, cos float64
	for _, a := range angles {
		sin += math.Sin(a)
		cos += math.Cos(a)
	}
	return math.Atan2(sin, cos)
}

// Package arena maps camera pixel space onto the normalized arena
// square using the four fixed corner markers.
package arena

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/arena-rover/pilot/internal/geo"
	"github.com/arena-rover/pilot/internal/marker"
	"github.com/arena-rover/pilot/internal/monitoring"
)

// DefaultGraceTicks bounds how long a calibration survives frames that
// drop one or more corner markers. Reuse, never extrapolate.
const DefaultGraceTicks = 5

// cornerTarget returns where each arena corner lands in normalized
// coordinates. Y grows downward, matching image coordinates.
func cornerTarget(c marker.Corner) geo.Point {
	switch c {
	case marker.TopLeft:
		return geo.Point{X: 0, Y: 0}
	case marker.TopRight:
		return geo.Point{X: 1, Y: 0}
	case marker.BottomLeft:
		return geo.Point{X: 0, Y: 1}
	default:
		return geo.Point{X: 1, Y: 1}
	}
}

// Calibration is a planar projective transform from one camera's pixel
// space to arena-normalized coordinates. It is valid only for the
// camera whose corner observations produced it.
type Calibration struct {
	h [9]float64 // row-major homography, h[8] == 1
}

// Fit computes the exact four-point homography taking each observed
// corner pixel to its unit-square position. All four corners must be
// present; a degenerate layout (collinear corners) is an error.
func Fit(corners map[marker.Corner]geo.Pixel) (*Calibration, error) {
	if len(corners) != 4 {
		return nil, fmt.Errorf("calibration needs 4 corners, have %d", len(corners))
	}

	// Each correspondence (x,y)->(u,v) contributes two rows of the
	// standard DLT system with h22 pinned to 1.
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	row := 0
	for corner, px := range corners {
		dst := cornerTarget(corner)
		a.SetRow(row, []float64{px.X, px.Y, 1, 0, 0, 0, -dst.X * px.X, -dst.X * px.Y})
		b.SetVec(row, dst.X)
		row++
		a.SetRow(row, []float64{0, 0, 0, px.X, px.Y, 1, -dst.Y * px.X, -dst.Y * px.Y})
		b.SetVec(row, dst.Y)
		row++
	}

	var h mat.VecDense
	if err := h.SolveVec(a, b); err != nil {
		return nil, fmt.Errorf("degenerate corner layout: %w", err)
	}

	var cal Calibration
	for i := 0; i < 8; i++ {
		cal.h[i] = h.AtVec(i)
	}
	cal.h[8] = 1
	return &cal, nil
}

// Project maps a pixel into arena coordinates.
func (c *Calibration) Project(p geo.Pixel) geo.Point {
	w := c.h[6]*p.X + c.h[7]*p.Y + c.h[8]
	if math.Abs(w) < 1e-12 {
		w = 1e-12
	}
	return geo.Point{
		X: (c.h[0]*p.X + c.h[1]*p.Y + c.h[2]) / w,
		Y: (c.h[3]*p.X + c.h[4]*p.Y + c.h[5]) / w,
	}
}

// ProjectHeading converts an image-frame heading at pixel p into the
// arena frame by projecting a short probe along the heading ray and
// taking the direction between the two projected points.
func (c *Calibration) ProjectHeading(p geo.Pixel, heading float64) float64 {
	const probePx = 10.0
	q := geo.Pixel{
		X: p.X + probePx*math.Cos(heading),
		Y: p.Y + probePx*math.Sin(heading),
	}
	return geo.Bearing(c.Project(p), c.Project(q))
}

// Calibrator owns the current calibration for one camera and enforces
// the bounded reuse window. Corners are physically static, so every
// complete frame recomputes the transform fresh with no smoothing.
type Calibrator struct {
	camera     string
	graceTicks int

	cal *Calibration
	age int
}

// NewCalibrator creates a calibrator for the named camera. graceTicks
// <= 0 selects DefaultGraceTicks.
func NewCalibrator(camera string, graceTicks int) *Calibrator {
	if graceTicks <= 0 {
		graceTicks = DefaultGraceTicks
	}
	return &Calibrator{camera: camera, graceTicks: graceTicks}
}

// Observe ingests one tick's observations for this camera and returns
// the calibration usable this tick, or nil when unavailable. It must be
// called exactly once per tick so the grace window ages correctly.
func (c *Calibrator) Observe(obs []marker.Observation, roles marker.RoleMap) *Calibration {
	corners := make(map[marker.Corner]geo.Pixel, 4)
	for _, o := range obs {
		if corner, ok := roles.CornerOf(o.ID); ok {
			corners[corner] = o.Center
		}
	}

	if len(corners) == 4 {
		cal, err := Fit(corners)
		if err != nil {
			monitoring.Logf("arena: %s: calibration fit failed: %v", c.camera, err)
		} else {
			c.cal = cal
			c.age = 0
			return cal
		}
	}

	if c.cal == nil {
		return nil
	}
	c.age++
	if c.age > c.graceTicks {
		monitoring.Debugf("arena: %s: calibration expired after %d ticks", c.camera, c.age)
		c.cal = nil
		return nil
	}
	return c.cal
}

// Age returns how many ticks the current calibration has been reused
// without a complete corner frame.
func (c *Calibrator) Age() int { return c.age }

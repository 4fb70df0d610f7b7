// Package marker defines the contract with the external fiducial-marker
// detector and the typed observations the rest of the pilot consumes.
//
// The detection algorithm itself (locating and decoding square binary
// markers) is an external collaborator; this package only fixes the
// shape of its output and the mapping from marker IDs to arena roles.
package marker

import (
	"context"
	"image"
	"math"

	"github.com/arena-rover/pilot/internal/geo"
)

// RawDetection is one decoded marker as reported by the detector: the
// four corners of the marker quad in pixel space, ordered top-left,
// top-right, bottom-right, bottom-left.
type RawDetection struct {
	ID      int
	Corners [4]geo.Pixel
}

// Observation is a single typed marker reading from one camera frame.
// Observations are discarded after the tick that consumes them.
type Observation struct {
	ID      int
	Center  geo.Pixel
	Heading float64 // radians, image frame
	Camera  string
}

// Detector locates square binary markers in a camera frame.
// Implementations wrap an external detection library or service.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]RawDetection, error)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(ctx context.Context, img image.Image) ([]RawDetection, error)

// Detect calls f.
func (f DetectorFunc) Detect(ctx context.Context, img image.Image) ([]RawDetection, error) {
	return f(ctx, img)
}

// FromRaw converts a raw detection into an Observation. The center is
// the centroid of the quad; the heading points from the centroid toward
// the midpoint of the marker's top edge, which is the vehicle's forward
// direction when the marker is mounted upright.
func FromRaw(d RawDetection, camera string) Observation {
	var cx, cy float64
	for _, c := range d.Corners {
		cx += c.X
		cy += c.Y
	}
	cx /= 4
	cy /= 4

	fx := (d.Corners[0].X + d.Corners[1].X) / 2
	fy := (d.Corners[0].Y + d.Corners[1].Y) / 2

	return Observation{
		ID:      d.ID,
		Center:  geo.Pixel{X: cx, Y: cy},
		Heading: math.Atan2(fy-cy, fx-cx),
		Camera:  camera,
	}
}

// Corner identifies one arena corner.
type Corner int

const (
	TopLeft Corner = iota
	TopRight
	BottomLeft
	BottomRight
)

func (c Corner) String() string {
	switch c {
	case TopLeft:
		return "top-left"
	case TopRight:
		return "top-right"
	case BottomLeft:
		return "bottom-left"
	case BottomRight:
		return "bottom-right"
	default:
		return "corner(?)"
	}
}

// RoleMap assigns marker IDs to their arena roles, keeping the
// corner-vs-vehicle decision in one lookup table.
type RoleMap struct {
	Corners map[int]Corner
	Vehicle int
}

// DefaultRoles returns the arena's standard marker assignment.
func DefaultRoles() RoleMap {
	return RoleMap{
		Corners: map[int]Corner{
			13: TopLeft,
			11: TopRight,
			14: BottomLeft,
			12: BottomRight,
		},
		Vehicle: 9,
	}
}

// CornerOf reports which arena corner the marker ID designates, if any.
func (r RoleMap) CornerOf(id int) (Corner, bool) {
	c, ok := r.Corners[id]
	return c, ok
}

// IsVehicle reports whether the marker ID is the vehicle's.
func (r RoleMap) IsVehicle(id int) bool {
	return id == r.Vehicle
}

// Package fusion combines per-camera vehicle sightings into a single
// arena-frame pose estimate.
package fusion

import (
	"github.com/arena-rover/pilot/internal/geo"
	"github.com/arena-rover/pilot/internal/monitoring"
)

// Pose is the fused vehicle estimate for one tick. AgeTicks counts
// ticks since the estimate was produced; Fuse always returns age 0.
type Pose struct {
	Position geo.Point `json:"position"`
	Heading  float64   `json:"heading"`
	AgeTicks int       `json:"age_ticks"`
}

// Sight is one camera's projected view of the vehicle this tick:
// the marker center and heading already mapped into arena coordinates
// through that camera's calibration.
type Sight struct {
	Position geo.Point
	Heading  float64
	Camera   string
}

// Fuser applies the per-tick fusion policy. It never returns a stale
// pose: zero valid sightings this tick means no pose this tick.
type Fuser struct {
	// maxDisagreement is the largest position spread (arena units)
	// two cameras may show before one is rejected as an outlier.
	// Zero disables rejection and always averages.
	maxDisagreement float64

	last *Pose
}

// NewFuser creates a Fuser with the given outlier-disagreement bound.
func NewFuser(maxDisagreement float64) *Fuser {
	return &Fuser{maxDisagreement: maxDisagreement}
}

// Fuse returns the fused pose for this tick. ok is false when no camera
// produced a usable sighting.
func (f *Fuser) Fuse(sights []Sight) (Pose, bool) {
	switch {
	case len(sights) == 0:
		return Pose{}, false

	case len(sights) == 1:
		return f.accept(Pose{Position: sights[0].Position, Heading: sights[0].Heading}), true

	case len(sights) == 2 && f.maxDisagreement > 0 &&
		geo.Dist(sights[0].Position, sights[1].Position) > f.maxDisagreement:
		pick := f.nearerToLast(sights[0], sights[1])
		monitoring.Logf("fusion: cameras disagree by %.3f (> %.3f), using %s",
			geo.Dist(sights[0].Position, sights[1].Position), f.maxDisagreement, pick.Camera)
		return f.accept(Pose{Position: pick.Position, Heading: pick.Heading}), true
	}

	var sum geo.Point
	headings := make([]float64, len(sights))
	for i, s := range sights {
		sum.X += s.Position.X
		sum.Y += s.Position.Y
		headings[i] = s.Heading
	}
	n := float64(len(sights))
	pose := Pose{
		Position: geo.Point{X: sum.X / n, Y: sum.Y / n},
		Heading:  geo.CircularMean(headings...),
	}
	return f.accept(pose), true
}

func (f *Fuser) accept(p Pose) Pose {
	f.last = &p
	return p
}

// nearerToLast breaks a disagreement in favor of the sight closest to
// the previous fused position; with no history the first camera wins.
func (f *Fuser) nearerToLast(a, b Sight) Sight {
	if f.last == nil {
		return a
	}
	if geo.Dist(b.Position, f.last.Position) < geo.Dist(a.Position, f.last.Position) {
		return b
	}
	return a
}

package fusion

import (
	"log"
	"math"
	"testing"

	"github.com/arena-rover/pilot/internal/geo"
	"github.com/arena-rover/pilot/internal/monitoring"
)

func TestFuseNoSightings(t *testing.T) {
	f := NewFuser(0)

	// Zero valid observations must never produce a pose, even after a
	// previous tick succeeded.
	if _, ok := f.Fuse(nil); ok {
		t.Fatal("Fuse(nil) returned a pose")
	}

	f.Fuse([]Sight{{Position: geo.Point{X: 0.5, Y: 0.5}, Camera: "camera1"}})
	if _, ok := f.Fuse(nil); ok {
		t.Fatal("Fuse(nil) returned a stale pose after a successful tick")
	}
}

func TestFuseSingleCamera(t *testing.T) {
	f := NewFuser(0)
	pose, ok := f.Fuse([]Sight{{Position: geo.Point{X: 0.3, Y: 0.7}, Heading: 1.2, Camera: "camera2"}})
	if !ok {
		t.Fatal("expected a pose from a single sighting")
	}
	if pose.Position != (geo.Point{X: 0.3, Y: 0.7}) || pose.Heading != 1.2 {
		t.Errorf("pose = %+v, want position (0.3, 0.7) heading 1.2", pose)
	}
	if pose.AgeTicks != 0 {
		t.Errorf("AgeTicks = %d, want 0", pose.AgeTicks)
	}
}

func TestFuseTwoCameras(t *testing.T) {
	f := NewFuser(0)
	pose, ok := f.Fuse([]Sight{
		{Position: geo.Point{X: 0.4, Y: 0.4}, Heading: 0.1, Camera: "camera1"},
		{Position: geo.Point{X: 0.6, Y: 0.6}, Heading: 2*math.Pi - 0.1, Camera: "camera2"},
	})
	if !ok {
		t.Fatal("expected a fused pose")
	}
	if math.Abs(pose.Position.X-0.5) > 1e-12 || math.Abs(pose.Position.Y-0.5) > 1e-12 {
		t.Errorf("position = %+v, want (0.5, 0.5)", pose.Position)
	}
	// Circular averaging across the wraparound: 0.1 and 2π-0.1 must
	// fuse to ~0, not ~π.
	if math.Abs(pose.Heading) > 1e-9 {
		t.Errorf("heading = %v, want ~0", pose.Heading)
	}
}

func TestFuseDisagreementPicksNearerToLast(t *testing.T) {
	monitoring.SetLogger(nil)
	defer monitoring.SetLogger(log.Printf)

	f := NewFuser(0.1)

	// Establish history near (0.2, 0.2).
	f.Fuse([]Sight{{Position: geo.Point{X: 0.2, Y: 0.2}, Camera: "camera1"}})

	pose, ok := f.Fuse([]Sight{
		{Position: geo.Point{X: 0.8, Y: 0.8}, Heading: 1, Camera: "camera1"},
		{Position: geo.Point{X: 0.21, Y: 0.2}, Heading: 2, Camera: "camera2"},
	})
	if !ok {
		t.Fatal("expected a pose despite disagreement")
	}
	if pose.Position != (geo.Point{X: 0.21, Y: 0.2}) {
		t.Errorf("position = %+v, want the sight nearer the previous pose", pose.Position)
	}
	if pose.Heading != 2 {
		t.Errorf("heading = %v, want 2 (from the kept camera)", pose.Heading)
	}
}

func TestFuseDisagreementWithoutHistoryAverages(t *testing.T) {
	monitoring.SetLogger(nil)
	defer monitoring.SetLogger(log.Printf)

	f := NewFuser(0.1)
	pose, ok := f.Fuse([]Sight{
		{Position: geo.Point{X: 0.1, Y: 0.1}, Camera: "camera1"},
		{Position: geo.Point{X: 0.9, Y: 0.9}, Camera: "camera2"},
	})
	if !ok {
		t.Fatal("expected a pose")
	}
	// No previous pose to compare against: the first camera wins.
	if pose.Position != (geo.Point{X: 0.1, Y: 0.1}) {
		t.Errorf("position = %+v, want first camera's", pose.Position)
	}
}

func TestFuseDisagreementDisabled(t *testing.T) {
	f := NewFuser(0)
	pose, ok := f.Fuse([]Sight{
		{Position: geo.Point{X: 0.1, Y: 0.1}, Camera: "camera1"},
		{Position: geo.Point{X: 0.9, Y: 0.9}, Camera: "camera2"},
	})
	if !ok {
		t.Fatal("expected a pose")
	}
	if math.Abs(pose.Position.X-0.5) > 1e-12 {
		t.Errorf("position = %+v, want plain average with rejection disabled", pose.Position)
	}
}

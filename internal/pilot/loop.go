// Package pilot runs the per-tick control loop: fetch frames from both
// cameras in parallel, detect markers, refresh calibration, fuse the
// vehicle pose, step the navigation state machine, and hand the
// resulting command to the dispatcher.
package pilot

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/arena-rover/pilot/internal/arena"
	"github.com/arena-rover/pilot/internal/drive"
	"github.com/arena-rover/pilot/internal/fusion"
	"github.com/arena-rover/pilot/internal/marker"
	"github.com/arena-rover/pilot/internal/monitoring"
	"github.com/arena-rover/pilot/internal/nav"
	"github.com/arena-rover/pilot/internal/target"
	"github.com/arena-rover/pilot/internal/timeutil"
)

// DefaultTickInterval is the control cadence. It is bounded below by
// the actuator's minimum command interval.
const DefaultTickInterval = 100 * time.Millisecond

// FrameSource yields the latest frame from one camera.
type FrameSource interface {
	Name() string
	Frame(ctx context.Context) (image.Image, error)
}

// GoalSource supplies the current goal without blocking the tick.
type GoalSource interface {
	Goal() *target.Goal
}

// CommandSink receives the command computed each tick.
type CommandSink interface {
	Set(cmd drive.Command)
}

// Camera pairs one frame source with its independent calibrator; the
// two cameras never share a coordinate frame.
type Camera struct {
	Source FrameSource
	Cal    *arena.Calibrator
}

// Snapshot is the loop's latest externally visible state, published for
// the status API.
type Snapshot struct {
	Tick        uint64        `json:"tick"`
	State       string        `json:"state"`
	Pose        *fusion.Pose  `json:"pose,omitempty"`
	Goal        *target.Goal  `json:"goal,omitempty"`
	LossTicks   int           `json:"loss_ticks"`
	LastCommand drive.Command `json:"last_command"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Loop is the single-writer control loop. All mutable navigation state
// is owned here and mutated only at tick boundaries.
type Loop struct {
	clock    timeutil.Clock
	tick     time.Duration
	cameras  []*Camera
	detector marker.Detector
	roles    marker.RoleMap
	fuser    *fusion.Fuser
	nav      *nav.Navigator
	goals    GoalSource
	out      CommandSink

	ticks uint64

	mu   sync.RWMutex
	snap Snapshot
}

// New wires a control loop. tick <= 0 selects DefaultTickInterval.
func New(clock timeutil.Clock, tick time.Duration, cameras []*Camera, detector marker.Detector,
	roles marker.RoleMap, fuser *fusion.Fuser, navigator *nav.Navigator,
	goals GoalSource, out CommandSink) *Loop {
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	return &Loop{
		clock:    clock,
		tick:     tick,
		cameras:  cameras,
		detector: detector,
		roles:    roles,
		fuser:    fuser,
		nav:      navigator,
		goals:    goals,
		out:      out,
	}
}

// Snapshot returns the loop's latest published state.
func (l *Loop) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap
}

// Run executes ticks at the configured cadence until ctx is done. A
// tick always runs to completion; shutdown is only observed between
// ticks.
func (l *Loop) Run(ctx context.Context) {
	t := l.clock.NewTicker(l.tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			l.Tick(ctx)
		}
	}
}

// Tick runs one full observe → calibrate → fuse → steer cycle.
func (l *Loop) Tick(ctx context.Context) {
	l.ticks++

	goal := l.goals.Goal()
	if goal == nil {
		// The vehicle is never commanded before the first assignment.
		monitoring.Debugf("pilot: waiting for first goal")
		l.publish(nil, nil, drive.Stop())
		return
	}

	observations := l.observe(ctx)

	var sights []fusion.Sight
	for i, cam := range l.cameras {
		obs := observations[i]
		cal := cam.Cal.Observe(obs, l.roles)
		if cal == nil {
			continue
		}
		for _, o := range obs {
			if !l.roles.IsVehicle(o.ID) {
				continue
			}
			sights = append(sights, fusion.Sight{
				Position: cal.Project(o.Center),
				Heading:  cal.ProjectHeading(o.Center, o.Heading),
				Camera:   o.Camera,
			})
			break
		}
	}

	var posePtr *fusion.Pose
	if pose, ok := l.fuser.Fuse(sights); ok {
		posePtr = &pose
	}

	cmd := l.nav.Step(posePtr, goal.Point)
	l.out.Set(cmd)
	l.publish(posePtr, goal, cmd)

	if posePtr != nil {
		monitoring.Debugf("pilot: tick=%d state=%s pos=(%.3f,%.3f) hdg=%.2f goal=%s cmd(speed=%.2f flip=%t)",
			l.ticks, l.nav.State(), posePtr.Position.X, posePtr.Position.Y, posePtr.Heading,
			goal.Region, cmd.Speed, cmd.Flip)
	} else {
		monitoring.Debugf("pilot: tick=%d state=%s pose=unavailable miss=%d cmd(speed=%.2f flip=%t)",
			l.ticks, l.nav.State(), l.nav.LossCount(), cmd.Speed, cmd.Flip)
	}
}

// observe fetches both cameras in parallel and runs detection
// synchronously once both frames are in. A failed fetch or detection
// yields no observations for that camera this tick.
func (l *Loop) observe(ctx context.Context) [][]marker.Observation {
	frames := make([]image.Image, len(l.cameras))
	var wg sync.WaitGroup
	for i, cam := range l.cameras {
		wg.Add(1)
		go func(i int, src FrameSource) {
			defer wg.Done()
			img, err := src.Frame(ctx)
			if err != nil {
				monitoring.Logf("pilot: %v", err)
				return
			}
			frames[i] = img
		}(i, cam.Source)
	}
	wg.Wait()

	observations := make([][]marker.Observation, len(l.cameras))
	for i, cam := range l.cameras {
		if frames[i] == nil {
			continue
		}
		raw, err := l.detector.Detect(ctx, frames[i])
		if err != nil {
			monitoring.Logf("pilot: %s: detection failed: %v", cam.Source.Name(), err)
			continue
		}
		obs := make([]marker.Observation, 0, len(raw))
		for _, d := range raw {
			obs = append(obs, marker.FromRaw(d, cam.Source.Name()))
		}
		observations[i] = obs
	}
	return observations
}

func (l *Loop) publish(pose *fusion.Pose, goal *target.Goal, cmd drive.Command) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snap = Snapshot{
		Tick:        l.ticks,
		State:       l.nav.State().String(),
		Pose:        pose,
		Goal:        goal,
		LossTicks:   l.nav.LossCount(),
		LastCommand: cmd,
		UpdatedAt:   l.clock.Now(),
	}
}

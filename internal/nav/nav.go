// Package nav holds the navigation state machine that turns the fused
// pose and the current goal into drive commands.
package nav

import (
	"fmt"
	"math"

	"github.com/arena-rover/pilot/internal/drive"
	"github.com/arena-rover/pilot/internal/fusion"
	"github.com/arena-rover/pilot/internal/geo"
)

// State is the navigator's control state.
type State int

const (
	Searching State = iota
	Aligning
	Driving
	Arrived
)

func (s State) String() string {
	switch s {
	case Searching:
		return "SEARCHING"
	case Aligning:
		return "ALIGNING"
	case Driving:
		return "DRIVING"
	case Arrived:
		return "ARRIVED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// rearmFactor scales ArriveDist into the radius the vehicle must drift
// past before an arrived navigator resumes steering. Keeps the vehicle
// from oscillating on the arrival boundary.
const rearmFactor = 1.5

// Config holds the steering thresholds and gains. All values are
// configuration, never hardcoded per call site.
type Config struct {
	// AngleOK is the heading error (radians) below which the vehicle
	// drives forward instead of spinning.
	AngleOK float64
	// ArriveDist is the arrival radius in arena units.
	ArriveDist float64
	// GoalTolerance is how far the goal point must move to re-arm an
	// arrived vehicle.
	GoalTolerance float64
	// TurnPolarity is +1 or -1, compensating motor wiring asymmetry so
	// a positive heading error produces a turn that reduces it.
	TurnPolarity float64
	// SpinSpeed is the fixed magnitude of the SEARCHING sweep spin.
	SpinSpeed float64
	// TurnSpeed is the magnitude of ALIGNING correction spins.
	TurnSpeed float64
	// MinSpeed is the forward floor, above the motors' stall threshold.
	MinSpeed float64
	// MaxSpeed caps forward speed.
	MaxSpeed float64
	// SpeedScale is the distance (arena units) mapped onto full
	// forward speed: speed = clamp(dist/SpeedScale, MinSpeed, MaxSpeed).
	SpeedScale float64
	// LossTicks is how many consecutive ticks without a pose force the
	// SEARCHING state.
	LossTicks int
}

// DefaultConfig returns steering defaults tuned on the reference
// vehicle.
func DefaultConfig() Config {
	return Config{
		AngleOK:       0.50,
		ArriveDist:    0.08,
		GoalTolerance: 0.02,
		TurnPolarity:  -1,
		SpinSpeed:     0.45,
		TurnSpeed:     0.20,
		MinSpeed:      0.45,
		MaxSpeed:      0.85,
		SpeedScale:    0.50,
		LossTicks:     3,
	}
}

// Navigator is the control core: a finite-state machine stepped once
// per tick. It is single-writer state owned by the control loop.
type Navigator struct {
	cfg Config

	state     State
	lossCount int
	goal      geo.Point
	haveGoal  bool
	lastCmd   drive.Command
}

// New creates a navigator starting in SEARCHING.
func New(cfg Config) *Navigator {
	return &Navigator{cfg: cfg, state: Searching}
}

// State returns the current control state.
func (n *Navigator) State() State { return n.state }

// LossCount returns the consecutive ticks without a vehicle pose.
func (n *Navigator) LossCount() int { return n.lossCount }

// Step advances the state machine one tick. pose is nil when fusion
// produced no estimate this tick. The returned command is what the
// dispatcher should repeat until the next tick.
func (n *Navigator) Step(pose *fusion.Pose, goal geo.Point) drive.Command {
	if pose == nil {
		return n.stepLost()
	}
	n.lossCount = 0

	if n.state == Searching {
		n.state = Aligning
	}
	if n.haveGoal && n.state == Arrived && geo.Dist(goal, n.goal) > n.cfg.GoalTolerance {
		n.state = Aligning
	}
	n.goal = goal
	n.haveGoal = true

	dist := geo.Dist(pose.Position, goal)
	headingErr := geo.AngleDiff(geo.Bearing(pose.Position, goal), pose.Heading)

	switch {
	case n.state == Arrived && dist <= n.cfg.ArriveDist*rearmFactor:
		// Hold position until the goal moves or the vehicle drifts out.
	case dist < n.cfg.ArriveDist:
		n.state = Arrived
	case math.Abs(headingErr) > n.cfg.AngleOK:
		n.state = Aligning
	default:
		n.state = Driving
	}

	switch n.state {
	case Arrived:
		n.lastCmd = drive.Stop()
	case Aligning:
		n.lastCmd = drive.Command{
			Speed: float32(sign(headingErr) * n.cfg.TurnPolarity * n.cfg.TurnSpeed),
			Flip:  true,
		}
	default: // Driving
		speed := clamp(dist/n.cfg.SpeedScale, n.cfg.MinSpeed, n.cfg.MaxSpeed)
		n.lastCmd = drive.Command{Speed: float32(speed)}
	}
	return n.lastCmd
}

// stepLost handles a tick without a pose. Losing the marker for
// LossTicks consecutive ticks forces SEARCHING from any state; shorter
// dropouts keep the previous command so detection flicker does not
// stutter the vehicle.
func (n *Navigator) stepLost() drive.Command {
	n.lossCount++
	if n.lossCount < n.cfg.LossTicks {
		return n.lastCmd
	}
	n.state = Searching
	n.lastCmd = drive.Command{
		Speed: float32(n.cfg.SpinSpeed * n.cfg.TurnPolarity),
		Flip:  true,
	}
	return n.lastCmd
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

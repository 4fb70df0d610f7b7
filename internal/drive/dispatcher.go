// Package drive defines actuator commands and delivers them to the
// vehicle at a bounded cadence.
package drive

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/arena-rover/pilot/internal/httputil"
	"github.com/arena-rover/pilot/internal/monitoring"
	"github.com/arena-rover/pilot/internal/timeutil"
)

// MinCommandInterval is the actuator's minimum spacing between
// commands. The dispatcher never issues two requests closer than this.
const MinCommandInterval = 100 * time.Millisecond

// DefaultSendTimeout bounds a single dispatch attempt.
const DefaultSendTimeout = 500 * time.Millisecond

// Command is one actuator instruction. Flip spins the vehicle in place
// with the given signed magnitude; otherwise the vehicle drives straight
// at Speed. Commands are ephemeral and recomputed every tick.
type Command struct {
	Speed float32 `json:"speed"`
	Flip  bool    `json:"flip"`
}

// Stop is the safe idle command.
func Stop() Command { return Command{} }

// Dispatcher repeats the most recent command to the actuator endpoint
// on a fixed cadence, independent of how fast the control loop runs.
// The actuator treats silence as stop after about a second, so a failed
// send is logged and skipped rather than retried.
type Dispatcher struct {
	client   *httputil.AuthClient
	clock    timeutil.Clock
	url      string
	interval time.Duration
	timeout  time.Duration

	cur      atomic.Pointer[Command]
	lastSend time.Time // touched only by the Run goroutine
}

// NewDispatcher creates a dispatcher for the actuator at url. Intervals
// below MinCommandInterval are raised to it.
func NewDispatcher(client *httputil.AuthClient, clock timeutil.Clock, url string, interval time.Duration) *Dispatcher {
	if interval < MinCommandInterval {
		interval = MinCommandInterval
	}
	return &Dispatcher{
		client:   client,
		clock:    clock,
		url:      url,
		interval: interval,
		timeout:  DefaultSendTimeout,
	}
}

// Set replaces the command sent on subsequent dispatches. Safe to call
// from the control loop while Run is active.
func (d *Dispatcher) Set(cmd Command) {
	d.cur.Store(&cmd)
}

// Current returns the command the dispatcher is repeating, or ok=false
// before the first Set.
func (d *Dispatcher) Current() (Command, bool) {
	p := d.cur.Load()
	if p == nil {
		return Command{}, false
	}
	return *p, true
}

// Dispatch sends the current command once, honoring the inter-command
// interval. Nothing is sent before the first Set so the vehicle is
// never commanded during startup.
func (d *Dispatcher) Dispatch(ctx context.Context) {
	cmd := d.cur.Load()
	if cmd == nil {
		return
	}
	d.send(ctx, *cmd)
}

// Run dispatches once per interval until ctx is done, then parks the
// vehicle with a final stop command.
func (d *Dispatcher) Run(ctx context.Context) {
	t := d.clock.NewTicker(d.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			d.sendFinalStop()
			return
		case <-t.C():
			d.Dispatch(ctx)
		}
	}
}

func (d *Dispatcher) send(ctx context.Context, cmd Command) {
	if !d.lastSend.IsZero() && d.clock.Since(d.lastSend) < MinCommandInterval {
		return
	}
	d.lastSend = d.clock.Now()

	sctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.client.PutJSON(sctx, d.url, cmd); err != nil {
		// The actuator self-stops when commands lapse, so a missed
		// dispatch degrades safely.
		monitoring.Logf("drive: dispatch failed: %v", err)
		return
	}
	monitoring.Debugf("drive: sent speed=%.2f flip=%t", cmd.Speed, cmd.Flip)
}

// sendFinalStop waits out the inter-command interval if needed so the
// parking stop is never rate-limited away.
func (d *Dispatcher) sendFinalStop() {
	if !d.lastSend.IsZero() {
		if wait := MinCommandInterval - d.clock.Since(d.lastSend); wait > 0 {
			d.clock.Sleep(wait)
		}
	}
	d.lastSend = time.Time{}
	d.send(context.Background(), Stop())
}

// Package oracle polls the target-assignment endpoint on its own
// cadence and hands the latest goal to the control loop through one
// atomically replaced value.
package oracle

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arena-rover/pilot/internal/httputil"
	"github.com/arena-rover/pilot/internal/monitoring"
	"github.com/arena-rover/pilot/internal/target"
	"github.com/arena-rover/pilot/internal/timeutil"
)

// DefaultPollInterval matches the oracle's update cadence; the control
// loop never waits on a poll.
const DefaultPollInterval = 2 * time.Second

// DefaultPollTimeout bounds one oracle request.
const DefaultPollTimeout = 1 * time.Second

// Poller queries the oracle and publishes the most recently resolved
// goal. A failed or unresolvable poll retains the previous goal.
type Poller struct {
	http     *httputil.AuthClient
	clock    timeutil.Clock
	url      string
	interval time.Duration
	timeout  time.Duration

	mu       sync.Mutex // guards resolver
	resolver target.Resolver

	goal atomic.Pointer[target.Goal]
}

// NewPoller creates a poller for the oracle at url. interval <= 0
// selects DefaultPollInterval.
func NewPoller(hc *httputil.AuthClient, clock timeutil.Clock, url string, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		http:     hc,
		clock:    clock,
		url:      url,
		interval: interval,
		timeout:  DefaultPollTimeout,
	}
}

// Goal returns the most recently resolved goal, or nil before the first
// successful poll. Safe for concurrent use by the control loop.
func (p *Poller) Goal() *target.Goal {
	return p.goal.Load()
}

// Force installs a goal directly, bypassing the oracle. Used by the
// goal-override configuration path and the status API.
func (p *Poller) Force(region target.Region) *target.Goal {
	p.mu.Lock()
	g := p.resolver.Force(region)
	p.mu.Unlock()
	p.goal.Store(g)
	monitoring.Logf("oracle: goal forced to %s (assignment %s)", g.Region, g.AssignmentID)
	return g
}

// PollOnce performs a single oracle query and updates the published
// goal. Every failure mode is transient: log and keep the prior goal.
func (p *Poller) PollOnce(ctx context.Context) {
	sctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	body, err := p.http.GetBody(sctx, p.url)
	if err != nil {
		monitoring.Logf("oracle: poll failed: %v", err)
		return
	}

	p.mu.Lock()
	goal, changed, err := p.resolver.Resolve(body)
	p.mu.Unlock()
	if err != nil {
		monitoring.Logf("oracle: %v", err)
		return
	}
	if changed {
		monitoring.Logf("oracle: new target %s (assignment %s)", goal.Region, goal.AssignmentID)
	} else {
		monitoring.Debugf("oracle: still %s", goal.Region)
	}
	p.goal.Store(goal)
}

// Run polls immediately and then once per interval until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	p.PollOnce(ctx)
	t := p.clock.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			p.PollOnce(ctx)
		}
	}
}

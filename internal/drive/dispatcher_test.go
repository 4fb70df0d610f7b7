package drive

import (
	"context"
	"errors"
	"log"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arena-rover/pilot/internal/httputil"
	"github.com/arena-rover/pilot/internal/monitoring"
	"github.com/arena-rover/pilot/internal/timeutil"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *httputil.MockClient, *timeutil.MockClock) {
	t.Helper()
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(log.Printf) })

	mc := httputil.NewMockClient()
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	d := NewDispatcher(httputil.NewAuthClient(mc, "secret"), clock, "http://actuator.local:5000", MinCommandInterval)
	return d, mc, clock
}

func TestDispatchNothingBeforeFirstSet(t *testing.T) {
	d, mc, _ := newTestDispatcher(t)

	d.Dispatch(context.Background())
	assert.Equal(t, 0, mc.RequestCount(), "vehicle must not be commanded before the first Set")

	_, ok := d.Current()
	assert.False(t, ok)
}

func TestDispatchRateLimit(t *testing.T) {
	d, mc, clock := newTestDispatcher(t)
	ctx := context.Background()

	d.Set(Command{Speed: 0.45, Flip: true})

	// However fast the loop computes, two commands never go out closer
	// than the actuator's minimum interval.
	d.Dispatch(ctx)
	d.Dispatch(ctx)
	d.Dispatch(ctx)
	assert.Equal(t, 1, mc.RequestCount())

	clock.Advance(MinCommandInterval - time.Millisecond)
	d.Dispatch(ctx)
	assert.Equal(t, 1, mc.RequestCount(), "interval not yet elapsed")

	clock.Advance(time.Millisecond)
	d.Dispatch(ctx)
	assert.Equal(t, 2, mc.RequestCount())
}

func TestDispatchRequestShape(t *testing.T) {
	d, mc, _ := newTestDispatcher(t)

	d.Set(Command{Speed: 0.45, Flip: true})
	d.Dispatch(context.Background())

	reqs := mc.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPut, reqs[0].Method)
	assert.Equal(t, "secret", reqs[0].Header.Get("Authorization"))
	assert.Equal(t, "application/json", reqs[0].Header.Get("Content-Type"))
	assert.JSONEq(t, `{"speed":0.45,"flip":true}`, mc.Bodies()[0])
}

func TestDispatchFailureContinues(t *testing.T) {
	d, mc, clock := newTestDispatcher(t)
	ctx := context.Background()

	mc.QueueError(errors.New("connection refused"))
	mc.Queue(http.StatusBadGateway, "")

	d.Set(Command{Speed: 0.5})
	d.Dispatch(ctx) // transport error, logged and skipped

	clock.Advance(MinCommandInterval)
	d.Dispatch(ctx) // HTTP error, logged and skipped

	clock.Advance(MinCommandInterval)
	d.Dispatch(ctx) // default 200 from the mock
	assert.Equal(t, 3, mc.RequestCount(), "failures must not stop dispatching")
}

func TestRunSendsFinalStop(t *testing.T) {
	d, mc, _ := newTestDispatcher(t)

	d.Set(Command{Speed: 0.85})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d.Run(ctx)

	reqs := mc.Requests()
	require.NotEmpty(t, reqs)
	assert.JSONEq(t, `{"speed":0,"flip":false}`, mc.Bodies()[len(reqs)-1],
		"shutdown must park the vehicle")
}

func TestRunDispatchesOnTicks(t *testing.T) {
	d, mc, clock := newTestDispatcher(t)
	d.Set(Command{Speed: 0.6})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	waitFor := func(n int) {
		deadline := time.After(2 * time.Second)
		for mc.RequestCount() < n {
			select {
			case <-deadline:
				t.Fatalf("timed out waiting for %d requests (have %d)", n, mc.RequestCount())
			default:
				time.Sleep(time.Millisecond)
			}
		}
	}

	clock.Advance(MinCommandInterval)
	waitFor(1)
	clock.Advance(MinCommandInterval)
	waitFor(2)

	cancel()
	<-done
	// Final stop follows the two ticked commands.
	assert.GreaterOrEqual(t, mc.RequestCount(), 3)
}

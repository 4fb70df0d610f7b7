package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arena-rover/pilot/internal/drive"
	"github.com/arena-rover/pilot/internal/pilot"
	"github.com/arena-rover/pilot/internal/target"
)

type fakeLoop struct {
	snap pilot.Snapshot
}

func (f *fakeLoop) Snapshot() pilot.Snapshot { return f.snap }

type fakeOverrider struct {
	forced []target.Region
}

func (f *fakeOverrider) Force(region target.Region) *target.Goal {
	f.forced = append(f.forced, region)
	return &target.Goal{Region: region, Point: region.Point(), AssignmentID: "forced"}
}

func newTestServer() (*Server, *fakeLoop, *fakeOverrider) {
	loop := &fakeLoop{snap: pilot.Snapshot{
		Tick:        42,
		State:       "DRIVING",
		LossTicks:   0,
		LastCommand: drive.Command{Speed: 0.6},
		UpdatedAt:   time.Unix(1000, 0),
	}}
	goals := &fakeOverrider{}
	return NewServer(loop, goals), loop, goals
}

func TestStatusHandler(t *testing.T) {
	s, _, _ := newTestServer()
	mux := s.ServeMux()

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var snap pilot.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, uint64(42), snap.Tick)
	assert.Equal(t, "DRIVING", snap.State)
	assert.InDelta(t, 0.6, float64(snap.LastCommand.Speed), 1e-6)
}

func TestStatusHandlerMethodNotAllowed(t *testing.T) {
	s, _, _ := newTestServer()
	w := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestGoalHandler(t *testing.T) {
	s, _, goals := newTestServer()

	form := url.Values{"region": {"TL"}}
	req := httptest.NewRequest(http.MethodPost, "/api/goal", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "TOP_LEFT")
	require.Len(t, goals.forced, 1)
	assert.Equal(t, target.TopLeft, goals.forced[0])
}

func TestGoalHandlerBadRegion(t *testing.T) {
	s, _, goals := newTestServer()

	form := url.Values{"region": {"MIDDLE"}}
	req := httptest.NewRequest(http.MethodPost, "/api/goal", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, goals.forced)
}

func TestGoalHandlerMethodNotAllowed(t *testing.T) {
	s, _, _ := newTestServer()
	w := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/goal", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHome(t *testing.T) {
	s, _, _ := newTestServer()
	w := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Arena Rover Pilot")
}

// Package api exposes the pilot's status and goal override over HTTP.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/arena-rover/pilot/internal/pilot"
	"github.com/arena-rover/pilot/internal/target"
	"github.com/arena-rover/pilot/internal/version"
)

// StatusSource supplies the control loop's latest snapshot.
type StatusSource interface {
	Snapshot() pilot.Snapshot
}

// GoalOverrider forces a goal, bypassing the oracle.
type GoalOverrider interface {
	Force(region target.Region) *target.Goal
}

type Server struct {
	loop  StatusSource
	goals GoalOverrider
}

func NewServer(loop StatusSource, goals GoalOverrider) *Server {
	return &Server{
		loop:  loop,
		goals: goals,
	}
}

func (s *Server) homeHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "Arena Rover Pilot %s\n", version.String())
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.statusHandler)
	mux.HandleFunc("/api/goal", s.goalHandler)
	mux.HandleFunc("/", s.homeHandler)
	return mux
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.loop.Snapshot()); err != nil {
		http.Error(w, "Failed to encode status", http.StatusInternalServerError)
	}
}

func (s *Server) goalHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	region, err := target.ParseRegion(r.FormValue("region"))
	if err != nil {
		http.Error(w, fmt.Sprintf("Bad region: %v", err), http.StatusBadRequest)
		return
	}

	goal := s.goals.Force(region)
	io.WriteString(w, "Goal set to "+goal.Region.String()+"\n")
}

// Package target resolves oracle region assignments into arena goals.
package target

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/arena-rover/pilot/internal/geo"
)

// Region is a named quadrant of the arena.
type Region int

const (
	RegionUnknown Region = iota
	TopLeft
	TopRight
	BottomLeft
	BottomRight
)

func (r Region) String() string {
	switch r {
	case TopLeft:
		return "TOP_LEFT"
	case TopRight:
		return "TOP_RIGHT"
	case BottomLeft:
		return "BOTTOM_LEFT"
	case BottomRight:
		return "BOTTOM_RIGHT"
	default:
		return "UNKNOWN"
	}
}

// Point returns the region's representative point, the quadrant
// centroid in arena-normalized coordinates.
func (r Region) Point() geo.Point {
	switch r {
	case TopLeft:
		return geo.Point{X: 0.25, Y: 0.25}
	case TopRight:
		return geo.Point{X: 0.75, Y: 0.25}
	case BottomLeft:
		return geo.Point{X: 0.25, Y: 0.75}
	case BottomRight:
		return geo.Point{X: 0.75, Y: 0.75}
	default:
		return geo.Point{X: 0.5, Y: 0.5}
	}
}

// ParseRegion accepts every alias the oracle has been seen to emit for
// each quadrant, including the corner marker IDs themselves.
func ParseRegion(s string) (Region, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "13", "TL", "Q1", "1", "TOP_LEFT":
		return TopLeft, nil
	case "11", "TR", "Q2", "2", "TOP_RIGHT":
		return TopRight, nil
	case "14", "BL", "Q3", "3", "BOTTOM_LEFT":
		return BottomLeft, nil
	case "12", "BR", "Q4", "4", "BOTTOM_RIGHT":
		return BottomRight, nil
	default:
		return RegionUnknown, fmt.Errorf("unknown region %q", s)
	}
}

// ParseBody extracts the region from an oracle response body. The body
// may be a JSON-encoded string, a JSON object carrying a "quadrant" or
// "target" field (string or number), or bare text.
func ParseBody(body []byte) (Region, error) {
	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		return ParseRegion(s)
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(body, &obj); err == nil {
		for _, key := range []string{"quadrant", "target"} {
			switch v := obj[key].(type) {
			case string:
				return ParseRegion(v)
			case float64:
				return ParseRegion(strconv.Itoa(int(v)))
			}
		}
	}

	return ParseRegion(string(body))
}

// Goal is a resolved navigation target. AssignmentID identifies one
// accepted assignment across logs and the status API.
type Goal struct {
	Region       Region    `json:"region"`
	Point        geo.Point `json:"point"`
	AssignmentID string    `json:"assignment_id"`
}

// Resolver turns oracle responses into goals, retaining the previous
// goal whenever a response cannot be resolved so momentary oracle noise
// never halts navigation.
type Resolver struct {
	current *Goal
}

// Resolve ingests one oracle response body. It returns the goal current
// after the update (possibly the retained previous one), whether a new
// assignment was accepted, and the parse error if any.
func (r *Resolver) Resolve(body []byte) (*Goal, bool, error) {
	region, err := ParseBody(body)
	if err != nil {
		return r.current, false, err
	}
	if r.current != nil && r.current.Region == region {
		return r.current, false, nil
	}
	return r.Force(region), true, nil
}

// Force installs a goal for the region directly, bypassing parsing.
// Used by the goal-override config path and the status API.
func (r *Resolver) Force(region Region) *Goal {
	g := &Goal{
		Region:       region,
		Point:        region.Point(),
		AssignmentID: uuid.NewString(),
	}
	r.current = g
	return g
}

// Current returns the current goal, or nil before the first assignment.
func (r *Resolver) Current() *Goal { return r.current }

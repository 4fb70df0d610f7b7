// Package config loads and validates the pilot's runtime configuration:
// an optional JSON file overlaid by environment variables. Partial
// configs are safe; omitted fields keep their defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/arena-rover/pilot/internal/marker"
	"github.com/arena-rover/pilot/internal/nav"
)

// Endpoint is one authenticated HTTP endpoint.
type Endpoint struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

// Config is the explicit configuration object handed to the control
// loop at construction. There is no process-wide mutable state.
type Config struct {
	// Endpoints.
	Actuator Endpoint `json:"actuator"`
	Camera1  Endpoint `json:"camera1"`
	Camera2  Endpoint `json:"camera2"`
	Oracle   Endpoint `json:"oracle"`
	Detector Endpoint `json:"detector"`

	// Marker roles.
	VehicleMarker     int `json:"vehicle_marker"`
	TopLeftMarker     int `json:"top_left_marker"`
	TopRightMarker    int `json:"top_right_marker"`
	BottomLeftMarker  int `json:"bottom_left_marker"`
	BottomRightMarker int `json:"bottom_right_marker"`

	// Steering thresholds and gains (see nav.Config).
	AngleOK       float64 `json:"angle_ok"`
	ArriveDist    float64 `json:"arrive_dist"`
	GoalTolerance float64 `json:"goal_tolerance"`
	TurnPolarity  float64 `json:"turn_polarity"`
	SpinSpeed     float64 `json:"spin_speed"`
	TurnSpeed     float64 `json:"turn_speed"`
	MinSpeed      float64 `json:"min_speed"`
	MaxSpeed      float64 `json:"max_speed"`
	SpeedScale    float64 `json:"speed_scale"`
	LossTicks     int     `json:"loss_ticks"`

	// Estimation policy.
	CalibrationGraceTicks int     `json:"calibration_grace_ticks"`
	MaxDisagreement       float64 `json:"max_disagreement"`

	// Cadences, milliseconds.
	TickMillis       int `json:"tick_millis"`
	DispatchMillis   int `json:"dispatch_millis"`
	OraclePollMillis int `json:"oracle_poll_millis"`
	FetchTimeoutMs   int `json:"fetch_timeout_ms"`

	// GoalOverride, when set to a region name, bypasses the oracle
	// entirely. Useful for testing without the oracle network.
	GoalOverride string `json:"goal_override"`

	// StatusListen is the status API listen address; empty disables it.
	StatusListen string `json:"status_listen"`

	Verbose bool `json:"verbose"`
}

// Default returns the configuration defaults tuned on the reference
// arena and vehicle.
func Default() Config {
	n := nav.DefaultConfig()
	return Config{
		VehicleMarker:     9,
		TopLeftMarker:     13,
		TopRightMarker:    11,
		BottomLeftMarker:  14,
		BottomRightMarker: 12,

		AngleOK:       n.AngleOK,
		ArriveDist:    n.ArriveDist,
		GoalTolerance: n.GoalTolerance,
		TurnPolarity:  n.TurnPolarity,
		SpinSpeed:     n.SpinSpeed,
		TurnSpeed:     n.TurnSpeed,
		MinSpeed:      n.MinSpeed,
		MaxSpeed:      n.MaxSpeed,
		SpeedScale:    n.SpeedScale,
		LossTicks:     n.LossTicks,

		CalibrationGraceTicks: 5,
		MaxDisagreement:       0.25,

		TickMillis:       100,
		DispatchMillis:   100,
		OraclePollMillis: 2000,
		FetchTimeoutMs:   80,

		StatusListen: ":8080",
	}
}

// Load builds the configuration: defaults, then the JSON file at path
// (if non-empty), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		cleanPath := filepath.Clean(path)
		if ext := filepath.Ext(cleanPath); ext != ".json" {
			return cfg, fmt.Errorf("config file must have .json extension, got %q", ext)
		}
		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config JSON: %w", err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overlays ROVER_* environment variables onto the config.
func (c *Config) ApplyEnv() error {
	envString("ROVER_ACTUATOR_URL", &c.Actuator.URL)
	envString("ROVER_ACTUATOR_TOKEN", &c.Actuator.Token)
	envString("ROVER_CAMERA1_URL", &c.Camera1.URL)
	envString("ROVER_CAMERA1_TOKEN", &c.Camera1.Token)
	envString("ROVER_CAMERA2_URL", &c.Camera2.URL)
	envString("ROVER_CAMERA2_TOKEN", &c.Camera2.Token)
	envString("ROVER_ORACLE_URL", &c.Oracle.URL)
	envString("ROVER_ORACLE_TOKEN", &c.Oracle.Token)
	envString("ROVER_DETECTOR_URL", &c.Detector.URL)
	envString("ROVER_DETECTOR_TOKEN", &c.Detector.Token)
	envString("ROVER_GOAL_OVERRIDE", &c.GoalOverride)
	envString("ROVER_STATUS_LISTEN", &c.StatusListen)

	if err := envInt("ROVER_VEHICLE_MARKER", &c.VehicleMarker); err != nil {
		return err
	}
	if err := envFloat("ROVER_ANGLE_OK", &c.AngleOK); err != nil {
		return err
	}
	if err := envFloat("ROVER_ARRIVE_DIST", &c.ArriveDist); err != nil {
		return err
	}
	if err := envFloat("ROVER_TURN_POLARITY", &c.TurnPolarity); err != nil {
		return err
	}
	return nil
}

// Validate rejects configurations the pilot cannot start with. Missing
// endpoints or tokens are fatal at startup; nothing else is allowed to
// be fatal once the loop is running.
func (c Config) Validate() error {
	type req struct {
		name string
		ep   Endpoint
	}
	required := []req{
		{"actuator", c.Actuator},
		{"camera1", c.Camera1},
		{"camera2", c.Camera2},
		{"detector", c.Detector},
	}
	for _, r := range required {
		if r.ep.URL == "" {
			return fmt.Errorf("%s endpoint URL is required", r.name)
		}
	}
	for _, r := range required[:3] {
		if r.ep.Token == "" {
			return fmt.Errorf("%s endpoint token is required", r.name)
		}
	}
	if c.GoalOverride == "" && c.Oracle.URL == "" {
		return fmt.Errorf("oracle endpoint URL is required unless goal_override is set")
	}

	if c.TickMillis < 100 {
		return fmt.Errorf("tick_millis must be >= 100 (actuator minimum command interval), got %d", c.TickMillis)
	}
	if c.AngleOK <= 0 {
		return fmt.Errorf("angle_ok must be positive, got %v", c.AngleOK)
	}
	if c.ArriveDist <= 0 {
		return fmt.Errorf("arrive_dist must be positive, got %v", c.ArriveDist)
	}
	if c.TurnPolarity != 1 && c.TurnPolarity != -1 {
		return fmt.Errorf("turn_polarity must be +1 or -1, got %v", c.TurnPolarity)
	}
	if c.MinSpeed <= 0 || c.MinSpeed > c.MaxSpeed {
		return fmt.Errorf("need 0 < min_speed <= max_speed, got %v and %v", c.MinSpeed, c.MaxSpeed)
	}
	if c.MaxSpeed > 1 {
		return fmt.Errorf("max_speed must be <= 1, got %v", c.MaxSpeed)
	}
	if c.LossTicks < 1 {
		return fmt.Errorf("loss_ticks must be >= 1, got %d", c.LossTicks)
	}
	return nil
}

// Nav returns the steering configuration for the navigator.
func (c Config) Nav() nav.Config {
	return nav.Config{
		AngleOK:       c.AngleOK,
		ArriveDist:    c.ArriveDist,
		GoalTolerance: c.GoalTolerance,
		TurnPolarity:  c.TurnPolarity,
		SpinSpeed:     c.SpinSpeed,
		TurnSpeed:     c.TurnSpeed,
		MinSpeed:      c.MinSpeed,
		MaxSpeed:      c.MaxSpeed,
		SpeedScale:    c.SpeedScale,
		LossTicks:     c.LossTicks,
	}
}

// Roles returns the marker-role lookup table.
func (c Config) Roles() marker.RoleMap {
	return marker.RoleMap{
		Corners: map[int]marker.Corner{
			c.TopLeftMarker:     marker.TopLeft,
			c.TopRightMarker:    marker.TopRight,
			c.BottomLeftMarker:  marker.BottomLeft,
			c.BottomRightMarker: marker.BottomRight,
		},
		Vehicle: c.VehicleMarker,
	}
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/arena-rover/pilot/api"
	"github.com/arena-rover/pilot/internal/arena"
	"github.com/arena-rover/pilot/internal/camera"
	"github.com/arena-rover/pilot/internal/config"
	"github.com/arena-rover/pilot/internal/detect"
	"github.com/arena-rover/pilot/internal/drive"
	"github.com/arena-rover/pilot/internal/fusion"
	"github.com/arena-rover/pilot/internal/httputil"
	"github.com/arena-rover/pilot/internal/monitoring"
	"github.com/arena-rover/pilot/internal/nav"
	"github.com/arena-rover/pilot/internal/oracle"
	"github.com/arena-rover/pilot/internal/pilot"
	"github.com/arena-rover/pilot/internal/target"
	"github.com/arena-rover/pilot/internal/timeutil"
	"github.com/arena-rover/pilot/internal/version"
)

var (
	configPath = flag.String("config", "", "Path to JSON config file")
	listen     = flag.String("listen", "", "Status server listen address (overrides config)")
	goalFlag   = flag.String("goal", "", "Force a fixed goal region and skip the oracle")
	verbose    = flag.Bool("verbose", false, "Enable per-tick debug logging")
)

func main() {
	flag.Parse()

	// Missing .env is fine; environment may be set directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *listen != "" {
		cfg.StatusListen = *listen
	}
	if *goalFlag != "" {
		cfg.GoalOverride = *goalFlag
	}
	if *verbose {
		cfg.Verbose = true
	}
	monitoring.SetVerbose(cfg.Verbose)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	monitoring.Logf("rover pilot %s starting (vehicle marker %d)", version.String(), cfg.VehicleMarker)
	monitoring.Logf("  actuator : %s", cfg.Actuator.URL)
	monitoring.Logf("  camera1  : %s", cfg.Camera1.URL)
	monitoring.Logf("  camera2  : %s", cfg.Camera2.URL)
	monitoring.Logf("  detector : %s", cfg.Detector.URL)
	if cfg.GoalOverride != "" {
		monitoring.Logf("  oracle   : disabled (goal override %q)", cfg.GoalOverride)
	} else {
		monitoring.Logf("  oracle   : %s", cfg.Oracle.URL)
	}

	clock := timeutil.RealClock{}
	base := &http.Client{}
	fetchTimeout := time.Duration(cfg.FetchTimeoutMs) * time.Millisecond

	cameras := []*pilot.Camera{
		{
			Source: camera.New("camera1", cfg.Camera1.URL,
				httputil.NewAuthClient(base, cfg.Camera1.Token), fetchTimeout),
			Cal: arena.NewCalibrator("camera1", cfg.CalibrationGraceTicks),
		},
		{
			Source: camera.New("camera2", cfg.Camera2.URL,
				httputil.NewAuthClient(base, cfg.Camera2.Token), fetchTimeout),
			Cal: arena.NewCalibrator("camera2", cfg.CalibrationGraceTicks),
		},
	}

	detector := detect.NewHTTPDetector(
		httputil.NewAuthClient(base, cfg.Detector.Token), cfg.Detector.URL)

	dispatcher := drive.NewDispatcher(
		httputil.NewAuthClient(base, cfg.Actuator.Token), clock,
		cfg.Actuator.URL, time.Duration(cfg.DispatchMillis)*time.Millisecond)

	poller := oracle.NewPoller(
		httputil.NewAuthClient(base, cfg.Oracle.Token), clock,
		cfg.Oracle.URL, time.Duration(cfg.OraclePollMillis)*time.Millisecond)

	loop := pilot.New(clock, time.Duration(cfg.TickMillis)*time.Millisecond,
		cameras, detector, cfg.Roles(),
		fusion.NewFuser(cfg.MaxDisagreement), nav.New(cfg.Nav()),
		poller, dispatcher)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	if cfg.GoalOverride != "" {
		region, err := target.ParseRegion(cfg.GoalOverride)
		if err != nil {
			log.Fatalf("invalid goal override: %v", err)
		}
		poller.Force(region)
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Run(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		dispatcher.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		loop.Run(ctx)
	}()

	if cfg.StatusListen != "" {
		server := &http.Server{
			Addr:    cfg.StatusListen,
			Handler: api.NewServer(loop, poller).ServeMux(),
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			monitoring.Logf("status server listening on %s", cfg.StatusListen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				monitoring.Logf("status server error: %v", err)
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	wg.Wait()
	monitoring.Logf("rover pilot stopped")
}

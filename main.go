// Command arcscan runs the sweep-sensor daemon: it ingests samples from a
// rotating ranging sensor over a serial port (or a simulated feed in dev
// mode), filters and buffers them, and serves the HTTP control surface.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/arcscan-data/arcscan/internal/api"
	"github.com/arcscan-data/arcscan/internal/config"
	"github.com/arcscan-data/arcscan/internal/pipeline"
	"github.com/arcscan-data/arcscan/internal/serialmux"
	"github.com/arcscan-data/arcscan/internal/session"
	"github.com/arcscan-data/arcscan/internal/sweep"
	"github.com/arcscan-data/arcscan/internal/timeutil"
	"github.com/arcscan-data/arcscan/internal/version"
)

var (
	devMode     = flag.Bool("dev", false, "Run with a simulated sensor instead of real hardware")
	listen      = flag.String("listen", ":8080", "Listen address")
	portPath    = flag.String("port", "/dev/ttyUSB0", "Serial port device path")
	configPath  = flag.String("config", "", "Optional tuning config JSON path")
	catalogPath = flag.String("db", "arcscan.db", "Session catalog database path")
	sessionsDir = flag.String("sessions", "sessions", "Directory for recorded session files")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	log.Printf("arcscan %s", version.String())

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	var m serialmux.Muxer
	if *devMode {
		m = serialmux.NewSimulatedMux(cfg.GetTickInterval(), time.Now().UnixNano())
		log.Printf("dev mode: using simulated sensor")
	} else {
		opts := serialmux.PortOptions{
			BaudRate: cfg.GetBaudRate(),
			DataBits: cfg.GetDataBits(),
			StopBits: cfg.GetStopBits(),
			Parity:   cfg.GetParity(),
		}
		var err error
		m, err = serialmux.NewDeviceMux(*portPath, opts)
		if err != nil {
			log.Fatalf("failed to open serial port %s: %v", *portPath, err)
		}
	}
	defer m.Close()

	if err := os.MkdirAll(*sessionsDir, 0o755); err != nil {
		log.Fatalf("failed to create sessions directory: %v", err)
	}

	catalog, err := session.OpenCatalog(*catalogPath)
	if err != nil {
		log.Fatalf("failed to open session catalog: %v", err)
	}
	defer catalog.Close()

	_, lines := m.Subscribe()

	ctrl := pipeline.NewController(pipeline.Options{
		Source: pipeline.NewChannelSource(lines),
		Filter: sweep.FilterParams{
			Alpha:        cfg.GetAlpha(),
			MedianWindow: cfg.GetMedianWindow(),
			OutlierK:     cfg.GetOutlierK(),
			MinDistance:  cfg.GetMinDistanceCm(),
			MaxDistance:  cfg.GetMaxDistanceCm(),
		},
		HistoryHighWater:     cfg.GetHistoryHighWater(),
		HistoryLowWater:      cfg.GetHistoryLowWater(),
		ReplayBaseIntervalMs: cfg.GetReplayBaseInterval().Milliseconds(),
		TickInterval:         cfg.GetTickInterval(),
		SessionsDir:          *sessionsDir,
		Catalog:              catalog,
		Clock:                timeutil.RealClock{},
	})

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := m.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("serial monitor stopped: %v", err)
		}
		stop()
	}()

	// drive the pipeline tick
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ctrl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("pipeline stopped: %v", err)
		}
	}()

	server := api.NewServer(ctrl, m, catalog)
	httpMux := server.ServeMux()
	m.AttachAdminRoutes(httpMux)
	catalog.AttachAdminRoutes(httpMux)

	httpServer := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(httpMux),
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("listening on %s", *listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}

	wg.Wait()
}

// Package main provides the entrypoint for the departure board daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/fluted/departureboard/internal/config"
	"github.com/fluted/departureboard/internal/httpx"
	"github.com/fluted/departureboard/internal/render"
	"github.com/fluted/departureboard/internal/render/emulator"
	"github.com/fluted/departureboard/internal/render/hardware"
	"github.com/fluted/departureboard/internal/render/web"
	"github.com/fluted/departureboard/internal/scheduler"
	"github.com/fluted/departureboard/internal/server"
	"github.com/fluted/departureboard/internal/telemetry"
	"github.com/fluted/departureboard/internal/transit"
	"github.com/fluted/departureboard/internal/transit/entur"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "boardd"

	configPath := flag.String("config", "config.yml", "path to configuration file")
	flag.Parse()

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Str("config", *configPath).
		Msg("starting departure board")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        os.Getenv("OTEL_ENABLED") == "true",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()

	// Fetch pipeline.
	provider := entur.NewClient(entur.ClientConfig{
		BaseURL:    cfg.API.BaseURL,
		ClientName: cfg.API.ClientName,
		HTTPClient: httpx.NewClient(httpx.ClientConfig{
			Name:    entur.ProviderName,
			Timeout: cfg.FetchTimeout(),
		}),
		Logger: log.With().Str("component", "entur").Logger(),
	})
	fetcher := transit.NewService(transit.ServiceConfig{
		Provider:      provider,
		Logger:        log.With().Str("component", "fetcher").Logger(),
		Timeout:       cfg.FetchTimeout(),
		MaxDepartures: cfg.Settings.NumberOfDepartures,
	})

	layout := render.LayoutOptions{
		Location:           cfg.Location(),
		ShowRealtime:       cfg.Display.ShowRealtime,
		ShowDelayIndicator: cfg.Display.ShowDelayIndicator,
	}

	// The web snapshot is always on; it backs the /board endpoints.
	snapshot := web.New(web.Config{
		Layout: layout,
		Logger: log.With().Str("component", "web").Logger(),
	})
	if err := snapshot.Initialize(); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize web snapshot")
	}
	defer snapshot.Shutdown()

	targets := []render.Target{snapshot}

	// Pixel target fallback chain: hardware first, emulator second. A
	// missing panel degrades, it never kills the process.
	selection, err := render.Select(log.With().Str("component", "selector").Logger(),
		hardware.New(hardware.Config{
			SPIDevice: cfg.Display.Hardware.SPIDevice,
			DCPin:     cfg.Display.Hardware.DCPin,
			ResetPin:  cfg.Display.Hardware.ResetPin,
			Layout:    layout,
			Logger:    log.With().Str("component", "hardware").Logger(),
		}),
		emulator.New(emulator.Config{
			FramePath: cfg.Display.Emulator.FramePath,
			Layout:    layout,
			Logger:    log.With().Str("component", "emulator").Logger(),
		}),
	)
	if err != nil {
		if !errors.Is(err, render.ErrNoTarget) {
			log.Fatal().Err(err).Msg("render target selection failed")
		}
		log.Warn().Msg("no pixel target available, continuing with web snapshot only")
	} else {
		targets = append(targets, selection.Target)
		defer selection.Target.Shutdown()
	}

	// Ops/snapshot HTTP server.
	router := server.NewRouter(server.Config{
		Version:  Version,
		Logger:   log.With().Str("component", "http").Logger(),
		Snapshot: snapshot,
	})
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server error")
		}
	}()

	// Refresh loop.
	sched := scheduler.New(scheduler.Config{
		Fetcher:    fetcher,
		Stops:      cfg.Stops,
		Targets:    targets,
		MaxPerStop: cfg.Display.MaxRows,
		Interval:   cfg.RefreshInterval(),
		Logger:     log.With().Str("component", "scheduler").Logger(),
	})
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		sched.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	// Let the in-flight cycle finish its render-or-fail step before the
	// deferred target shutdowns run.
	<-loopDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server forced to shutdown")
	}

	log.Info().Msg("stopped")
}

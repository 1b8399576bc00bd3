// Package scheduler drives the fetch → aggregate → render cycle on a fixed
// interval.
package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fluted/departureboard/internal/board"
	"github.com/fluted/departureboard/internal/config"
	"github.com/fluted/departureboard/internal/render"
	"github.com/fluted/departureboard/internal/transit"
)

// Fetcher gathers one result slot per stop, isolating per-stop failures.
type Fetcher interface {
	FetchAll(ctx context.Context, stops []config.Stop) []transit.StopResult
}

// Config holds configuration for the scheduler.
type Config struct {
	// Fetcher produces the per-stop results each cycle.
	Fetcher Fetcher

	// Stops is the configured stop list, fetched every cycle.
	Stops []config.Stop

	// Targets receive every rendered cycle. The scheduler owns them
	// exclusively for its lifetime; failed renders are logged, never
	// fatal.
	Targets []render.Target

	// MaxPerStop bounds the departures shown per stop.
	MaxPerStop int

	// Interval is the time between cycle starts. A cycle that overruns
	// is followed immediately by the next one; cycles never overlap.
	Interval time.Duration

	// Logger for cycle logs.
	Logger zerolog.Logger
}

// Scheduler runs the refresh loop. One cycle at a time, forever, until the
// context is cancelled; the in-flight cycle always completes its
// render-or-fail step before Run returns.
type Scheduler struct {
	cfg    Config
	logger zerolog.Logger

	tracer        trace.Tracer
	cycles        metric.Int64Counter
	stopFailures  metric.Int64Counter
	renderErrors  metric.Int64Counter
	cycleDuration metric.Float64Histogram
}

// New creates a scheduler.
func New(cfg Config) *Scheduler {
	meter := otel.Meter("departureboard/scheduler")

	cycles, _ := meter.Int64Counter("board_cycles_total",
		metric.WithDescription("Completed refresh cycles."))
	stopFailures, _ := meter.Int64Counter("board_stop_failures_total",
		metric.WithDescription("Per-stop fetch failures."))
	renderErrors, _ := meter.Int64Counter("board_render_errors_total",
		metric.WithDescription("Failed renders per target."))
	cycleDuration, _ := meter.Float64Histogram("board_cycle_duration_seconds",
		metric.WithDescription("Wall time of one fetch-aggregate-render cycle."))

	return &Scheduler{
		cfg:           cfg,
		logger:        cfg.Logger,
		tracer:        otel.Tracer("departureboard/scheduler"),
		cycles:        cycles,
		stopFailures:  stopFailures,
		renderErrors:  renderErrors,
		cycleDuration: cycleDuration,
	}
}

// Run executes cycles until ctx is cancelled. It always finishes the cycle
// in flight before returning, so the caller can release the render targets
// immediately afterwards.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info().
		Dur("interval", s.cfg.Interval).
		Int("stops", len(s.cfg.Stops)).
		Int("targets", len(s.cfg.Targets)).
		Msg("refresh loop started")

	for {
		start := time.Now()
		s.RunCycle(ctx)

		wait := s.cfg.Interval - time.Since(start)
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info().Msg("refresh loop stopped")
			return
		case <-timer.C:
		}
	}
}

// RunCycle performs exactly one fetch → aggregate → render pass. A panic
// anywhere in the cycle is contained here so one bad cycle cannot take the
// loop down.
func (s *Scheduler) RunCycle(ctx context.Context) {
	cycleID := uuid.NewString()
	logger := s.logger.With().Str("cycle_id", cycleID).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("cycle panicked, continuing")
		}
	}()

	cycleCtx, span := s.tracer.Start(ctx, "board.cycle")
	defer span.End()

	start := time.Now()

	results := s.cfg.Fetcher.FetchAll(cycleCtx, s.cfg.Stops)

	failed := 0
	for _, res := range results {
		if !res.OK() {
			failed++
		}
	}
	if failed > 0 {
		s.stopFailures.Add(cycleCtx, int64(failed))
	}

	vm := board.Aggregate(results, s.cfg.MaxPerStop, time.Now())
	if !vm.Healthy {
		logger.Warn().Msg("every stop failed this cycle, rendering unavailable state")
	}

	for _, target := range s.cfg.Targets {
		if err := target.Render(vm); err != nil {
			// The frame is skipped on this target; the loop carries on.
			logger.Error().
				Err(err).
				Str("target", target.Name()).
				Msg("render failed")
			s.renderErrors.Add(cycleCtx, 1,
				metric.WithAttributes(attribute.String("target", target.Name())))
		}
	}

	elapsed := time.Since(start)
	s.cycles.Add(cycleCtx, 1,
		metric.WithAttributes(attribute.Bool("healthy", vm.Healthy)))
	s.cycleDuration.Record(cycleCtx, elapsed.Seconds())

	logger.Debug().
		Dur("duration", elapsed).
		Int("stops_failed", failed).
		Bool("healthy", vm.Healthy).
		Msg("cycle completed")
}

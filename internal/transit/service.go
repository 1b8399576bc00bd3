package transit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fluted/departureboard/internal/config"
)

// Provider is the transit data source contract. Implementations fetch raw
// departures for one stop and normalize them; they report how many
// malformed records were dropped along the way.
type Provider interface {
	// Departures fetches up to n upcoming departures for stop.
	Departures(ctx context.Context, stop config.Stop, n int) (departures []Departure, dropped int, err error)

	// Name returns the provider name for logging.
	Name() string
}

// ServiceConfig holds configuration for the fetch service.
type ServiceConfig struct {
	// Provider is the transit data provider.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// Timeout is the hard upper bound per stop fetch (default: 10s).
	Timeout time.Duration

	// MaxDepartures is how many departures to request per stop (default: 3).
	MaxDepartures int
}

// Service fetches departures for the configured stops, one independent
// result slot per stop. A failing stop never affects its siblings.
type Service struct {
	provider      Provider
	logger        zerolog.Logger
	timeout       time.Duration
	maxDepartures int
}

// NewService creates a new fetch service.
func NewService(cfg ServiceConfig) *Service {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	maxDepartures := cfg.MaxDepartures
	if maxDepartures == 0 {
		maxDepartures = 3
	}
	return &Service{
		provider:      cfg.Provider,
		logger:        cfg.Logger,
		timeout:       timeout,
		maxDepartures: maxDepartures,
	}
}

// FetchStop fetches one stop under the service timeout. Errors are folded
// into the result, never returned; the caller always gets a slot for the
// stop.
func (s *Service) FetchStop(ctx context.Context, stop config.Stop) StopResult {
	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	departures, dropped, err := s.provider.Departures(fetchCtx, stop, s.maxDepartures)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("provider", s.provider.Name()).
			Str("stop_id", stop.ID).
			Msg("stop fetch failed")
		return FailedResult(stop, err)
	}

	// Chronological by estimated time; line label breaks ties so repeated
	// renders of the same data are identical.
	sort.SliceStable(departures, func(i, j int) bool {
		if departures[i].Estimated.Equal(departures[j].Estimated) {
			return departures[i].Line < departures[j].Line
		}
		return departures[i].Estimated.Before(departures[j].Estimated)
	})

	outcome := OutcomeOK
	if dropped > 0 {
		outcome = OutcomePartial
		s.logger.Warn().
			Str("stop_id", stop.ID).
			Int("dropped", dropped).
			Msg("stop fetch dropped malformed records")
	}

	return StopResult{
		Stop:       stop,
		Departures: departures,
		Outcome:    outcome,
		Dropped:    dropped,
	}
}

// FetchAll fetches every stop concurrently, one goroutine per stop, and
// returns results in the configured stop order. Each fetch carries its own
// timeout; a stop that times out neither delays nor fails its siblings
// beyond that bound.
func (s *Service) FetchAll(ctx context.Context, stops []config.Stop) []StopResult {
	results := make([]StopResult, len(stops))

	var wg sync.WaitGroup
	for i, stop := range stops {
		wg.Add(1)
		go func(i int, stop config.Stop) {
			defer wg.Done()
			results[i] = s.FetchStop(ctx, stop)
		}(i, stop)
	}
	wg.Wait()

	return results
}

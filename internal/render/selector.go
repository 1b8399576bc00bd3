package render

import (
	"errors"

	"github.com/rs/zerolog"
)

// ErrNoTarget is returned when every candidate in the fallback chain failed
// to initialize. With no web snapshot configured either, this is the one
// startup condition the process cannot survive.
var ErrNoTarget = errors.New("no render target could be initialized")

// Attempt records one step of the fallback chain.
type Attempt struct {
	Name  string
	State State
	Err   error
}

// Selection is the outcome of running the fallback chain once at startup.
type Selection struct {
	// Target is the active target, nil when the chain is exhausted.
	Target Target

	// Attempts lists every candidate tried, in order.
	Attempts []Attempt
}

// Select walks the candidate chain in order and activates the first target
// whose Initialize succeeds. A candidate that fails is failed for the
// process lifetime; it is never retried, the chain only moves forward. A
// missing physical device therefore degrades to the next candidate instead
// of crashing the process.
func Select(logger zerolog.Logger, candidates ...Target) (Selection, error) {
	sel := Selection{}

	for _, candidate := range candidates {
		err := candidate.Initialize()
		if err != nil {
			sel.Attempts = append(sel.Attempts, Attempt{
				Name:  candidate.Name(),
				State: StateFailed,
				Err:   err,
			})
			// Expected off-hardware; fallback, not a failure worth
			// surfacing loudly.
			logger.Info().
				Err(err).
				Str("target", candidate.Name()).
				Msg("render target unavailable, falling back")
			continue
		}

		sel.Attempts = append(sel.Attempts, Attempt{
			Name:  candidate.Name(),
			State: StateReady,
		})
		sel.Target = candidate
		logger.Info().
			Str("target", candidate.Name()).
			Int("attempts", len(sel.Attempts)).
			Msg("render target active")
		return sel, nil
	}

	return sel, ErrNoTarget
}

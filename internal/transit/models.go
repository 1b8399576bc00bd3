// Package transit provides the normalized departure model and the per-stop
// fetch service feeding the board.
package transit

import (
	"errors"
	"time"

	"github.com/fluted/departureboard/internal/config"
)

// Fetch errors. A provider failure is always classified as exactly one of
// these so the board can show a meaningful unavailable reason.
var (
	ErrTimeout      = errors.New("fetch timed out")
	ErrParseFailure = errors.New("malformed provider response")
	ErrUnreachable  = errors.New("provider unreachable")
)

// Departure is one normalized vehicle departure at a stop. It lives for a
// single refresh cycle.
type Departure struct {
	// Line is the public line label, e.g. "11".
	Line string

	// Destination is the front text shown on the vehicle.
	Destination string

	// Mode is the transport mode reported by the provider.
	Mode config.TransportMode

	// Scheduled is the aimed departure time.
	Scheduled time.Time

	// Estimated is the realtime estimate. Equals Scheduled when the
	// provider has no realtime data for this departure.
	Estimated time.Time

	// Realtime reports whether Estimated carries live data.
	Realtime bool

	// Delay is max(0, Estimated-Scheduled) when realtime data is present,
	// nil otherwise. Always nil for cancelled departures.
	Delay *time.Duration

	// Cancelled marks a cancelled departure. Cancelled departures stay
	// visible so riders see the cancellation instead of a shorter list.
	Cancelled bool

	// StopID references the stop this departure belongs to.
	StopID string
}

// Delayed reports whether the departure carries a positive delay.
func (d Departure) Delayed() bool {
	return d.Delay != nil && *d.Delay > 0
}

// Outcome classifies a per-stop fetch.
type Outcome string

const (
	// OutcomeOK means every record normalized cleanly.
	OutcomeOK Outcome = "ok"

	// OutcomePartial means the fetch succeeded but individual malformed
	// records were dropped.
	OutcomePartial Outcome = "partial"

	// OutcomeFailed means the stop has no usable data this cycle.
	OutcomeFailed Outcome = "failed"
)

// StopResult is the outcome of fetching one stop for one cycle. On a failed
// outcome Departures is empty and Err holds the classified fetch error;
// stale data from earlier cycles is never carried over.
type StopResult struct {
	Stop       config.Stop
	Departures []Departure
	Outcome    Outcome
	Err        error
	Dropped    int
}

// OK reports whether the stop produced usable data this cycle.
func (r StopResult) OK() bool {
	return r.Outcome != OutcomeFailed
}

// FailedResult builds the failure slot for a stop. The classified reason is
// kept for logging and the unavailable indicator.
func FailedResult(stop config.Stop, err error) StopResult {
	return StopResult{Stop: stop, Outcome: OutcomeFailed, Err: err}
}

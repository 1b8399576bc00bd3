// Package board turns per-stop fetch results into the render-ready view
// model. Everything here is pure: no I/O, no shared state.
package board

import (
	"sort"
	"time"

	"github.com/fluted/departureboard/internal/config"
	"github.com/fluted/departureboard/internal/transit"
)

// StopView is the shown slice of one stop's result.
type StopView struct {
	Stop config.Stop

	// Departures holds at most the configured maximum per stop, sorted by
	// estimated time ascending.
	Departures []transit.Departure

	// Outcome mirrors the fetch outcome so renderers can distinguish
	// "no departures" from "unavailable".
	Outcome transit.Outcome

	// Reason carries the failure classification for unavailable stops.
	Reason string
}

// Unavailable reports whether the stop failed this cycle.
func (v StopView) Unavailable() bool {
	return v.Outcome == transit.OutcomeFailed
}

// ViewModel is the only object handed to render targets. It owns no
// references back into the fetch layer and is rebuilt from scratch every
// cycle; a failed cycle never reuses the previous frame's model.
type ViewModel struct {
	// Stops in configured order.
	Stops []StopView

	// GeneratedAt is the cycle timestamp all relative times are computed
	// against.
	GeneratedAt time.Time

	// Healthy is true when at least one stop succeeded this cycle.
	Healthy bool

	// DelayedLines lists the labels of lines with at least one delayed
	// departure on the board, sorted, each label once.
	DelayedLines []string
}

// Aggregate merges stop results into a view model, truncating each stop to
// maxPerStop earliest departures. Cancelled departures stay in the list,
// flagged, so riders see the cancellation rather than a shorter board.
func Aggregate(results []transit.StopResult, maxPerStop int, now time.Time) ViewModel {
	vm := ViewModel{
		Stops:       make([]StopView, 0, len(results)),
		GeneratedAt: now,
	}

	delayed := make(map[string]struct{})

	for _, res := range results {
		view := StopView{
			Stop:    res.Stop,
			Outcome: res.Outcome,
		}

		if res.Outcome == transit.OutcomeFailed {
			if res.Err != nil {
				view.Reason = res.Err.Error()
			}
			vm.Stops = append(vm.Stops, view)
			continue
		}

		vm.Healthy = true

		departures := make([]transit.Departure, len(res.Departures))
		copy(departures, res.Departures)
		sort.SliceStable(departures, func(i, j int) bool {
			if departures[i].Estimated.Equal(departures[j].Estimated) {
				return departures[i].Line < departures[j].Line
			}
			return departures[i].Estimated.Before(departures[j].Estimated)
		})
		if maxPerStop >= 0 && len(departures) > maxPerStop {
			departures = departures[:maxPerStop]
		}
		view.Departures = departures

		for _, dep := range departures {
			if dep.Delayed() {
				delayed[dep.Line] = struct{}{}
			}
		}

		vm.Stops = append(vm.Stops, view)
	}

	for line := range delayed {
		vm.DelayedLines = append(vm.DelayedLines, line)
	}
	sort.Strings(vm.DelayedLines)

	return vm
}

// NextDeparture returns the earliest departure for the stop and whether one
// exists. Used for the board header summary.
func (v StopView) NextDeparture() (transit.Departure, bool) {
	if len(v.Departures) == 0 {
		return transit.Departure{}, false
	}
	return v.Departures[0], true
}

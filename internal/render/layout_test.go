package render_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluted/departureboard/internal/board"
	"github.com/fluted/departureboard/internal/config"
	"github.com/fluted/departureboard/internal/render"
	"github.com/fluted/departureboard/internal/transit"
)

var now = time.Date(2026, 8, 31, 14, 0, 0, 0, time.UTC)

func viewModel(stops ...board.StopView) board.ViewModel {
	vm := board.ViewModel{Stops: stops, GeneratedAt: now}
	for _, s := range stops {
		if !s.Unavailable() {
			vm.Healthy = true
		}
	}
	return vm
}

func stopView(name string, deps ...transit.Departure) board.StopView {
	return board.StopView{
		Stop:       config.Stop{ID: "NSR:StopPlace:1", Name: name, Mode: config.ModeTram},
		Departures: deps,
		Outcome:    transit.OutcomeOK,
	}
}

func departure(line string, in time.Duration) transit.Departure {
	return transit.Departure{
		Line:        line,
		Destination: "Ljabru",
		Mode:        config.ModeTram,
		Scheduled:   now.Add(in),
		Estimated:   now.Add(in),
	}
}

func TestBuildLayout_AllStopsDown(t *testing.T) {
	vm := board.ViewModel{GeneratedAt: now, Healthy: false}

	l := render.BuildLayout(vm, render.LayoutOptions{})

	assert.Equal(t, "Departure Board", l.Header)
	assert.False(t, l.Healthy)
	require.Len(t, l.Lines, 1)
	assert.Equal(t, render.KindNotice, l.Lines[0].Kind)
	assert.Equal(t, render.AllDownNotice, l.Lines[0].Text)
}

func TestBuildLayout_HeaderSummarizesStops(t *testing.T) {
	vm := viewModel(
		stopView("Solli plass", departure("13", 3*time.Minute)),
		stopView("Aker brygge"),
	)

	l := render.BuildLayout(vm, render.LayoutOptions{})

	assert.Equal(t, "Solli plass 3m 14:03 / Aker brygge", l.Header)
	assert.Equal(t, "14:00:00", l.Clock)
}

func TestBuildLayout_ClockUsesLocation(t *testing.T) {
	oslo, err := time.LoadLocation("Europe/Oslo")
	require.NoError(t, err)

	vm := viewModel(stopView("Solli plass", departure("13", 3*time.Minute)))
	l := render.BuildLayout(vm, render.LayoutOptions{Location: oslo})

	// 14:00 UTC is 16:00 in Oslo during CEST.
	assert.Equal(t, "16:00:00", l.Clock)
	assert.Contains(t, l.Header, "16:03")
}

func TestBuildLayout_StopSections(t *testing.T) {
	down := board.StopView{
		Stop:    config.Stop{ID: "NSR:StopPlace:2", Name: "Nationaltheatret"},
		Outcome: transit.OutcomeFailed,
		Reason:  "timeout",
	}
	vm := viewModel(
		stopView("Solli plass", departure("13", 3*time.Minute)),
		down,
		stopView("Aker brygge"),
	)

	l := render.BuildLayout(vm, render.LayoutOptions{})

	kinds := make([]render.LineKind, 0, len(l.Lines))
	for _, line := range l.Lines {
		kinds = append(kinds, line.Kind)
	}
	assert.Equal(t, []render.LineKind{
		render.KindStopHeader,
		render.KindDeparture,
		render.KindStopHeader,
		render.KindNotice,
		render.KindStopHeader,
		render.KindNotice,
	}, kinds)
	assert.Equal(t, render.UnavailableNotice, l.Lines[3].Text)
	assert.Equal(t, render.NoDeparturesText, l.Lines[5].Text)
}

func TestBuildLayout_DepartureRow(t *testing.T) {
	vm := viewModel(stopView("Solli plass", departure("13", 7*time.Minute)))

	l := render.BuildLayout(vm, render.LayoutOptions{})

	require.Len(t, l.Lines, 2)
	row := l.Lines[1].Row
	require.NotNil(t, row)
	assert.Equal(t, "TRM", row.ModeTag)
	assert.Equal(t, "13", row.Line)
	assert.Equal(t, "Ljabru", row.Destination)
	assert.Equal(t, " 7m 14:07", row.TimeText)
	assert.Empty(t, row.StruckTime)
	assert.False(t, row.DelayMarker)
}

func TestBuildLayout_DelayedRowShowsStrikeAndMarker(t *testing.T) {
	delay := 2 * time.Minute
	dep := departure("13", 3*time.Minute)
	dep.Estimated = dep.Scheduled.Add(delay)
	dep.Realtime = true
	dep.Delay = &delay

	vm := viewModel(stopView("Solli plass", dep))
	vm.DelayedLines = []string{"13"}

	l := render.BuildLayout(vm, render.LayoutOptions{ShowRealtime: true, ShowDelayIndicator: true})

	require.Equal(t, render.KindDelaySummary, l.Lines[0].Kind)
	assert.Equal(t, "Delays: 13", l.Lines[0].Text)

	row := l.Lines[2].Row
	require.NotNil(t, row)
	assert.Equal(t, " 3m", row.StruckTime)
	assert.Equal(t, " 5m 14:05", row.TimeText)
	assert.True(t, row.DelayMarker)
}

func TestBuildLayout_RealtimeOffHidesStrike(t *testing.T) {
	delay := 2 * time.Minute
	dep := departure("13", 3*time.Minute)
	dep.Estimated = dep.Scheduled.Add(delay)
	dep.Realtime = true
	dep.Delay = &delay

	vm := viewModel(stopView("Solli plass", dep))
	vm.DelayedLines = []string{"13"}

	l := render.BuildLayout(vm, render.LayoutOptions{})

	row := l.Lines[1].Row
	require.NotNil(t, row)
	assert.Empty(t, row.StruckTime)
	assert.False(t, row.DelayMarker)
	require.NotEmpty(t, l.Lines)
	assert.NotEqual(t, render.KindDelaySummary, l.Lines[0].Kind)
}

func TestBuildLayout_CancelledRow(t *testing.T) {
	dep := departure("13", 3*time.Minute)
	dep.Cancelled = true

	vm := viewModel(stopView("Solli plass", dep))
	l := render.BuildLayout(vm, render.LayoutOptions{ShowRealtime: true, ShowDelayIndicator: true})

	row := l.Lines[1].Row
	require.NotNil(t, row)
	assert.True(t, row.Cancelled)
	assert.Equal(t, render.CancelledMarker, row.TimeText)
	assert.Empty(t, row.StruckTime)
}

func TestBuildLayout_PastDepartureReadsZeroMinutes(t *testing.T) {
	vm := viewModel(stopView("Solli plass", departure("13", -30*time.Second)))

	l := render.BuildLayout(vm, render.LayoutOptions{})

	row := l.Lines[1].Row
	require.NotNil(t, row)
	assert.Equal(t, " 0m 13:59", row.TimeText)
}

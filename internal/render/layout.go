package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/fluted/departureboard/internal/board"
	"github.com/fluted/departureboard/internal/config"
	"github.com/fluted/departureboard/internal/transit"
)

// LayoutOptions control how a view model is turned into board lines. The
// same layout feeds every target so hardware, emulator, and web stay in
// agreement about what the board says.
type LayoutOptions struct {
	// Location is the timezone clocks are shown in.
	Location *time.Location

	// ShowRealtime draws the superseded scheduled time struck through
	// next to the realtime estimate.
	ShowRealtime bool

	// ShowDelayIndicator enables the delay marker and the delay summary
	// line.
	ShowDelayIndicator bool
}

// LineKind classifies a board line.
type LineKind int

const (
	// KindStopHeader introduces a stop section with the stop name.
	KindStopHeader LineKind = iota

	// KindDeparture is one departure row.
	KindDeparture

	// KindNotice is a full-width message: per-stop "unavailable",
	// "no departures", or the board-wide unavailable state.
	KindNotice

	// KindDelaySummary lists the delayed lines.
	KindDelaySummary
)

// Row is a fully formatted departure row. All text is precomputed so the
// rasterizer and the web renderer only place strings.
type Row struct {
	// ModeTag is a short transport-mode tag, e.g. "TRM".
	ModeTag string

	// Line is the public line label.
	Line string

	// Destination is the (untruncated) front text. Pixel targets truncate
	// to the destination column; the web table shows it whole.
	Destination string

	// TimeText is the displayed departure time, "3m 14:02" style. For
	// cancelled departures it is the cancellation marker instead.
	TimeText string

	// StruckTime is the superseded scheduled minutes, drawn struck
	// through before TimeText. Empty when realtime did not change the
	// time or realtime display is off.
	StruckTime string

	// DelayMarker appends the delay glyph after TimeText.
	DelayMarker bool

	// Cancelled marks the row as cancelled.
	Cancelled bool
}

// Line is one visual line of the board.
type Line struct {
	Kind LineKind
	Text string
	Row  *Row
}

// Layout is the device-independent description of one board frame.
type Layout struct {
	// Header summarizes the stops ("Solli plass 3m 14:02 / ...").
	Header string

	// Clock is the wall time at generation, HH:MM:SS, right-aligned.
	Clock string

	// Lines in display order.
	Lines []Line

	// Healthy mirrors the view model health flag.
	Healthy bool
}

// Markers shared by all targets.
const (
	CancelledMarker   = "CANC"
	DelayGlyph        = "+"
	UnavailableNotice = "unavailable"
	NoDeparturesText  = "no departures"
	AllDownNotice     = "ALL STOPS UNAVAILABLE"
)

// BuildLayout applies the board layout policy to a view model.
func BuildLayout(vm board.ViewModel, opts LayoutOptions) Layout {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	l := Layout{
		Clock:   vm.GeneratedAt.In(loc).Format("15:04:05"),
		Healthy: vm.Healthy,
	}

	if !vm.Healthy {
		l.Header = "Departure Board"
		l.Lines = append(l.Lines, Line{Kind: KindNotice, Text: AllDownNotice})
		return l
	}

	l.Header = buildHeader(vm, loc)

	if opts.ShowDelayIndicator && len(vm.DelayedLines) > 0 {
		l.Lines = append(l.Lines, Line{
			Kind: KindDelaySummary,
			Text: "Delays: " + strings.Join(vm.DelayedLines, ", "),
		})
	}

	for _, stop := range vm.Stops {
		l.Lines = append(l.Lines, Line{Kind: KindStopHeader, Text: stop.Stop.Name})

		switch {
		case stop.Unavailable():
			l.Lines = append(l.Lines, Line{Kind: KindNotice, Text: UnavailableNotice})
		case len(stop.Departures) == 0:
			l.Lines = append(l.Lines, Line{Kind: KindNotice, Text: NoDeparturesText})
		default:
			for _, dep := range stop.Departures {
				row := buildRow(dep, vm.GeneratedAt, loc, opts)
				l.Lines = append(l.Lines, Line{Kind: KindDeparture, Row: &row})
			}
		}
	}

	return l
}

// buildHeader joins per-stop summaries: stop name plus minutes and clock
// time of its next departure.
func buildHeader(vm board.ViewModel, loc *time.Location) string {
	summaries := make([]string, 0, len(vm.Stops))
	for _, stop := range vm.Stops {
		next, ok := stop.NextDeparture()
		if !ok {
			summaries = append(summaries, stop.Stop.Name)
			continue
		}
		summaries = append(summaries, fmt.Sprintf("%s %dm %s",
			stop.Stop.Name,
			minutesUntil(next.Estimated, vm.GeneratedAt),
			next.Estimated.In(loc).Format("15:04"),
		))
	}
	if len(summaries) == 0 {
		return "Departure Board"
	}
	return strings.Join(summaries, " / ")
}

func buildRow(dep transit.Departure, now time.Time, loc *time.Location, opts LayoutOptions) Row {
	row := Row{
		ModeTag:     modeTag(dep.Mode),
		Line:        dep.Line,
		Destination: dep.Destination,
		Cancelled:   dep.Cancelled,
	}

	if dep.Cancelled {
		row.TimeText = CancelledMarker
		return row
	}

	estMins := minutesUntil(dep.Estimated, now)
	row.TimeText = fmt.Sprintf("%2dm %s", estMins, dep.Estimated.In(loc).Format("15:04"))

	if opts.ShowRealtime && dep.Realtime {
		schedMins := minutesUntil(dep.Scheduled, now)
		if schedMins != estMins {
			row.StruckTime = fmt.Sprintf("%2dm", schedMins)
		}
	}

	if opts.ShowDelayIndicator && dep.Delayed() {
		row.DelayMarker = true
	}

	return row
}

// minutesUntil floors at zero: a vehicle that should already have left
// reads 0m, never negative.
func minutesUntil(t, now time.Time) int {
	mins := int(t.Sub(now).Minutes())
	if mins < 0 {
		return 0
	}
	return mins
}

func modeTag(mode config.TransportMode) string {
	switch mode {
	case config.ModeTram:
		return "TRM"
	case config.ModeBus:
		return "BUS"
	case config.ModeTrain:
		return "TRN"
	case config.ModeFerry:
		return "FRY"
	case config.ModeAir:
		return "AIR"
	default:
		return "---"
	}
}

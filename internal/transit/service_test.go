package transit_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluted/departureboard/internal/config"
	"github.com/fluted/departureboard/internal/transit"
)

var (
	stopA = config.Stop{ID: "NSR:StopPlace:1", Name: "Solli plass", Mode: config.ModeTram}
	stopB = config.Stop{ID: "NSR:StopPlace:2", Name: "Nationaltheatret", Mode: config.ModeBus}
	stopC = config.Stop{ID: "NSR:StopPlace:3", Name: "Aker brygge", Mode: config.ModeFerry}
)

// mockProvider serves canned departures per stop ID, with optional per-stop
// errors, delays, and dropped-record counts.
type mockProvider struct {
	departures map[string][]transit.Departure
	errs       map[string]error
	dropped    map[string]int
	blockFor   map[string]time.Duration
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Departures(ctx context.Context, stop config.Stop, _ int) ([]transit.Departure, int, error) {
	if d, ok := m.blockFor[stop.ID]; ok {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, 0, fmt.Errorf("%w: %v", transit.ErrTimeout, ctx.Err())
		}
	}
	if err := m.errs[stop.ID]; err != nil {
		return nil, 0, err
	}
	return m.departures[stop.ID], m.dropped[stop.ID], nil
}

func dep(line string, estimated time.Time) transit.Departure {
	return transit.Departure{
		Line:        line,
		Destination: "Majorstuen",
		Scheduled:   estimated,
		Estimated:   estimated,
	}
}

func newService(p transit.Provider, timeout time.Duration) *transit.Service {
	return transit.NewService(transit.ServiceConfig{
		Provider: p,
		Logger:   zerolog.Nop(),
		Timeout:  timeout,
	})
}

func TestService_FetchStop_SortsByEstimatedTime(t *testing.T) {
	base := time.Date(2026, 8, 31, 14, 0, 0, 0, time.UTC)
	provider := &mockProvider{
		departures: map[string][]transit.Departure{
			stopA.ID: {
				dep("19", base.Add(10*time.Minute)),
				dep("11", base.Add(2*time.Minute)),
				dep("12", base.Add(2*time.Minute)),
			},
		},
	}

	res := newService(provider, time.Second).FetchStop(context.Background(), stopA)
	require.Equal(t, transit.OutcomeOK, res.Outcome)
	require.Len(t, res.Departures, 3)

	// Chronological, ties broken by line label.
	assert.Equal(t, "11", res.Departures[0].Line)
	assert.Equal(t, "12", res.Departures[1].Line)
	assert.Equal(t, "19", res.Departures[2].Line)
}

func TestService_FetchStop_PartialWhenRecordsDropped(t *testing.T) {
	provider := &mockProvider{
		departures: map[string][]transit.Departure{
			stopA.ID: {dep("11", time.Now())},
		},
		dropped: map[string]int{stopA.ID: 2},
	}

	res := newService(provider, time.Second).FetchStop(context.Background(), stopA)
	assert.Equal(t, transit.OutcomePartial, res.Outcome)
	assert.Equal(t, 2, res.Dropped)
	assert.True(t, res.OK())
}

func TestService_FetchStop_FoldsErrorsIntoResult(t *testing.T) {
	provider := &mockProvider{
		errs: map[string]error{stopA.ID: transit.ErrUnreachable},
	}

	res := newService(provider, time.Second).FetchStop(context.Background(), stopA)
	assert.Equal(t, transit.OutcomeFailed, res.Outcome)
	assert.False(t, res.OK())
	assert.ErrorIs(t, res.Err, transit.ErrUnreachable)
	assert.Empty(t, res.Departures)
}

func TestService_FetchAll_PreservesStopOrder(t *testing.T) {
	now := time.Now()
	provider := &mockProvider{
		departures: map[string][]transit.Departure{
			stopA.ID: {dep("11", now)},
			stopB.ID: {dep("30", now)},
			stopC.ID: {dep("B1", now)},
		},
	}

	results := newService(provider, time.Second).
		FetchAll(context.Background(), []config.Stop{stopA, stopB, stopC})
	require.Len(t, results, 3)
	assert.Equal(t, stopA.ID, results[0].Stop.ID)
	assert.Equal(t, stopB.ID, results[1].Stop.ID)
	assert.Equal(t, stopC.ID, results[2].Stop.ID)
}

func TestService_FetchAll_IsolatesFailures(t *testing.T) {
	now := time.Now()
	provider := &mockProvider{
		departures: map[string][]transit.Departure{
			stopA.ID: {dep("11", now)},
			stopC.ID: {},
		},
		errs: map[string]error{stopB.ID: errors.New("boom")},
	}

	results := newService(provider, time.Second).
		FetchAll(context.Background(), []config.Stop{stopA, stopB, stopC})
	require.Len(t, results, 3)

	assert.Equal(t, transit.OutcomeOK, results[0].Outcome)
	assert.Equal(t, transit.OutcomeFailed, results[1].Outcome)
	// Empty but valid result stays a success.
	assert.Equal(t, transit.OutcomeOK, results[2].Outcome)
	assert.Empty(t, results[2].Departures)
}

func TestService_FetchAll_TimeoutDoesNotDelaySiblings(t *testing.T) {
	now := time.Now()
	provider := &mockProvider{
		departures: map[string][]transit.Departure{
			stopA.ID: {dep("11", now)},
		},
		blockFor: map[string]time.Duration{stopB.ID: 10 * time.Second},
	}

	start := time.Now()
	results := newService(provider, 100*time.Millisecond).
		FetchAll(context.Background(), []config.Stop{stopA, stopB})
	elapsed := time.Since(start)

	// The whole cycle is bounded by the slowest stop's timeout, not by
	// the sum of all fetches.
	assert.Less(t, elapsed, 5*time.Second)

	assert.Equal(t, transit.OutcomeOK, results[0].Outcome)
	assert.Equal(t, transit.OutcomeFailed, results[1].Outcome)
	assert.ErrorIs(t, results[1].Err, transit.ErrTimeout)
}

func TestDeparture_Delayed(t *testing.T) {
	d := transit.Departure{}
	assert.False(t, d.Delayed())

	zero := time.Duration(0)
	d.Delay = &zero
	assert.False(t, d.Delayed())

	two := 2 * time.Minute
	d.Delay = &two
	assert.True(t, d.Delayed())
}

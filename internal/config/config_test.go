package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluted/departureboard/internal/config"
)

const validConfig = `
stops:
  - id: "NSR:StopPlace:41939"
    name: "Solli plass"
    mode: tram
  - id: "NSR:StopPlace:41936"
    name: "Nationaltheatret"
    mode: bus
    description: "Towards city centre"
api:
  clientName: "test-board"
  timeoutMS: 5000
settings:
  numberOfDepartures: 4
  refreshIntervalMS: 15000
  timezone: "Europe/Oslo"
display:
  maxRows: 4
  showRealtime: true
  showDelayIndicator: true
server:
  port: 9090
`

func TestParse(t *testing.T) {
	cfg, err := config.Parse([]byte(validConfig))
	require.NoError(t, err)

	require.Len(t, cfg.Stops, 2)
	assert.Equal(t, "NSR:StopPlace:41939", cfg.Stops[0].ID)
	assert.Equal(t, config.ModeTram, cfg.Stops[0].Mode)
	assert.Equal(t, "Towards city centre", cfg.Stops[1].Description)

	assert.Equal(t, "test-board", cfg.API.ClientName)
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout())
	assert.Equal(t, 15*time.Second, cfg.RefreshInterval())
	assert.Equal(t, 4, cfg.Settings.NumberOfDepartures)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "Europe/Oslo", cfg.Location().String())
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := config.Parse([]byte(`
stops:
  - id: "NSR:StopPlace:41939"
    name: "Solli plass"
    mode: tram
`))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultBaseURL, cfg.API.BaseURL)
	assert.Equal(t, config.DefaultClientName, cfg.API.ClientName)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout())
	assert.Equal(t, 3, cfg.Settings.NumberOfDepartures)
	assert.Equal(t, 30*time.Second, cfg.RefreshInterval())
	assert.Equal(t, config.DefaultTimezone, cfg.Settings.Timezone)
	assert.Equal(t, 3, cfg.Display.MaxRows)
	assert.Equal(t, config.DefaultDCPin, cfg.Display.Hardware.DCPin)
	assert.Equal(t, config.DefaultFramePath, cfg.Display.Emulator.FramePath)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestParse_Invalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"no stops", `api: {clientName: x}`},
		{"empty stops", `stops: []`},
		{"stop missing id", "stops:\n  - name: X\n    mode: tram"},
		{"stop missing name", "stops:\n  - id: X\n    mode: tram"},
		{"bad mode", "stops:\n  - id: X\n    name: Y\n    mode: zeppelin"},
		{"bad url", "stops:\n  - {id: X, name: Y, mode: bus}\napi:\n  baseURL: \"not a url\""},
		{"not yaml", `{{{{`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParse_InvalidTimezone(t *testing.T) {
	_, err := config.Parse([]byte(`
stops:
  - id: "NSR:StopPlace:41939"
    name: "Solli plass"
    mode: tram
settings:
  timezone: "Mars/Olympus_Mons"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timezone")
}

// Package config loads and validates the departure board configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// TransportMode tags a stop with the kind of vehicle serving it.
type TransportMode string

const (
	ModeTram  TransportMode = "tram"
	ModeBus   TransportMode = "bus"
	ModeTrain TransportMode = "train"
	ModeFerry TransportMode = "ferry"
	ModeAir   TransportMode = "air"
	ModeOther TransportMode = "other"
)

// Stop describes one configured stop place.
type Stop struct {
	// ID is the stop key in the provider's namespace, e.g. "NSR:StopPlace:41939".
	ID          string        `yaml:"id" validate:"required"`
	Name        string        `yaml:"name" validate:"required"`
	Mode        TransportMode `yaml:"mode" validate:"required,oneof=tram bus train ferry air other"`
	Description string        `yaml:"description"`
}

// API configures the transit data provider endpoint.
type API struct {
	BaseURL    string `yaml:"baseURL" validate:"omitempty,url"`
	ClientName string `yaml:"clientName"`
	TimeoutMS  int    `yaml:"timeoutMS" validate:"gte=0"`
}

// Settings holds board-wide behaviour knobs.
type Settings struct {
	NumberOfDepartures int    `yaml:"numberOfDepartures" validate:"gte=0,lte=10"`
	RefreshIntervalMS  int    `yaml:"refreshIntervalMS" validate:"gte=0"`
	Timezone           string `yaml:"timezone"`
}

// Hardware configures the physical display target.
type Hardware struct {
	// SPIDevice is the spireg port name; empty selects the first available bus.
	SPIDevice string `yaml:"spiDevice"`
	DCPin     string `yaml:"dcPin"`
	ResetPin  string `yaml:"resetPin"`
}

// Emulator configures the PNG-file display target.
type Emulator struct {
	FramePath string `yaml:"framePath"`
}

// Display configures rendering behaviour shared by all targets.
type Display struct {
	MaxRows            int      `yaml:"maxRows" validate:"gte=0,lte=10"`
	ShowRealtime       bool     `yaml:"showRealtime"`
	ShowDelayIndicator bool     `yaml:"showDelayIndicator"`
	Hardware           Hardware `yaml:"hardware"`
	Emulator           Emulator `yaml:"emulator"`
}

// Server configures the ops/snapshot HTTP listener.
type Server struct {
	Port int `yaml:"port" validate:"gte=0,lte=65535"`
}

// Config is the root configuration structure. It is loaded once at startup
// and never mutated afterwards.
type Config struct {
	Stops    []Stop   `yaml:"stops" validate:"required,min=1,dive"`
	API      API      `yaml:"api"`
	Settings Settings `yaml:"settings"`
	Display  Display  `yaml:"display"`
	Server   Server   `yaml:"server"`
}

// Defaults matching the reference deployment.
const (
	DefaultBaseURL    = "https://api.entur.io/journey-planner/v3/graphql"
	DefaultClientName = "fluted-departureboard"
	DefaultTimezone   = "Europe/Oslo"
	DefaultFramePath  = "boardd-frame.png"
	DefaultDCPin      = "GPIO24"
	DefaultResetPin   = "GPIO25"
)

// Load reads, validates, and defaults the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	v := validator.New()
	if err := v.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	cfg.applyDefaults()

	if _, err := time.LoadLocation(cfg.Settings.Timezone); err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Settings.Timezone, err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.ClientName == "" {
		c.API.ClientName = DefaultClientName
	}
	if c.API.TimeoutMS == 0 {
		c.API.TimeoutMS = 10000
	}
	if c.Settings.NumberOfDepartures == 0 {
		c.Settings.NumberOfDepartures = 3
	}
	if c.Settings.RefreshIntervalMS == 0 {
		c.Settings.RefreshIntervalMS = 30000
	}
	if c.Settings.Timezone == "" {
		c.Settings.Timezone = DefaultTimezone
	}
	if c.Display.MaxRows == 0 {
		c.Display.MaxRows = c.Settings.NumberOfDepartures
	}
	if c.Display.Hardware.DCPin == "" {
		c.Display.Hardware.DCPin = DefaultDCPin
	}
	if c.Display.Hardware.ResetPin == "" {
		c.Display.Hardware.ResetPin = DefaultResetPin
	}
	if c.Display.Emulator.FramePath == "" {
		c.Display.Emulator.FramePath = DefaultFramePath
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
}

// FetchTimeout returns the per-stop fetch timeout as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.API.TimeoutMS) * time.Millisecond
}

// RefreshInterval returns the cycle interval as a duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Settings.RefreshIntervalMS) * time.Millisecond
}

// Location resolves the configured timezone. Parse has already verified it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Settings.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

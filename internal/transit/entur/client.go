// Package entur implements the transit provider client for the Entur
// journey-planner GraphQL API.
package entur

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/fluted/departureboard/internal/config"
	"github.com/fluted/departureboard/internal/httpx"
	"github.com/fluted/departureboard/internal/transit"
)

// ProviderName identifies this transit provider.
const ProviderName = "entur"

// departuresQuery asks for the next departures at a stop place. Variables
// keep stop IDs out of the query string.
const departuresQuery = `query ($id: String!, $n: Int!) {
  stopPlace(id: $id) {
    name
    estimatedCalls(numberOfDepartures: $n) {
      aimedDepartureTime
      expectedDepartureTime
      realtime
      cancellation
      destinationDisplay { frontText }
      serviceJourney { line { publicCode transportMode } }
    }
  }
}`

// ClientConfig holds configuration for the Entur client.
type ClientConfig struct {
	// BaseURL is the GraphQL endpoint (optional, defaults to config.DefaultBaseURL).
	BaseURL string

	// ClientName is sent as ET-Client-Name, required by the Entur API terms.
	ClientName string

	// HTTPClient is the resilient client to use. If nil, one is built with
	// defaults.
	HTTPClient *httpx.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client fetches and normalizes departures from the Entur API.
type Client struct {
	baseURL    string
	clientName string
	httpClient *httpx.Client
	logger     zerolog.Logger
}

// NewClient creates a new Entur client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultBaseURL
	}
	clientName := cfg.ClientName
	if clientName == "" {
		clientName = config.DefaultClientName
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = httpx.NewClient(httpx.DefaultClientConfig(ProviderName))
	}
	return &Client{
		baseURL:    baseURL,
		clientName: clientName,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Departures fetches up to n upcoming departures for stop and normalizes
// them. Individual records that cannot be normalized are dropped; the count
// of dropped records is returned alongside the survivors. An empty result
// is a valid success.
func (c *Client) Departures(ctx context.Context, stop config.Stop, n int) ([]transit.Departure, int, error) {
	body, err := json.Marshal(graphqlRequest{
		Query: departuresQuery,
		Variables: map[string]any{
			"id": stop.ID,
			"n":  n,
		},
	})
	if err != nil {
		return nil, 0, fmt.Errorf("encoding query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("ET-Client-Name", c.clientName)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("%w: status %d", transit.ErrUnreachable, resp.StatusCode)
	}

	var gr graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, 0, fmt.Errorf("%w: decoding response: %v", transit.ErrParseFailure, err)
	}
	if len(gr.Errors) > 0 {
		return nil, 0, fmt.Errorf("%w: graphql: %s", transit.ErrParseFailure, gr.Errors[0].Message)
	}
	if gr.Data.StopPlace == nil {
		return nil, 0, fmt.Errorf("%w: stop place %s not found", transit.ErrParseFailure, stop.ID)
	}

	departures := make([]transit.Departure, 0, len(gr.Data.StopPlace.EstimatedCalls))
	dropped := 0
	for i := range gr.Data.StopPlace.EstimatedCalls {
		dep, err := c.normalize(&gr.Data.StopPlace.EstimatedCalls[i], stop)
		if err != nil {
			dropped++
			c.logger.Warn().
				Err(err).
				Str("stop_id", stop.ID).
				Msg("dropping malformed departure record")
			continue
		}
		departures = append(departures, dep)
	}

	return departures, dropped, nil
}

// normalize converts one raw estimated call into the board's departure
// model. Records without any usable timestamp are rejected.
func (c *Client) normalize(call *estimatedCall, stop config.Stop) (transit.Departure, error) {
	scheduled, schedErr := parseTime(call.AimedDepartureTime)
	estimated, estErr := parseTime(call.ExpectedDepartureTime)

	switch {
	case schedErr != nil && estErr != nil:
		return transit.Departure{}, errors.New("record has no parseable departure time")
	case schedErr != nil:
		// Scheduled time missing upstream; the estimate is all we have.
		scheduled = estimated
	case estErr != nil:
		estimated = scheduled
	}

	dep := transit.Departure{
		Line:        call.ServiceJourney.Line.PublicCode,
		Destination: call.DestinationDisplay.FrontText,
		Mode:        mapMode(call.ServiceJourney.Line.TransportMode),
		Scheduled:   scheduled,
		Estimated:   estimated,
		Realtime:    call.Realtime && estErr == nil,
		Cancelled:   call.Cancellation,
		StopID:      stop.ID,
	}

	if dep.Realtime && !dep.Cancelled {
		delay := estimated.Sub(scheduled)
		if delay < 0 {
			delay = 0
		}
		dep.Delay = &delay
	}

	return dep, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	return time.Parse(time.RFC3339, s)
}

// classifyTransportError maps transport failures onto the fetch error
// taxonomy.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", transit.ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", transit.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", transit.ErrUnreachable, err)
}

// mapMode maps Entur transport modes onto the board's mode tags.
func mapMode(mode string) config.TransportMode {
	switch mode {
	case "tram":
		return config.ModeTram
	case "bus", "coach", "trolleybus":
		return config.ModeBus
	case "rail", "metro", "monorail":
		return config.ModeTrain
	case "water", "ferry":
		return config.ModeFerry
	case "air":
		return config.ModeAir
	default:
		return config.ModeOther
	}
}

// Entur API request/response structures.

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlResponse struct {
	Data struct {
		StopPlace *stopPlace `json:"stopPlace"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type stopPlace struct {
	Name           string          `json:"name"`
	EstimatedCalls []estimatedCall `json:"estimatedCalls"`
}

type estimatedCall struct {
	AimedDepartureTime    string `json:"aimedDepartureTime"`
	ExpectedDepartureTime string `json:"expectedDepartureTime"`
	Realtime              bool   `json:"realtime"`
	Cancellation          bool   `json:"cancellation"`
	DestinationDisplay    struct {
		FrontText string `json:"frontText"`
	} `json:"destinationDisplay"`
	ServiceJourney struct {
		Line struct {
			PublicCode    string `json:"publicCode"`
			TransportMode string `json:"transportMode"`
		} `json:"line"`
	} `json:"serviceJourney"`
}

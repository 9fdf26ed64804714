// Package upstream is the HTTP client for the per-station arrivals API.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/linewatch/linewatch/internal/provider/resilience"
	"github.com/linewatch/linewatch/internal/transit"
)

const (
	// ProviderName identifies this provider in logs and the health registry.
	ProviderName = "arrivals"

	// APIKeyHeader carries the optional API key.
	APIKeyHeader = "X-API-Key"

	maxBodyBytes = 1 << 20
)

// ClientConfig holds configuration for the arrivals client.
type ClientConfig struct {
	// BaseURL is the API root, e.g. https://api.example.com/v1 (required).
	BaseURL string

	// APIKey is sent in APIKeyHeader when set.
	APIKey string

	// HTTPClient defaults to a resilient client registered in Registry with
	// one breaker per station. A custom client should set BreakerKey so a
	// failing station cannot open the breaker for the others.
	HTTPClient *resilience.Client

	// Registry receives the default client. Ignored when HTTPClient is set.
	Registry *resilience.Registry

	Logger zerolog.Logger
}

// Client fetches arrivals for a station code.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates an arrivals client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		rc := resilience.DefaultClientConfig(ProviderName)
		rc.Registry = cfg.Registry
		rc.BreakerKey = resilience.KeyByPath
		cb := resilience.DefaultCircuitBreakerConfig(ProviderName)
		cb.OnStateChange = resilience.LogStateChange(cfg.Logger)
		rc.CircuitBreaker = &cb
		httpClient = resilience.NewClient(rc)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Arrivals returns the upcoming arrivals at the station.
func (c *Client) Arrivals(ctx context.Context, stationCode string) ([]transit.Arrival, error) {
	endpoint := fmt.Sprintf("%s/stations/%s/arrivals", c.baseURL, url.PathEscape(stationCode))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", transit.ErrUpstreamStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	records, err := decodeArrivals(body)
	if err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	arrivals := make([]transit.Arrival, 0, len(records))
	for i := range records {
		arrivals = append(arrivals, records[i].toArrival())
	}

	c.logger.Debug().
		Str("station", stationCode).
		Int("arrivals", len(arrivals)).
		Msg("fetched arrivals")

	return arrivals, nil
}

// decodeArrivals accepts a bare array or an object wrapping it in "arrivals".
func decodeArrivals(body []byte) ([]arrivalRecord, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var records []arrivalRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, err
		}
		return records, nil
	}

	var wrapped arrivalsResponse
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Arrivals, nil
}

type arrivalsResponse struct {
	Arrivals []arrivalRecord `json:"arrivals"`
}

type arrivalRecord struct {
	Line      flexString `json:"line"`
	Direction string     `json:"direction"`
	Estimated flexNumber `json:"estimated"`
	Platform  flexString `json:"platform"`
	Wagons    flexNumber `json:"wagons"`
	Duration  flexNumber `json:"duration"`
}

func (r *arrivalRecord) toArrival() transit.Arrival {
	a := transit.Arrival{
		LineID:       string(r.Line),
		Destination:  strings.TrimSpace(r.Direction),
		ETAMinutes:   r.Estimated.ptr(),
		Platform:     string(r.Platform),
		TripDuration: r.Duration.ptr(),
	}
	if w, ok := r.Wagons.count(); ok {
		a.Wagons = &w
	}
	return a
}

// flexNumber decodes a JSON number or a numeric string. Null, empty or
// non-numeric strings leave it unset.
type flexNumber struct {
	value float64
	set   bool
}

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
		if s == "" {
			return nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	n.value, n.set = v, true
	return nil
}

func (n flexNumber) ptr() *float64 {
	if !n.set {
		return nil
	}
	v := n.value
	return &v
}

// count returns the value as a non-negative whole number. Fractional,
// negative, non-finite or out of range values are rejected.
func (n flexNumber) count() (int, bool) {
	v := n.value
	if !n.set || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if v < 0 || v > math.MaxInt32 || v != math.Trunc(v) {
		return 0, false
	}
	return int(v), true
}

// flexString decodes a JSON string or number as a string.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(str))
		return nil
	}
	*f = flexString(s)
	return nil
}

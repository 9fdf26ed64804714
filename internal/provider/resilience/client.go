package resilience

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

var (
	// ErrCircuitOpen is returned without calling upstream while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrMaxRetriesExceeded is returned when every attempt failed.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	// Name identifies the provider in the breaker and the registry.
	Name string

	// Timeout bounds a single attempt.
	Timeout time.Duration

	// MaxRetries is the number of extra attempts after the first one.
	// Zero disables retries.
	MaxRetries uint64

	InitialInterval time.Duration
	MaxInterval     time.Duration

	// CircuitBreaker overrides DefaultCircuitBreakerConfig(Name).
	CircuitBreaker *CircuitBreakerConfig

	// BreakerKey partitions the circuit breaker: requests with different
	// keys trip independently. Nil shares one breaker for every request.
	BreakerKey func(req *http.Request) string

	// Registry, when set, tracks this client's health.
	Registry *Registry
}

// DefaultClientConfig returns the configuration used for arrival providers:
// a short timeout and a single retry, since a slow station only delays its
// own slot in the snapshot.
func DefaultClientConfig(name string) ClientConfig {
	cbConfig := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         4 * time.Second,
		MaxRetries:      1,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		CircuitBreaker:  &cbConfig,
	}
}

// Client is an http.Client with a circuit breaker and retries.
type Client struct {
	httpClient    *http.Client
	breakerConfig CircuitBreakerConfig
	config        ClientConfig

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[*http.Response]
}

// KeyByPath gives every request path its own breaker.
func KeyByPath(req *http.Request) string {
	return req.URL.Path
}

// NewClient creates a resilient client and registers it when cfg.Registry is set.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 4 * time.Second
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = time.Second
	}

	cbConfig := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cbConfig = *cfg.CircuitBreaker
	}

	c := &Client{
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		breakerConfig: cbConfig,
		config:        cfg,
		breakers:      make(map[string]*gobreaker.CircuitBreaker[*http.Response]),
	}

	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}
	return c
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.config.Name
}

// Do executes the request with the request's context.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext executes the request through the breaker. Network errors and
// 5xx responses are retried with exponential backoff; 4xx responses are
// returned as-is. When retries run out on a 5xx the last response is returned
// so the caller can report the status.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)
	breaker := c.breaker(req)

	var lastResp *http.Response

	operation := func() error {
		if lastResp != nil {
			lastResp.Body.Close()
			lastResp = nil
		}

		resp, err := breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller closes
			r, err := c.httpClient.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= 500 {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			lastResp = resp
			return err
		}

		lastResp = resp
		return nil
	}

	err := backoff.Retry(operation, policy)
	c.record(err, lastResp)

	if err != nil {
		if lastResp != nil {
			return lastResp, nil
		}
		return nil, err
	}
	return lastResp, nil
}

func (c *Client) record(err error, resp *http.Response) {
	if c.config.Registry == nil {
		return
	}
	if err == nil {
		c.config.Registry.RecordSuccess(c.config.Name)
		return
	}
	if resp != nil {
		err = &ServerError{StatusCode: resp.StatusCode}
	}
	c.config.Registry.RecordFailure(c.config.Name, err)
}

// ServerError is an upstream 5xx response.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// breaker returns the breaker for the request's key, creating it on first use.
func (c *Client) breaker(req *http.Request) *gobreaker.CircuitBreaker[*http.Response] {
	key := ""
	if c.config.BreakerKey != nil {
		key = c.config.BreakerKey(req)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[key]; ok {
		return cb
	}
	cfg := c.breakerConfig
	if key != "" {
		cfg.Name = cfg.Name + " " + key
	}
	cb := NewCircuitBreaker[*http.Response](cfg) //nolint:bodyclose // type param, not response
	c.breakers[key] = cb
	return cb
}

func (c *Client) snapshotBreakers() []*gobreaker.CircuitBreaker[*http.Response] {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*gobreaker.CircuitBreaker[*http.Response], 0, len(c.breakers))
	for _, cb := range c.breakers {
		out = append(out, cb)
	}
	return out
}

// CircuitBreakerState summarizes the breakers: open when every one is open,
// half-open when only some are not closed, closed otherwise. A client that
// has not sent a request yet is closed.
func (c *Client) CircuitBreakerState() gobreaker.State {
	breakers := c.snapshotBreakers()
	open, notClosed := 0, 0
	for _, cb := range breakers {
		switch cb.State() {
		case gobreaker.StateOpen:
			open++
			notClosed++
		case gobreaker.StateHalfOpen:
			notClosed++
		}
	}

	switch {
	case len(breakers) > 0 && open == len(breakers):
		return gobreaker.StateOpen
	case notClosed > 0:
		return gobreaker.StateHalfOpen
	default:
		return gobreaker.StateClosed
	}
}

// OpenBreakers returns how many keyed breakers are open.
func (c *Client) OpenBreakers() int {
	n := 0
	for _, cb := range c.snapshotBreakers() {
		if cb.State() == gobreaker.StateOpen {
			n++
		}
	}
	return n
}

// CircuitBreakerCounts sums the breaker counts. ConsecutiveFailures and
// ConsecutiveSuccesses are the largest of any single breaker.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	var total gobreaker.Counts
	for _, cb := range c.snapshotBreakers() {
		counts := cb.Counts()
		total.Requests += counts.Requests
		total.TotalSuccesses += counts.TotalSuccesses
		total.TotalFailures += counts.TotalFailures
		total.ConsecutiveSuccesses = max(total.ConsecutiveSuccesses, counts.ConsecutiveSuccesses)
		total.ConsecutiveFailures = max(total.ConsecutiveFailures, counts.ConsecutiveFailures)
	}
	return total
}

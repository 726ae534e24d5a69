// Package api implements the data router against the feed's REST API.
// Every fetch pushes its parsed DTOs into the cache manager before the
// call returns, so callers can read the merged result from the caches
// immediately after.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"oddsfeed/internal/core"
	"oddsfeed/internal/httpclient"
)

// Config carries the REST client settings.
type Config struct {
	// BaseURL is the API root, without a trailing slash.
	BaseURL string

	// Token is the access token sent with every request.
	Token string

	// RequestsPerSecond caps the outgoing request rate. Default: 10.
	RequestsPerSecond float64

	// Burst is the rate limiter burst size. Default: 10.
	Burst int

	// BreakerTimeout is how long the circuit stays open after tripping.
	// Default: 30 seconds.
	BreakerTimeout time.Duration

	// HTTPClient overrides the default transport when set.
	HTTPClient *http.Client
}

func (c *Config) applyDefaults() {
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 10
	}
	if c.Burst <= 0 {
		c.Burst = 10
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = 30 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = httpclient.NewDefaultHTTPClient()
	}
}

// Client is the default core.DataRouter. Requests pass a rate limiter,
// collapse through a single-flight group keyed by path, and run inside
// a circuit breaker, in that order.
type Client struct {
	cfg      Config
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker[[]byte]
	limiter  *rate.Limiter
	group    singleflight.Group
	receiver core.DTOReceiver
}

// NewClient creates the REST data router. The receiver is the cache
// manager the fetched DTOs are pushed into.
func NewClient(receiver core.DTOReceiver, cfg Config) *Client {
	cfg.applyDefaults()
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "feed-api",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Client{
		cfg:      cfg,
		http:     cfg.HTTPClient,
		breaker:  breaker,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		receiver: receiver,
	}
}

// fetch GETs one API path and returns the response body. Concurrent
// fetches of the same path share one request.
func (c *Client) fetch(ctx context.Context, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err, _ := c.group.Do(path, func() (any, error) {
		return c.breaker.Execute(func() ([]byte, error) {
			return c.get(ctx, path)
		})
	})
	if err != nil {
		return nil, err
	}
	return body.([]byte), nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	url := c.cfg.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, core.NewCommunicationError(fmt.Sprintf("building request for %s", path), err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("x-access-token", c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, core.NewCommunicationError(fmt.Sprintf("requesting %s", path), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, core.NewNotFoundError(fmt.Sprintf("%s returned 404", path))
	case resp.StatusCode != http.StatusOK:
		return nil, core.NewCommunicationError(fmt.Sprintf("%s returned %d", path, resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewCommunicationError(fmt.Sprintf("reading %s response", path), err)
	}
	return body, nil
}

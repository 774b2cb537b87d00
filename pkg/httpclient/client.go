// Package httpclient is the JSON/REST client used to reach the hosted
// vehicle backend. It wraps resty with per-request timeouts, client-side
// rate limiting, and mapping of HTTP failures onto pkg/errors categories
// so callers can decide what to retry.
//
// Retries are not done here; pkg/retry wraps whole operations instead.
//
// Example usage:
//
//	client, err := httpclient.New(ctx, cfg.Remote)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	var rows []vehicles.Record
//	resp, err := client.Get(ctx, "/vehicles").
//	    WithQuery("status", "eq.active").
//	    Do()
//	if err == nil {
//	    err = resp.BodyAsJSON(&rows)
//	}
package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Combine-Capital/imoto/pkg/config"
	"github.com/Combine-Capital/imoto/pkg/errors"
	"golang.org/x/time/rate"
	"resty.dev/v3"
)

// Client provides HTTP/REST client functionality with rate limiting and
// middleware support.
type Client struct {
	resty   *resty.Client
	config  config.RemoteConfig
	limiter *rate.Limiter
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a client for cfg.BaseURL. It applies the per-request timeout
// and, when configured, a token-bucket rate limit shared by all requests.
func New(ctx context.Context, cfg config.RemoteConfig) (*Client, error) {
	cfg = applyDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid http client config")
	}

	restyClient := resty.New()

	if cfg.BaseURL != "" {
		restyClient.SetBaseURL(cfg.BaseURL)
	}
	restyClient.SetTimeout(cfg.Timeout)
	restyClient.SetTransport(&http.Transport{
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	})

	var limiter *rate.Limiter
	if cfg.RateLimitPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitBurst)
	}

	clientCtx, cancel := context.WithCancel(ctx)

	return &Client{
		resty:   restyClient,
		config:  cfg,
		limiter: limiter,
		ctx:     clientCtx,
		cancel:  cancel,
	}, nil
}

// Get creates a new GET request for the specified URL.
// The URL can be relative (appended to BaseURL) or absolute.
func (c *Client) Get(ctx context.Context, url string) *Request {
	return c.NewRequest(ctx).SetMethod(http.MethodGet).SetURL(url)
}

// Post creates a new POST request for the specified URL.
func (c *Client) Post(ctx context.Context, url string) *Request {
	return c.NewRequest(ctx).SetMethod(http.MethodPost).SetURL(url)
}

// Patch creates a new PATCH request for the specified URL.
func (c *Client) Patch(ctx context.Context, url string) *Request {
	return c.NewRequest(ctx).SetMethod(http.MethodPatch).SetURL(url)
}

// Delete creates a new DELETE request for the specified URL.
func (c *Client) Delete(ctx context.Context, url string) *Request {
	return c.NewRequest(ctx).SetMethod(http.MethodDelete).SetURL(url)
}

// NewRequest creates a new request with the client's configuration.
func (c *Client) NewRequest(ctx context.Context) *Request {
	return &Request{
		client: c,
		resty:  c.resty.R(),
		ctx:    ctx,
	}
}

// Close releases all resources associated with the client.
func (c *Client) Close() error {
	c.cancel()
	c.resty.Close()
	return nil
}

// checkRateLimit blocks until a token is available or ctx is done.
func (c *Client) checkRateLimit(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limit wait failed")
	}

	return nil
}

// applyDefaults applies default values to unset configuration fields.
func applyDefaults(cfg config.RemoteConfig) config.RemoteConfig {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RateLimitBurst == 0 && cfg.RateLimitPerSecond > 0 {
		cfg.RateLimitBurst = 1
	}
	return cfg
}

// validateConfig validates the HTTP client configuration.
func validateConfig(cfg config.RemoteConfig) error {
	if cfg.Timeout < 0 {
		return fmt.Errorf("timeout must be positive, got: %v", cfg.Timeout)
	}
	if cfg.RateLimitPerSecond < 0 {
		return fmt.Errorf("rate_limit_per_second must be non-negative, got: %f", cfg.RateLimitPerSecond)
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("rate_limit_burst must be non-negative, got: %d", cfg.RateLimitBurst)
	}
	return nil
}

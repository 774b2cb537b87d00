package httpclient

import (
	"context"
	"time"

	"github.com/Combine-Capital/imoto/pkg/logging"
	"resty.dev/v3"
)

type startTimeKey struct{}

// WithLogging logs each request at debug and each response at a level
// matching its status: info for success, warn for 4xx, error for 5xx.
func (c *Client) WithLogging(logger *logging.Logger) *Client {
	log := logger.WithComponent("httpclient")

	c.resty.AddRequestMiddleware(func(client *resty.Client, req *resty.Request) error {
		log.Debug().
			Str("method", req.Method).
			Str("url", req.URL).
			Msg("HTTP request starting")

		req.SetContext(context.WithValue(req.Context(), startTimeKey{}, time.Now()))
		return nil
	})

	c.resty.AddResponseMiddleware(func(client *resty.Client, resp *resty.Response) error {
		start, ok := resp.Request.Context().Value(startTimeKey{}).(time.Time)
		if !ok {
			start = time.Now()
		}

		statusCode := resp.StatusCode()
		event := log.Info()
		if statusCode >= 500 {
			event = log.Error()
		} else if statusCode >= 400 {
			event = log.Warn()
		}

		event.
			Str("method", resp.Request.Method).
			Str("url", resp.Request.URL).
			Int("status_code", statusCode).
			Dur(logging.Duration, time.Since(start)).
			Msg("HTTP request completed")

		return nil
	})

	return c
}

// WithAuthToken adds Bearer token authentication to all requests.
func (c *Client) WithAuthToken(token string) *Client {
	c.resty.SetAuthToken(token)
	return c
}

// WithDefaultHeader adds a default header to all requests.
func (c *Client) WithDefaultHeader(key, value string) *Client {
	c.resty.SetHeader(key, value)
	return c
}

// WithDefaultHeaders adds multiple default headers to all requests.
func (c *Client) WithDefaultHeaders(headers map[string]string) *Client {
	c.resty.SetHeaders(headers)
	return c
}

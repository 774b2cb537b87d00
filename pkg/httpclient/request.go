package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Combine-Capital/imoto/pkg/errors"
	"github.com/Combine-Capital/imoto/pkg/tracing"
	"resty.dev/v3"
)

// Request represents an HTTP request with a fluent builder API.
type Request struct {
	client *Client
	resty  *resty.Request
	ctx    context.Context
	cancel context.CancelFunc
	method string
	url    string
}

// SetMethod sets the HTTP method for the request.
func (r *Request) SetMethod(method string) *Request {
	r.method = method
	return r
}

// SetURL sets the URL for the request.
// Can be relative (appended to BaseURL) or absolute.
func (r *Request) SetURL(url string) *Request {
	r.url = url
	return r
}

// WithHeader sets a single header on the request.
func (r *Request) WithHeader(key, value string) *Request {
	r.resty.SetHeader(key, value)
	return r
}

// WithHeaders sets multiple headers on the request.
func (r *Request) WithHeaders(headers map[string]string) *Request {
	r.resty.SetHeaders(headers)
	return r
}

// WithQuery adds a single query parameter to the request.
func (r *Request) WithQuery(key, value string) *Request {
	r.resty.SetQueryParam(key, value)
	return r
}

// WithQueryParams adds multiple query parameters to the request.
func (r *Request) WithQueryParams(params map[string]string) *Request {
	r.resty.SetQueryParams(params)
	return r
}

// WithQueryValues adds query parameters that may repeat a key, such as
// "price=gte.1000&price=lte.5000".
func (r *Request) WithQueryValues(values url.Values) *Request {
	r.resty.SetQueryParamsFromValues(values)
	return r
}

// WithJSON sets the request body, serialized as JSON.
func (r *Request) WithJSON(body interface{}) *Request {
	r.resty.SetBody(body)
	r.resty.SetHeader("Content-Type", "application/json")
	return r
}

// WithTimeout bounds this request by timeout instead of the client default.
func (r *Request) WithTimeout(timeout time.Duration) *Request {
	r.ctx, r.cancel = context.WithTimeout(r.ctx, timeout)
	return r
}

// WithAuthToken sets the Bearer authentication token.
func (r *Request) WithAuthToken(token string) *Request {
	r.resty.SetAuthToken(token)
	return r
}

// Do executes the request. It waits for the rate limiter, then maps
// transport failures and non-2xx statuses onto pkg/errors categories.
func (r *Request) Do() (*Response, error) {
	if r.cancel != nil {
		defer r.cancel()
	}

	if err := r.client.checkRateLimit(r.ctx); err != nil {
		return nil, err
	}

	r.resty.SetContext(r.ctx)
	tracing.InjectHTTP(r.ctx, r.resty.Header)

	var resp *resty.Response
	var err error

	switch r.method {
	case http.MethodGet:
		resp, err = r.resty.Get(r.url)
	case http.MethodPost:
		resp, err = r.resty.Post(r.url)
	case http.MethodPatch:
		resp, err = r.resty.Patch(r.url)
	case http.MethodDelete:
		resp, err = r.resty.Delete(r.url)
	default:
		return nil, errors.NewPermanent(fmt.Sprintf("unsupported HTTP method: %s", r.method), nil)
	}

	return newResponse(resp, err)
}

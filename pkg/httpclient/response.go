package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Combine-Capital/imoto/pkg/errors"
	"resty.dev/v3"
)

// Response is a completed request with its body read and its status
// mapped onto an error category.
type Response struct {
	statusCode int
	body       []byte
	err        error
}

// newResponse reads resp and maps transport failures and non-2xx statuses.
// On a status error the Response is returned along with the error.
func newResponse(resp *resty.Response, err error) (*Response, error) {
	if err != nil {
		return nil, mapRequestError(err)
	}

	var body []byte
	if resp.Body != nil {
		var readErr error
		body, readErr = io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, errors.NewTemporary("failed to read response body", readErr)
		}
	}

	response := &Response{
		statusCode: resp.StatusCode(),
		body:       body,
	}
	if err := mapStatusCodeToError(resp.StatusCode(), string(body)); err != nil {
		response.err = err
		return response, err
	}
	return response, nil
}

// StatusCode returns the HTTP status code.
func (r *Response) StatusCode() int {
	return r.statusCode
}

// Body returns the raw response body.
func (r *Response) Body() []byte {
	return r.body
}

// BodyAsJSON unmarshals the response body into the provided struct.
func (r *Response) BodyAsJSON(dest interface{}) error {
	if r.err != nil {
		return r.err
	}

	if len(r.body) == 0 {
		return errors.NewInvalidInput("body", "empty response body")
	}

	if err := json.Unmarshal(r.body, dest); err != nil {
		return errors.Wrap(err, "failed to unmarshal JSON response")
	}

	return nil
}

// mapRequestError maps transport failures. A cancelled caller is permanent;
// a per-request timeout or network failure is temporary.
func mapRequestError(err error) error {
	if errors.Is(err, context.Canceled) {
		return errors.NewPermanent("request canceled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.NewTemporary("request timed out", err)
	}
	return errors.NewTemporary("request failed", err)
}

// mapStatusCodeToError maps HTTP status codes to error categories:
// 408, 429 and 5xx are temporary, other 4xx fail fast.
func mapStatusCodeToError(statusCode int, body string) error {
	// 2xx - success
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	// 3xx - redirects (handled by client automatically)
	if statusCode >= 300 && statusCode < 400 {
		return nil
	}

	// Create error message
	errMsg := fmt.Sprintf("HTTP %d: %s", statusCode, http.StatusText(statusCode))
	if len(body) > 0 && len(body) < 200 {
		errMsg = fmt.Sprintf("%s - %s", errMsg, body)
	}

	// 4xx - client errors
	switch statusCode {
	case http.StatusBadRequest: // 400
		return errors.NewInvalidInput("request", errMsg)
	case http.StatusUnauthorized: // 401
		return errors.NewUnauthorized(errMsg)
	case http.StatusForbidden: // 403
		return errors.NewUnauthorized(errMsg)
	case http.StatusNotFound: // 404
		return errors.NewNotFound("resource", errMsg)
	case http.StatusRequestTimeout: // 408
		return errors.NewTemporary(errMsg, nil)
	case http.StatusConflict: // 409
		return errors.NewPermanent(errMsg, nil)
	case http.StatusTooManyRequests: // 429
		return errors.NewTemporary(errMsg, nil)
	default:
		if statusCode >= 400 && statusCode < 500 {
			return errors.NewPermanent(errMsg, nil)
		}
	}

	// 5xx - server errors (temporary, should retry)
	if statusCode >= 500 {
		return errors.NewTemporary(errMsg, nil)
	}

	// Unknown status code
	return errors.NewPermanent(errMsg, nil)
}

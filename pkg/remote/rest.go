package remote

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Combine-Capital/imoto/pkg/config"
	"github.com/Combine-Capital/imoto/pkg/errors"
	"github.com/Combine-Capital/imoto/pkg/httpclient"
	"github.com/Combine-Capital/imoto/pkg/logging"
	"github.com/Combine-Capital/imoto/pkg/metrics"
	"github.com/Combine-Capital/imoto/pkg/retry"
	"github.com/Combine-Capital/imoto/pkg/tracing"
	"go.opentelemetry.io/otel/trace"
)

// RESTService is a DataService backed by a PostgREST-style HTTP API, where
// each kind is a table at "/<kind>" and filters are query parameters of the
// form "<column>=<op>.<value>".
//
// Reads, updates and deletes are retried on temporary failures. Creates are
// sent once, since a retried insert whose response was lost would duplicate
// the row.
type RESTService struct {
	client  *httpclient.Client
	logger  *logging.Logger
	metrics *metrics.Collectors
	retry   retry.Config
	selects map[string]string
}

// RESTOption configures a RESTService.
type RESTOption func(*RESTService)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) RESTOption {
	return func(s *RESTService) {
		s.logger = logger.WithComponent("remote")
	}
}

// WithMetrics records request durations on c.
func WithMetrics(c *metrics.Collectors) RESTOption {
	return func(s *RESTService) {
		s.metrics = c
	}
}

// WithRetry overrides the retry policy derived from the remote config.
func WithRetry(cfg retry.Config) RESTOption {
	return func(s *RESTService) {
		s.retry = cfg
	}
}

// WithSelect sets the columns, including embedded relations, returned for
// kind, e.g. "*, users(first_name, last_name, email)".
func WithSelect(kind, columns string) RESTOption {
	return func(s *RESTService) {
		s.selects[kind] = columns
	}
}

// NewRESTService creates a RESTService on top of client. The api key is
// sent on every request, and the access token (falling back to the api key)
// as the bearer token.
func NewRESTService(client *httpclient.Client, cfg config.RemoteConfig, opts ...RESTOption) *RESTService {
	token := cfg.AccessToken
	if token == "" {
		token = cfg.APIKey
	}
	if cfg.APIKey != "" {
		client.WithDefaultHeader("apikey", cfg.APIKey)
	}
	if token != "" {
		client.WithAuthToken(token)
	}

	s := &RESTService{
		client:  client,
		logger:  logging.Nop(),
		retry:   retry.FromRemote(cfg),
		selects: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchList implements DataService.
func (s *RESTService) FetchList(ctx context.Context, kind string, filter Filter) ([]json.RawMessage, error) {
	query := s.query(kind, filter.Select)
	for _, c := range filter.Where {
		query.Add(c.Column, c.Op+"."+c.Value)
	}
	for _, group := range filter.AnyOf {
		if len(group) == 0 {
			continue
		}
		parts := make([]string, len(group))
		for i, c := range group {
			parts[i] = c.String()
		}
		query.Add("or", "("+strings.Join(parts, ",")+")")
	}
	if filter.Order != "" {
		query.Set("order", filter.Order)
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}

	return call(ctx, s, OpFetchList, kind, true, func(ctx context.Context) ([]json.RawMessage, error) {
		resp, err := s.client.Get(ctx, "/"+kind).WithQueryValues(query).Do()
		if err != nil {
			return nil, err
		}
		return decodeRows(resp)
	})
}

// FetchOne implements DataService.
func (s *RESTService) FetchOne(ctx context.Context, kind, id string) (json.RawMessage, error) {
	query := s.query(kind, "")
	query.Set("id", "eq."+id)

	return call(ctx, s, OpFetchOne, kind, true, func(ctx context.Context) (json.RawMessage, error) {
		resp, err := s.client.Get(ctx, "/"+kind).WithQueryValues(query).Do()
		if err != nil {
			return nil, err
		}
		return single(resp, kind, id)
	})
}

// Create implements DataService.
func (s *RESTService) Create(ctx context.Context, kind string, payload any) (json.RawMessage, error) {
	query := s.query(kind, "")

	return call(ctx, s, OpCreate, kind, false, func(ctx context.Context) (json.RawMessage, error) {
		resp, err := s.client.Post(ctx, "/"+kind).
			WithQueryValues(query).
			WithHeader("Prefer", "return=representation").
			WithJSON(payload).
			Do()
		if err != nil {
			return nil, err
		}
		return single(resp, kind, "")
	})
}

// Update implements DataService.
func (s *RESTService) Update(ctx context.Context, kind, id string, patch any) (json.RawMessage, error) {
	query := s.query(kind, "")
	query.Set("id", "eq."+id)

	return call(ctx, s, OpUpdate, kind, true, func(ctx context.Context) (json.RawMessage, error) {
		resp, err := s.client.Patch(ctx, "/"+kind).
			WithQueryValues(query).
			WithHeader("Prefer", "return=representation").
			WithJSON(patch).
			Do()
		if err != nil {
			return nil, err
		}
		return single(resp, kind, id)
	})
}

// Delete implements DataService. When an earlier attempt failed and the
// retry matches no row, the first attempt is assumed to have removed it and
// Delete reports true.
func (s *RESTService) Delete(ctx context.Context, kind, id string) (bool, error) {
	n, attempts, err := s.deleteWhere(ctx, OpDelete, kind, []Condition{Eq("id", id)})
	if err != nil {
		return false, err
	}
	if n == 0 && attempts > 1 {
		s.logger.Debug().
			Str("kind", kind).
			Str("id", id).
			Int("attempts", attempts).
			Msg("retried delete matched no row, assuming an earlier attempt applied")
		return true, nil
	}
	return n > 0, nil
}

// DeleteWhere implements DataService.
func (s *RESTService) DeleteWhere(ctx context.Context, kind string, conds ...Condition) (int, error) {
	if len(conds) == 0 {
		return 0, errors.NewInvalidInput("conditions", "refusing to delete every "+kind+" row")
	}
	n, _, err := s.deleteWhere(ctx, OpDeleteWhere, kind, conds)
	return n, err
}

// deleteWhere also returns how many attempts were made.
func (s *RESTService) deleteWhere(ctx context.Context, op, kind string, conds []Condition) (int, int, error) {
	query := url.Values{}
	query.Set("select", "id")
	for _, c := range conds {
		query.Add(c.Column, c.Op+"."+c.Value)
	}

	attempts := 0
	n, err := call(ctx, s, op, kind, true, func(ctx context.Context) (int, error) {
		attempts++
		resp, err := s.client.Delete(ctx, "/"+kind).
			WithQueryValues(query).
			WithHeader("Prefer", "return=representation").
			Do()
		if err != nil {
			return 0, err
		}
		rows, err := decodeRows(resp)
		return len(rows), err
	})
	return n, attempts, err
}

// query starts the query string for kind with the select list.
func (s *RESTService) query(kind, override string) url.Values {
	q := url.Values{}
	sel := override
	if sel == "" {
		sel = s.selects[kind]
	}
	if sel != "" {
		q.Set("select", sel)
	}
	return q
}

// call runs fn under the retry policy inside a span, recording its duration
// and logging the outcome.
func call[T any](ctx context.Context, s *RESTService, op, kind string, retryable bool, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := tracing.StartSpan(ctx, "remote."+op, trace.WithAttributes(tracing.RemoteAttributes(op, kind)...))
	defer span.End()

	cfg := s.retry
	if !retryable {
		cfg.MaxAttempts = 1
	}
	cfg.OnRetry = func(err error, next time.Duration) {
		s.logger.Warn().
			Err(err).
			Str(logging.Operation, op).
			Str("kind", kind).
			Dur("retry_in", next).
			Msg("remote call failed, retrying")
	}

	start := time.Now()
	result, err := retry.DoWithData(ctx, cfg, func() (T, error) {
		return fn(ctx)
	})
	elapsed := time.Since(start)
	s.metrics.ObserveRemote(op, elapsed)

	if err != nil {
		tracing.SetSpanError(ctx, err)
		ev := s.logger.Error()
		if errors.IsNotFound(err) {
			ev = s.logger.Debug()
		}
		ev.Err(err).
			Str(logging.Operation, op).
			Str("kind", kind).
			Int64(logging.Duration, elapsed.Milliseconds()).
			Msg("remote call failed")
		return result, err
	}

	s.logger.Debug().
		Str(logging.Operation, op).
		Str("kind", kind).
		Int64(logging.Duration, elapsed.Milliseconds()).
		Msg("remote call completed")
	return result, nil
}

func decodeRows(resp *httpclient.Response) ([]json.RawMessage, error) {
	var rows []json.RawMessage
	if len(resp.Body()) == 0 {
		return rows, nil
	}
	if err := resp.BodyAsJSON(&rows); err != nil {
		return nil, errors.Wrap(err, "decode rows")
	}
	return rows, nil
}

// single returns the first row of resp, or a NotFoundError when there is
// none.
func single(resp *httpclient.Response, kind, id string) (json.RawMessage, error) {
	rows, err := decodeRows(resp)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.NewNotFound(kind, id)
	}
	return rows[0], nil
}

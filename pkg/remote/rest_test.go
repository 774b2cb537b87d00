package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Combine-Capital/imoto/pkg/config"
	"github.com/Combine-Capital/imoto/pkg/errors"
	"github.com/Combine-Capital/imoto/pkg/httpclient"
	"github.com/Combine-Capital/imoto/pkg/metrics"
	"github.com/Combine-Capital/imoto/pkg/retry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestService(t *testing.T, handler http.HandlerFunc, opts ...RESTOption) *RESTService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.RemoteConfig{
		BaseURL: server.URL,
		APIKey:  "anon-key",
		Timeout: time.Second,
	}
	client, err := httpclient.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	opts = append([]RESTOption{WithRetry(retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Jitter:       retry.NoJitter,
	})}, opts...)
	return NewRESTService(client, cfg, opts...)
}

func TestRESTService_FetchList(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/vehicles" {
			t.Errorf("request = %s %s, want GET /vehicles", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("apikey"); got != "anon-key" {
			t.Errorf("apikey = %q, want anon-key", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer anon-key" {
			t.Errorf("Authorization = %q, want Bearer anon-key", got)
		}

		q := r.URL.Query()
		if got := q["price"]; len(got) != 2 || got[0] != "gte.1000" || got[1] != "lte.5000" {
			t.Errorf("price = %v, want [gte.1000 lte.5000]", got)
		}
		if got := q.Get("status"); got != "eq.active" {
			t.Errorf("status = %q, want eq.active", got)
		}
		if got := q.Get("select"); got != "*, users(email)" {
			t.Errorf("select = %q", got)
		}
		if got := q.Get("order"); got != "created_at.desc" {
			t.Errorf("order = %q", got)
		}
		if got := q.Get("limit"); got != "10" {
			t.Errorf("limit = %q", got)
		}
		if got := q["or"]; len(got) != 2 || got[0] != "(make.ilike.%golf%,model.ilike.%golf%)" || got[1] != "(fuel.eq.Petrol,fuel.eq.Diesel)" {
			t.Errorf("or = %v", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"a"},{"id":"b"}]`))
	}, WithSelect("vehicles", "*, users(email)"))

	rows, err := svc.FetchList(context.Background(), "vehicles", Filter{
		Where: []Condition{Eq("status", "active"), Gte("price", "1000"), Lte("price", "5000")},
		AnyOf: [][]Condition{
			{ILike("make", "%golf%"), ILike("model", "%golf%")},
			{Eq("fuel", "Petrol"), Eq("fuel", "Diesel")},
		},
		Order: "created_at.desc",
		Limit: 10,
	})
	if err != nil {
		t.Fatalf("FetchList() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
}

func TestRESTService_FetchOne(t *testing.T) {
	t.Run("returns the row", func(t *testing.T) {
		svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("id"); got != "eq.v1" {
				t.Errorf("id = %q, want eq.v1", got)
			}
			_, _ = w.Write([]byte(`[{"id":"v1","make":"Toyota"}]`))
		})

		row, err := svc.FetchOne(context.Background(), "vehicles", "v1")
		if err != nil {
			t.Fatalf("FetchOne() error = %v", err)
		}
		var got map[string]string
		if err := json.Unmarshal(row, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got["make"] != "Toyota" {
			t.Errorf("make = %q, want Toyota", got["make"])
		}
	})

	t.Run("empty result is not found", func(t *testing.T) {
		svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[]`))
		})

		_, err := svc.FetchOne(context.Background(), "vehicles", "missing")
		if !errors.IsNotFound(err) {
			t.Errorf("FetchOne() error = %v, want NotFoundError", err)
		}
	})
}

func TestRESTService_RetriesTemporaryFailures(t *testing.T) {
	var calls atomic.Int32
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[{"id":"a"}]`))
	})

	rows, err := svc.FetchList(context.Background(), "vehicles", Filter{})
	if err != nil {
		t.Fatalf("FetchList() error = %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("len(rows) = %d, want 1", len(rows))
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestRESTService_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := svc.FetchList(context.Background(), "vehicles", Filter{})
	if !errors.IsTemporary(err) {
		t.Errorf("FetchList() error = %v, want TemporaryError", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestRESTService_ClientErrorsFailFast(t *testing.T) {
	var calls atomic.Int32
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"bad filter"}`))
	})

	_, err := svc.FetchList(context.Background(), "vehicles", Filter{})
	if !errors.IsInvalidInput(err) {
		t.Errorf("FetchList() error = %v, want InvalidInputError", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestRESTService_Create(t *testing.T) {
	t.Run("sends payload and returns the stored row", func(t *testing.T) {
		svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("method = %s, want POST", r.Method)
			}
			if got := r.Header.Get("Prefer"); got != "return=representation" {
				t.Errorf("Prefer = %q", got)
			}
			body, _ := io.ReadAll(r.Body)
			if !strings.Contains(string(body), `"make":"Mazda"`) {
				t.Errorf("body = %s", body)
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`[{"id":"new-1","make":"Mazda"}]`))
		})

		row, err := svc.Create(context.Background(), "vehicles", map[string]string{"make": "Mazda"})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if !strings.Contains(string(row), "new-1") {
			t.Errorf("row = %s, want id new-1", row)
		}
	})

	t.Run("is not retried", func(t *testing.T) {
		var calls atomic.Int32
		svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		_, err := svc.Create(context.Background(), "vehicles", map[string]string{"make": "Mazda"})
		if !errors.IsTemporary(err) {
			t.Errorf("Create() error = %v, want TemporaryError", err)
		}
		if calls.Load() != 1 {
			t.Errorf("calls = %d, want 1", calls.Load())
		}
	})
}

func TestRESTService_Update(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s, want PATCH", r.Method)
		}
		if got := r.URL.Query().Get("id"); got != "eq.v1" {
			t.Errorf("id = %q", got)
		}
		_, _ = w.Write([]byte(`[{"id":"v1","price":9000}]`))
	})

	row, err := svc.Update(context.Background(), "vehicles", "v1", map[string]int{"price": 9000})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !strings.Contains(string(row), `"price":9000`) {
		t.Errorf("row = %s", row)
	}
}

func TestRESTService_Delete(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"existing row", `[{"id":"v1"}]`, true},
		{"missing row", `[]`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodDelete {
					t.Errorf("method = %s, want DELETE", r.Method)
				}
				_, _ = w.Write([]byte(tt.body))
			})

			got, err := svc.Delete(context.Background(), "vehicles", "v1")
			if err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Delete() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRESTService_DeleteAfterLostResponse(t *testing.T) {
	var hits atomic.Int32
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})

	got, err := svc.Delete(context.Background(), "vehicles", "v1")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !got {
		t.Error("Delete() = false, want true after a retried attempt")
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("hits = %d, want 2", n)
	}
}

func TestRESTService_DeleteWhere(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("user_id") != "eq.u1" || q.Get("vehicle_id") != "eq.v1" {
			t.Errorf("query = %v", q)
		}
		_, _ = w.Write([]byte(`[{"id":"s1"}]`))
	})

	n, err := svc.DeleteWhere(context.Background(), "saved_vehicles", Eq("user_id", "u1"), Eq("vehicle_id", "v1"))
	if err != nil {
		t.Fatalf("DeleteWhere() error = %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteWhere() = %d, want 1", n)
	}

	if _, err := svc.DeleteWhere(context.Background(), "saved_vehicles"); !errors.IsInvalidInput(err) {
		t.Errorf("DeleteWhere() without conditions error = %v, want InvalidInputError", err)
	}
}

func TestRESTService_AccessTokenPreferred(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer user-jwt" {
			t.Errorf("Authorization = %q, want Bearer user-jwt", got)
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	cfg := config.RemoteConfig{BaseURL: server.URL, APIKey: "anon-key", AccessToken: "user-jwt"}
	client, err := httpclient.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	if _, err := NewRESTService(client, cfg).FetchList(context.Background(), "vehicles", Filter{}); err != nil {
		t.Fatalf("FetchList() error = %v", err)
	}
}

func TestRESTService_RecordsDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg, "imoto")
	if err != nil {
		t.Fatalf("metrics.New() error = %v", err)
	}

	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}, WithMetrics(m))

	_, _ = svc.FetchList(context.Background(), "vehicles", Filter{})
	_, _ = svc.FetchOne(context.Background(), "vehicles", "v1")

	n, err := testutil.GatherAndCount(reg, "imoto_remote_request_duration_seconds")
	if err != nil {
		t.Fatalf("GatherAndCount() error = %v", err)
	}
	if n != 2 {
		t.Errorf("series = %d, want 2 (fetch_list, fetch_one)", n)
	}
}

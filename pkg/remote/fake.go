package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/Combine-Capital/imoto/pkg/errors"
	"github.com/google/uuid"
)

// Fake is an in-memory DataService. Rows are kept per kind in insertion
// order. A row field named "<name>_id" is joined on read with the row of
// kind "<name>s" that has that id, embedded under the key "<name>s", which
// is how the backend returns vehicles with their seller.
//
// It counts calls per operation and can be told to fail or to block, so
// tests can observe retry, dedupe and fallback behavior.
type Fake struct {
	mu     sync.Mutex
	tables map[string][]map[string]any
	calls  map[string]int
	fail   map[string]error
	gate   chan struct{}
}

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{
		tables: make(map[string][]map[string]any),
		calls:  make(map[string]int),
		fail:   make(map[string]error),
	}
}

// Seed appends rows to kind. Each row is anything that marshals to a JSON
// object; a missing id is generated.
func (f *Fake) Seed(kind string, rows ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, r := range rows {
		row, err := toRow(r)
		if err != nil {
			return err
		}
		if _, ok := row["id"]; !ok {
			row["id"] = uuid.NewString()
		}
		f.tables[kind] = append(f.tables[kind], row)
	}
	return nil
}

// FailWith makes every later call of op return err, until cleared with a
// nil err.
func (f *Fake) FailWith(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err == nil {
		delete(f.fail, op)
		return
	}
	f.fail[op] = err
}

// Block makes fetch calls wait until release is called or their context is
// done.
func (f *Fake) Block() (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	gate := make(chan struct{})
	f.gate = gate
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			if f.gate == gate {
				f.gate = nil
			}
			f.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns how many times op was invoked.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Rows returns the number of rows of kind.
func (f *Fake) Rows(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tables[kind])
}

// enter counts the call and returns the injected error and gate for op.
func (f *Fake) enter(op string) (chan struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.gate, f.fail[op]
}

func (f *Fake) wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return errors.NewTemporary("fake fetch interrupted", ctx.Err())
	}
}

// FetchList implements DataService.
func (f *Fake) FetchList(ctx context.Context, kind string, filter Filter) ([]json.RawMessage, error) {
	gate, failErr := f.enter(OpFetchList)
	if err := f.wait(ctx, gate); err != nil {
		return nil, err
	}
	if failErr != nil {
		return nil, failErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []map[string]any
	for _, row := range f.tables[kind] {
		if matchAll(row, filter.Where) && matchGroups(row, filter.AnyOf) {
			matched = append(matched, row)
		}
	}
	if filter.Order != "" {
		sortRows(matched, filter.Order)
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	out := make([]json.RawMessage, 0, len(matched))
	for _, row := range matched {
		raw, err := json.Marshal(f.join(row, 0))
		if err != nil {
			return nil, errors.Wrap(err, "encode row")
		}
		out = append(out, raw)
	}
	return out, nil
}

// FetchOne implements DataService.
func (f *Fake) FetchOne(ctx context.Context, kind, id string) (json.RawMessage, error) {
	gate, failErr := f.enter(OpFetchOne)
	if err := f.wait(ctx, gate); err != nil {
		return nil, err
	}
	if failErr != nil {
		return nil, failErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	_, row := f.find(kind, id)
	if row == nil {
		return nil, errors.NewNotFound(kind, id)
	}
	return json.Marshal(f.join(row, 0))
}

// Create implements DataService.
func (f *Fake) Create(_ context.Context, kind string, payload any) (json.RawMessage, error) {
	if _, err := f.enter(OpCreate); err != nil {
		return nil, err
	}

	row, err := toRow(payload)
	if err != nil {
		return nil, errors.NewInvalidInputWithCause("payload", "not a JSON object", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := row["id"]; !ok {
		row["id"] = uuid.NewString()
	}
	f.tables[kind] = append(f.tables[kind], row)
	return json.Marshal(f.join(row, 0))
}

// Update implements DataService.
func (f *Fake) Update(_ context.Context, kind, id string, patch any) (json.RawMessage, error) {
	if _, err := f.enter(OpUpdate); err != nil {
		return nil, err
	}

	changes, err := toRow(patch)
	if err != nil {
		return nil, errors.NewInvalidInputWithCause("patch", "not a JSON object", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	_, row := f.find(kind, id)
	if row == nil {
		return nil, errors.NewNotFound(kind, id)
	}
	for k, v := range changes {
		row[k] = v
	}
	return json.Marshal(f.join(row, 0))
}

// Delete implements DataService.
func (f *Fake) Delete(_ context.Context, kind, id string) (bool, error) {
	if _, err := f.enter(OpDelete); err != nil {
		return false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	i, row := f.find(kind, id)
	if row == nil {
		return false, nil
	}
	rows := f.tables[kind]
	f.tables[kind] = append(rows[:i:i], rows[i+1:]...)
	return true, nil
}

// DeleteWhere implements DataService.
func (f *Fake) DeleteWhere(_ context.Context, kind string, conds ...Condition) (int, error) {
	if _, err := f.enter(OpDeleteWhere); err != nil {
		return 0, err
	}
	if len(conds) == 0 {
		return 0, errors.NewInvalidInput("conditions", "refusing to delete every "+kind+" row")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var kept []map[string]any
	removed := 0
	for _, row := range f.tables[kind] {
		if matchAll(row, conds) {
			removed++
			continue
		}
		kept = append(kept, row)
	}
	f.tables[kind] = kept
	return removed, nil
}

func (f *Fake) find(kind, id string) (int, map[string]any) {
	for i, row := range f.tables[kind] {
		if str(row["id"]) == id {
			return i, row
		}
	}
	return -1, nil
}

// join returns a copy of row with its "<name>_id" references embedded.
func (f *Fake) join(row map[string]any, depth int) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	if depth > 1 {
		return out
	}
	for k, v := range row {
		name, ok := strings.CutSuffix(k, "_id")
		if !ok {
			continue
		}
		if _, ref := f.find(name+"s", str(v)); ref != nil {
			out[name+"s"] = f.join(ref, depth+1)
		}
	}
	return out
}

func toRow(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var row map[string]any
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errors.NewInvalidInput("row", "null")
	}
	return row, nil
}

func matchAll(row map[string]any, conds []Condition) bool {
	for _, c := range conds {
		if !match(row, c) {
			return false
		}
	}
	return true
}

func matchGroups(row map[string]any, groups [][]Condition) bool {
	for _, group := range groups {
		if len(group) == 0 {
			continue
		}
		matched := false
		for _, c := range group {
			if match(row, c) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func match(row map[string]any, c Condition) bool {
	v, ok := row[c.Column]
	if !ok || v == nil {
		return false
	}
	switch c.Op {
	case OpEq:
		return str(v) == c.Value
	case OpGte, OpLte:
		have, err1 := strconv.ParseFloat(str(v), 64)
		want, err2 := strconv.ParseFloat(c.Value, 64)
		if err1 != nil || err2 != nil {
			return false
		}
		if c.Op == OpGte {
			return have >= want
		}
		return have <= want
	case OpILike:
		return likeMatch(strings.ToLower(str(v)), strings.ToLower(c.Value))
	case OpIn:
		for _, want := range strings.Split(strings.Trim(c.Value, "()"), ",") {
			if str(v) == strings.TrimSpace(want) {
				return true
			}
		}
	}
	return false
}

// likeMatch matches s against a pattern where % is a wildcard.
func likeMatch(s, pattern string) bool {
	parts := strings.Split(pattern, "%")
	if len(parts) == 1 {
		return s == pattern
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	last := parts[len(parts)-1]
	for _, p := range parts[1 : len(parts)-1] {
		i := strings.Index(s, p)
		if i < 0 {
			return false
		}
		s = s[i+len(p):]
	}
	return strings.HasSuffix(s, last)
}

func sortRows(rows []map[string]any, order string) {
	column, dir, _ := strings.Cut(order, ".")
	desc := dir == "desc"
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := str(rows[i][column]), str(rows[j][column])
		if desc {
			return a > b
		}
		return a < b
	})
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// Package remote is the boundary to the hosted data backend, the sole
// source of truth for vehicles, users and saved vehicles. Records cross the
// boundary as raw JSON rows; mapping them to domain types is the caller's job.
//
// RESTService talks to a PostgREST-style HTTP API. Fake is an in-memory
// implementation for tests and offline use.
package remote

import (
	"context"
	"encoding/json"
	"strings"
)

// Operation names, used as metric labels and for Fake call counting.
const (
	OpFetchList   = "fetch_list"
	OpFetchOne    = "fetch_one"
	OpCreate      = "create"
	OpUpdate      = "update"
	OpDelete      = "delete"
	OpDeleteWhere = "delete_where"
)

// DataService is the remote data API.
type DataService interface {
	// FetchList returns the rows of kind matching filter.
	FetchList(ctx context.Context, kind string, filter Filter) ([]json.RawMessage, error)

	// FetchOne returns the row of kind with the given id, or a NotFoundError.
	FetchOne(ctx context.Context, kind, id string) (json.RawMessage, error)

	// Create inserts payload and returns the stored row.
	Create(ctx context.Context, kind string, payload any) (json.RawMessage, error)

	// Update applies patch to the row with the given id and returns the
	// updated row, or a NotFoundError.
	Update(ctx context.Context, kind, id string, patch any) (json.RawMessage, error)

	// Delete removes the row with the given id and reports whether it existed.
	Delete(ctx context.Context, kind, id string) (bool, error)

	// DeleteWhere removes every row of kind matching all conditions and
	// returns how many were removed.
	DeleteWhere(ctx context.Context, kind string, conds ...Condition) (int, error)
}

// Comparison operators understood by the backend.
const (
	OpEq    = "eq"
	OpGte   = "gte"
	OpLte   = "lte"
	OpILike = "ilike"
	OpIn    = "in"
)

// Condition is a single column comparison.
type Condition struct {
	Column string
	Op     string
	Value  string
}

// Eq matches rows whose column equals value.
func Eq(column, value string) Condition {
	return Condition{Column: column, Op: OpEq, Value: value}
}

// Gte matches rows whose numeric column is at least value.
func Gte(column, value string) Condition {
	return Condition{Column: column, Op: OpGte, Value: value}
}

// Lte matches rows whose numeric column is at most value.
func Lte(column, value string) Condition {
	return Condition{Column: column, Op: OpLte, Value: value}
}

// ILike matches rows whose column matches a case-insensitive pattern,
// where % matches any run of characters.
func ILike(column, pattern string) Condition {
	return Condition{Column: column, Op: OpILike, Value: pattern}
}

// In matches rows whose column equals any of values.
func In(column string, values ...string) Condition {
	return Condition{Column: column, Op: OpIn, Value: "(" + strings.Join(values, ",") + ")"}
}

// String renders the condition in backend syntax, e.g. "price.gte.1000".
func (c Condition) String() string {
	return c.Column + "." + c.Op + "." + c.Value
}

// Filter selects and orders rows for FetchList.
type Filter struct {
	// Where conditions must all match.
	Where []Condition

	// AnyOf holds groups of alternatives. A row must match at least one
	// condition of every group.
	AnyOf [][]Condition

	// Select overrides the columns returned for this call.
	Select string

	// Order is "<column>.asc" or "<column>.desc".
	Order string

	// Limit caps the number of rows; 0 means no limit.
	Limit int
}

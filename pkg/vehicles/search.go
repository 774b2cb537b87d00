package vehicles

import (
	"context"
	"strconv"
	"strings"

	"github.com/Combine-Capital/imoto/pkg/logging"
	"github.com/Combine-Capital/imoto/pkg/remote"
)

// Engine capacity slider limits in litres. A bound at or beyond its limit
// does not constrain the search.
const (
	EngineCapacityFloor   = 1.0
	EngineCapacityCeiling = 8.0
)

// Filters narrows the active listings. Zero values do not constrain.
type Filters struct {
	Query             string
	MinPrice          float64
	MaxPrice          float64
	MinYear           int
	MaxYear           int
	MinMileage        int
	MaxMileage        int
	FuelTypes         []string
	Transmission      string
	BodyTypes         []string
	EngineCapacityMin float64
	EngineCapacityMax float64
	Province          string
	City              string
}

// SearchVehicles returns active listings whose make, model or variant
// contains query, ignoring case. An empty query returns GetVehicles for the
// active status. Search results are not cached, and a failed search returns
// an empty list.
func (r *Repository) SearchVehicles(ctx context.Context, query string) []Vehicle {
	query = strings.TrimSpace(query)
	if query == "" {
		return r.GetVehicles(ctx, StatusActive, false)
	}

	vs, err := r.fetchVehicles(ctx, remote.Filter{
		Where:  []remote.Condition{remote.Eq("status", StatusActive)},
		AnyOf:  [][]remote.Condition{textMatch(query)},
		Select: Columns,
		Order:  "created_at.desc",
	})
	if err != nil {
		r.logger.Error().Err(err).Str("query", query).Msg("vehicle search failed")
		return []Vehicle{}
	}
	return vs
}

// FilterVehicles returns active listings matching f, newest first. Results
// are not cached, and a failed lookup returns an empty list.
func (r *Repository) FilterVehicles(ctx context.Context, f Filters) []Vehicle {
	vs, err := r.fetchVehicles(ctx, f.filter())
	if err != nil {
		r.logger.Error().Err(err).Msg("vehicle filter failed")
		return []Vehicle{}
	}
	r.logger.Debug().Int(logging.Count, len(vs)).Msg("vehicles filtered")
	return vs
}

// filter translates f into backend conditions.
func (f Filters) filter() remote.Filter {
	out := remote.Filter{
		Where:  []remote.Condition{remote.Eq("status", StatusActive)},
		Select: Columns,
		Order:  "created_at.desc",
	}
	where := func(c remote.Condition) {
		out.Where = append(out.Where, c)
	}

	if q := strings.TrimSpace(f.Query); q != "" {
		out.AnyOf = append(out.AnyOf, textMatch(q))
	}

	if f.MinPrice > 0 {
		where(remote.Gte("price", formatFloat(f.MinPrice)))
	}
	if f.MaxPrice > 0 {
		where(remote.Lte("price", formatFloat(f.MaxPrice)))
	}
	if f.MinYear > 0 {
		where(remote.Gte("year", strconv.Itoa(f.MinYear)))
	}
	if f.MaxYear > 0 {
		where(remote.Lte("year", strconv.Itoa(f.MaxYear)))
	}
	if f.MinMileage > 0 {
		where(remote.Gte("mileage", strconv.Itoa(f.MinMileage)))
	}
	if f.MaxMileage > 0 {
		where(remote.Lte("mileage", strconv.Itoa(f.MaxMileage)))
	}

	if group := anyContains("fuel", f.FuelTypes); len(group) > 0 {
		out.AnyOf = append(out.AnyOf, group)
	}
	if group := anyContains("body_type", f.BodyTypes); len(group) > 0 {
		out.AnyOf = append(out.AnyOf, group)
	}
	if t := strings.TrimSpace(f.Transmission); t != "" && !strings.EqualFold(t, "all") {
		where(remote.ILike("transmission", contains(t)))
	}

	if f.EngineCapacityMin > EngineCapacityFloor {
		where(remote.Gte("engine_capacity", formatFloat(f.EngineCapacityMin)))
	}
	if f.EngineCapacityMax > 0 && f.EngineCapacityMax < EngineCapacityCeiling {
		where(remote.Lte("engine_capacity", formatFloat(f.EngineCapacityMax)))
	}

	if p := strings.TrimSpace(f.Province); p != "" {
		where(remote.ILike("province", contains(p)))
	}
	if c := strings.TrimSpace(f.City); c != "" {
		where(remote.ILike("city", contains(c)))
	}
	return out
}

func textMatch(q string) []remote.Condition {
	return []remote.Condition{
		remote.ILike("make", contains(q)),
		remote.ILike("model", contains(q)),
		remote.ILike("variant", contains(q)),
	}
}

func anyContains(column string, values []string) []remote.Condition {
	var group []remote.Condition
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			group = append(group, remote.ILike(column, contains(v)))
		}
	}
	return group
}

func contains(s string) string {
	return "%" + s + "%"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Package logging provides structured logging with zerolog for the Imoto data layer.
// It supports configurable log levels and output formats (JSON/console) and a
// fixed vocabulary of field names so cache and fetch events can be filtered
// consistently.
//
// Example usage:
//
//	cfg := config.LogConfig{
//	    Level:  "debug",
//	    Format: "console",
//	}
//	logger := logging.New(cfg).WithComponent("cache")
//	logger.Debug().Str(logging.CacheKey, key).Dur(logging.Age, age).Msg("cache hit")
package logging

// Standard field names for structured logging.
const (
	// Component is the field name for the component/package generating the log.
	Component = "component"

	// CacheKey is the field name for the storage key of a cache entry.
	CacheKey = "cache_key"

	// Age is the field name for the age of a cache entry.
	Age = "age_ms"

	// SizeBytes is the field name for a serialized size.
	SizeBytes = "size_bytes"

	// Count is the field name for a number of records or entries.
	Count = "count"

	// UserID is the field name for the user a cache entry or request belongs to.
	UserID = "user_id"

	// VehicleID is the field name for a vehicle listing ID.
	VehicleID = "vehicle_id"

	// Status is the field name for a listing status filter.
	Status = "status"

	// Operation is the field name for the remote operation name.
	Operation = "op"

	// Duration is the field name for operation duration.
	Duration = "duration_ms"

	// RequestID is the field name for a correlation ID carried in the context.
	RequestID = "request_id"
)

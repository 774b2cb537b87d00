package cache

import (
	"strings"
)

// Entry kinds used in cache keys.
const (
	KindVehicles       = "vehicles"
	KindVehicleDetails = "vehicle_details"
	KindUserVehicles   = "user_vehicles"
	KindSavedVehicles  = "saved_vehicles"
)

// kinds is ordered longest first so KindOf matches "vehicle_details" before "vehicles".
var kinds = []string{KindVehicleDetails, KindUserVehicles, KindSavedVehicles, KindVehicles}

const timestampSuffix = "_timestamp"

// Key builds a cache key by joining a prefix and parts with underscores.
// A given (kind, id) pair always maps to the same key, which is what makes
// write invalidation reliable.
//
// Example:
//
//	key := cache.Key("imoto", cache.KindVehicles, "active")           // "imoto_vehicles_active"
//	key := cache.Key("imoto", cache.KindVehicleDetails, vehicleID)    // "imoto_vehicle_details_v123"
//
// Empty parts are filtered out to prevent double underscores.
func Key(prefix string, parts ...string) string {
	filtered := make([]string, 0, len(parts)+1)

	if prefix != "" {
		filtered = append(filtered, prefix)
	}

	for _, part := range parts {
		if part != "" {
			filtered = append(filtered, part)
		}
	}

	return strings.Join(filtered, "_")
}

// TimestampKey returns the side key holding the write time of key.
func TimestampKey(key string) string {
	return key + timestampSuffix
}

// IsTimestampKey reports whether key is a timestamp side key.
func IsTimestampKey(key string) bool {
	return strings.HasSuffix(key, timestampSuffix)
}

// KindOf extracts the entry kind from a key built with prefix, or "other".
func KindOf(prefix, key string) string {
	rest := strings.TrimPrefix(key, prefix+"_")
	if rest == key && prefix != "" {
		return "other"
	}
	for _, k := range kinds {
		if rest == k || strings.HasPrefix(rest, k+"_") {
			return k
		}
	}
	return "other"
}

package cache

import (
	"encoding/json"

	"github.com/Combine-Capital/imoto/pkg/errors"
	"github.com/go-playground/validator/v10"
)

// Entry is the unit of storage: a payload plus the metadata needed to decide
// whether it may still be served.
type Entry[T any] struct {
	Data T `json:"data"`

	// Timestamp is the write time in epoch milliseconds.
	Timestamp int64 `json:"timestamp"`

	// Version is the schema tag of the code that wrote the entry.
	Version string `json:"version"`

	// Compressed is reserved for packed payloads. Entries are always written
	// uncompressed, but the flag is carried through decode and encode.
	Compressed bool `json:"compressed"`
}

// envelope is the shape an entry must have before its payload is trusted.
type envelope struct {
	Data       json.RawMessage `json:"data" validate:"required"`
	Timestamp  *int64          `json:"timestamp" validate:"required,gt=0"`
	Version    *string         `json:"version" validate:"required"`
	Compressed *bool           `json:"compressed" validate:"required"`
}

var validate = validator.New()

// encode serializes an entry to the string stored in the KV store.
func encode[T any](e Entry[T]) (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", errors.NewPermanent("failed to encode cache entry", err)
	}
	return string(b), nil
}

// decode parses a stored string back into an entry. Malformed JSON, a
// missing field, or a payload that does not fit T yields a CorruptError.
func decode[T any](key, raw string) (Entry[T], error) {
	var entry Entry[T]

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return entry, errors.NewCorrupt(key, "malformed JSON", err)
	}
	if err := validate.Struct(env); err != nil {
		return entry, errors.NewCorrupt(key, "missing entry fields", err)
	}
	if err := json.Unmarshal(env.Data, &entry.Data); err != nil {
		return entry, errors.NewCorrupt(key, "payload does not match expected type", err)
	}

	entry.Timestamp = *env.Timestamp
	entry.Version = *env.Version
	entry.Compressed = *env.Compressed
	return entry, nil
}

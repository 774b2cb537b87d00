// Package errors provides the error categories used across the Imoto data layer.
// Callers branch on the category rather than on message text: the cache layer
// absorbs Capacity and Corrupt errors, read paths fall back to stale data on
// Temporary errors, and write paths surface everything else to the caller.
//
// Example usage:
//
//	if err := store.SetItem(key, value); err != nil {
//	    if errors.IsCapacity(err) {
//	        // evict and report the write as rejected
//	    }
//	}
//
//	if row == nil {
//	    return errors.NewNotFound("vehicle", id)
//	}
package errors

import (
	"fmt"
)

// PermanentError represents an error that won't succeed even if retried.
// Examples: a 409 from the backend, a request the backend refuses outright.
type PermanentError struct {
	msg   string
	cause error
}

// NewPermanent creates a new permanent error with the given message and optional cause.
func NewPermanent(msg string, cause error) error {
	return &PermanentError{msg: msg, cause: cause}
}

func (e *PermanentError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *PermanentError) Unwrap() error {
	return e.cause
}

// TemporaryError represents an error that might succeed if retried.
// Examples: network timeouts, 5xx responses, rate limiting.
type TemporaryError struct {
	msg   string
	cause error
}

// NewTemporary creates a new temporary error with the given message and optional cause.
func NewTemporary(msg string, cause error) error {
	return &TemporaryError{msg: msg, cause: cause}
}

func (e *TemporaryError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *TemporaryError) Unwrap() error {
	return e.cause
}

// NotFoundError represents an error when a requested resource doesn't exist.
type NotFoundError struct {
	resource string
	id       string
	cause    error
}

// NewNotFound creates a new not found error for the given resource and ID.
func NewNotFound(resource, id string) error {
	return &NotFoundError{resource: resource, id: id}
}

// NewNotFoundWithCause creates a new not found error with an underlying cause.
func NewNotFoundWithCause(resource, id string, cause error) error {
	return &NotFoundError{resource: resource, id: id, cause: cause}
}

func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s not found: %s (%v)", e.resource, e.id, e.cause)
	}
	return fmt.Sprintf("%s not found: %s", e.resource, e.id)
}

func (e *NotFoundError) Unwrap() error {
	return e.cause
}

// Resource returns the type of resource that wasn't found.
func (e *NotFoundError) Resource() string {
	return e.resource
}

// ID returns the identifier of the resource that wasn't found.
func (e *NotFoundError) ID() string {
	return e.id
}

// InvalidInputError represents an error due to invalid caller input.
type InvalidInputError struct {
	field string
	msg   string
	cause error
}

// NewInvalidInput creates a new invalid input error for the given field and message.
func NewInvalidInput(field, msg string) error {
	return &InvalidInputError{field: field, msg: msg}
}

// NewInvalidInputWithCause creates a new invalid input error with an underlying cause.
func NewInvalidInputWithCause(field, msg string, cause error) error {
	return &InvalidInputError{field: field, msg: msg, cause: cause}
}

func (e *InvalidInputError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("invalid input for %s: %s (%v)", e.field, e.msg, e.cause)
	}
	return fmt.Sprintf("invalid input for %s: %s", e.field, e.msg)
}

func (e *InvalidInputError) Unwrap() error {
	return e.cause
}

// Field returns the field name that had invalid input.
func (e *InvalidInputError) Field() string {
	return e.field
}

// Message returns the validation error message.
func (e *InvalidInputError) Message() string {
	return e.msg
}

// UnauthorizedError represents a rejected credential (expired session, bad API key).
type UnauthorizedError struct {
	msg   string
	cause error
}

// NewUnauthorized creates a new unauthorized error with the given message.
func NewUnauthorized(msg string) error {
	return &UnauthorizedError{msg: msg}
}

// NewUnauthorizedWithCause creates a new unauthorized error with an underlying cause.
func NewUnauthorizedWithCause(msg string, cause error) error {
	return &UnauthorizedError{msg: msg, cause: cause}
}

func (e *UnauthorizedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("unauthorized: %s (%v)", e.msg, e.cause)
	}
	return fmt.Sprintf("unauthorized: %s", e.msg)
}

func (e *UnauthorizedError) Unwrap() error {
	return e.cause
}

// CapacityError reports that a value does not fit: either a single entry is
// over the per-entry ceiling or the durable store has run out of quota.
type CapacityError struct {
	msg   string
	size  int
	limit int
	cause error
}

// NewCapacity creates a capacity error. size and limit are in bytes; pass 0
// when either is unknown.
func NewCapacity(msg string, size, limit int, cause error) error {
	return &CapacityError{msg: msg, size: size, limit: limit, cause: cause}
}

func (e *CapacityError) Error() string {
	s := e.msg
	if e.limit > 0 {
		s = fmt.Sprintf("%s (%d > %d bytes)", s, e.size, e.limit)
	}
	if e.cause != nil {
		s = fmt.Sprintf("%s: %v", s, e.cause)
	}
	return s
}

func (e *CapacityError) Unwrap() error {
	return e.cause
}

// Size returns the size in bytes of the rejected value.
func (e *CapacityError) Size() int {
	return e.size
}

// Limit returns the limit in bytes that was exceeded.
func (e *CapacityError) Limit() int {
	return e.limit
}

// CorruptError reports a stored value that cannot be decoded or carries a
// schema version the running code does not accept.
type CorruptError struct {
	key   string
	msg   string
	cause error
}

// NewCorrupt creates a corrupt-entry error for key.
func NewCorrupt(key, msg string, cause error) error {
	return &CorruptError{key: key, msg: msg, cause: cause}
}

func (e *CorruptError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("corrupt entry %s: %s: %v", e.key, e.msg, e.cause)
	}
	return fmt.Sprintf("corrupt entry %s: %s", e.key, e.msg)
}

func (e *CorruptError) Unwrap() error {
	return e.cause
}

// Key returns the storage key of the corrupt entry.
func (e *CorruptError) Key() string {
	return e.key
}

package errors

import (
	"fmt"
)

// Wrap adds context to err while keeping its category, so callers up the
// stack can still branch on IsTemporary, IsCapacity and friends.
// Uncategorized errors become PermanentError.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}

	switch {
	case IsTemporary(err):
		return NewTemporary(msg, err)
	case IsCapacity(err):
		var ce *CapacityError
		As(err, &ce)
		return NewCapacity(msg, ce.size, ce.limit, err)
	case IsCorrupt(err):
		var ce *CorruptError
		As(err, &ce)
		return NewCorrupt(ce.key, msg, err)
	case IsNotFound(err):
		var nfe *NotFoundError
		As(err, &nfe)
		return NewNotFoundWithCause(nfe.resource, nfe.id, err)
	case IsInvalidInput(err):
		var iie *InvalidInputError
		As(err, &iie)
		return NewInvalidInputWithCause(iie.field, msg, err)
	case IsUnauthorized(err):
		return NewUnauthorizedWithCause(msg, err)
	default:
		return NewPermanent(msg, err)
	}
}

// Wrapf wraps an error with a formatted message while preserving the original error type.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

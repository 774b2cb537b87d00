// Package health diagnoses the dependencies of an Imoto client: the durable
// store behind the cache and the remote backend. Checks run concurrently,
// each under its own timeout, and the report lists every component.
//
// Example usage:
//
//	h := health.New(health.WithTimeout(3 * time.Second))
//	h.Register("store", health.StoreChecker(store))
//	h.Register("remote", health.RemoteChecker(service, "vehicles"))
//
//	report := h.Check(ctx)
//	if !report.Healthy() {
//	    ...
//	}
package health

import (
	"context"
)

// Checker verifies one dependency. Check returns nil when the dependency is
// usable and must respect the deadline of ctx.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckerFunc is a function adapter that implements the Checker interface.
type CheckerFunc func(ctx context.Context) error

// Check implements the Checker interface by calling the function.
func (f CheckerFunc) Check(ctx context.Context) error {
	return f(ctx)
}

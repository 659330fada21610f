// Package testutil holds helpers shared by the package tests.
package testutil

import (
	"context"
	"testing"
	"time"
)

// Timeouts used by tests that wait on goroutines.
const (
	WaitShort  = 5 * time.Second
	WaitMedium = 10 * time.Second
)

// Context returns a context that is cancelled when the test ends or the
// timeout elapses, whichever comes first.
func Context(t testing.TB, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// RequireReceive waits for a value on c, failing the test if ctx expires first.
func RequireReceive[T any](ctx context.Context, t testing.TB, c <-chan T) T {
	t.Helper()
	select {
	case <-ctx.Done():
		t.Fatal("timeout waiting to receive value")
		var zero T
		return zero
	case v := <-c:
		return v
	}
}

// RequireNoReceive fails the test if a value arrives on c within d.
func RequireNoReceive[T any](t testing.TB, c <-chan T, d time.Duration) {
	t.Helper()
	select {
	case v := <-c:
		t.Fatalf("unexpected value received: %v", v)
	case <-time.After(d):
	}
}

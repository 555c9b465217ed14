// Package bridge holds the error taxonomy shared by the protocol
// front-ends. No error from one bridge ever propagates into another or
// aborts the scan loop; these types exist so callers can log and classify.
package bridge

import (
	"fmt"
	"time"
)

// DefaultTimeout bounds bridge startup, shutdown and cross-goroutine
// register access.
const DefaultTimeout = 5 * time.Second

// StartupError means a bridge's network endpoint failed to come up within
// its bound. Fatal to that bridge only.
type StartupError struct {
	Bridge string
	Err    error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("bridge %s: startup failed: %v", e.Bridge, e.Err)
}

func (e *StartupError) Unwrap() error { return e.Err }

// ShutdownError means a bridge's endpoint did not stop within its bound.
type ShutdownError struct {
	Bridge string
	Err    error
}

func (e *ShutdownError) Error() string {
	return fmt.Sprintf("bridge %s: shutdown failed: %v", e.Bridge, e.Err)
}

func (e *ShutdownError) Unwrap() error { return e.Err }

// TimeoutError means a cross-goroutine access exceeded its bound. The
// operation is skipped this cycle and retried on the next.
type TimeoutError struct {
	Bridge string
	Op     string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("bridge %s: %s timed out after %s", e.Bridge, e.Op, DefaultTimeout)
}

// DecodeError means an inbound payload could not be decoded for its tag.
// The write is dropped and the tag keeps its prior value.
type DecodeError struct {
	Bridge  string
	Source  string // topic or register address
	Payload string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("bridge %s: cannot decode %q from %s: %v", e.Bridge, e.Payload, e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrator

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoBackends is returned by New when no backends are configured.
var ErrNoBackends = errors.New("orchestrator: at least one backend is required")

// BackendTimeout reports a backend call that exceeded its timeout.
type BackendTimeout struct {
	ModelID string
	Timeout time.Duration
}

func (e *BackendTimeout) Error() string {
	return fmt.Sprintf("backend %s timed out after %v", e.ModelID, e.Timeout)
}

// BackendError reports a failed backend call (transport, status, or
// cancellation other than the per-call timeout).
type BackendError struct {
	ModelID string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s: %v", e.ModelID, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// ResponseParseError reports completion text that is not the expected JSON.
type ResponseParseError struct {
	ModelID string
	Raw     string
	Err     error
}

func (e *ResponseParseError) Error() string {
	return fmt.Sprintf("backend %s: unparseable response: %v", e.ModelID, e.Err)
}

func (e *ResponseParseError) Unwrap() error { return e.Err }

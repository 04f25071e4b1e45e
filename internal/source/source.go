// Package source provides the contact backends feeding the sync engine.
//
// Every backend yields source-agnostic raw payloads; normalization into typed
// contacts is the engine's job. Fetch failures are classified into the two
// policies the coordinator distinguishes: authentication failures (no
// automatic retry) and transient failures (retry on the next tick).
package source

import (
	"context"
	"fmt"

	"github.com/tartampluch/go-contactcal/internal/engine"
)

// ContactSource yields raw contact records from a remote address book.
type ContactSource interface {
	FetchContacts(ctx context.Context) ([]engine.RawContact, error)
}

// AuthError reports an invalid or expired credential. It is not retryable
// without user re-authentication; the coordinator keeps serving the
// last-known-good snapshot and surfaces a persistent error state.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}
	return "authentication failed: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

// TransientFetchError reports a network or quota failure. The coordinator
// retries on the next scheduled tick, without in-cycle backoff.
type TransientFetchError struct {
	Reason string
	Err    error
}

func (e *TransientFetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch failed: %s: %v", e.Reason, e.Err)
	}
	return "fetch failed: " + e.Reason
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

package clowddav

import (
	"errors"
	"fmt"
)

// Error taxonomy surfaced by the services. Callers match with errors.Is.
var (
	// ErrAuthenticationFailed is returned on HTTP 401.
	ErrAuthenticationFailed = errors.New("clowddav: authentication failed (HTTP 401)")

	// ErrForbidden is returned on HTTP 403.
	ErrForbidden = errors.New("clowddav: access forbidden (HTTP 403)")

	// ErrNotFound is returned on HTTP 404.
	ErrNotFound = errors.New("clowddav: resource not found (HTTP 404)")

	// ErrPreconditionFailed signals an etag conflict (HTTP 412). The caller
	// should refresh the item and retry; the service never retries silently.
	ErrPreconditionFailed = errors.New("clowddav: precondition failed (HTTP 412), refresh before retrying")

	// ErrNetwork covers DNS failures, refused connections and timeouts.
	// Check connectivity and the server URL.
	ErrNetwork = errors.New("clowddav: network error")

	// ErrParse is returned when a protocol document is structurally invalid.
	ErrParse = errors.New("clowddav: malformed protocol document")

	// ErrCodec is returned when an item cannot be represented in its wire
	// format.
	ErrCodec = errors.New("clowddav: malformed item format")

	// ErrProviderNotDetected means no registered provider matched the server
	// base URL. This is caller misuse, not a remote failure.
	ErrProviderNotDetected = errors.New("clowddav: unknown server, no provider detected")

	// ErrNotConfigured means credentials or provider are missing before an
	// operation was attempted. Caller misuse, not a remote failure.
	ErrNotConfigured = errors.New("clowddav: credentials or provider not configured")

	// ErrOffline means the mutation was recorded in the offline queue instead
	// of being sent, because connectivity is down.
	ErrOffline = errors.New("clowddav: offline, operation queued for replay")

	// ErrMissingETag means an update or delete targeted an existing item
	// without its last-known etag. Programming error, not a server condition.
	ErrMissingETag = errors.New("clowddav: mutation requires the item's last-known etag")
)

// ServerError is returned for 5xx responses and any other unexpected status.
type ServerError struct {
	StatusCode int
	Reason     string
}

func (e *ServerError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("clowddav: server error (HTTP %d)", e.StatusCode)
	}
	return fmt.Sprintf("clowddav: server error (HTTP %d %s)", e.StatusCode, e.Reason)
}

package davclient

import (
	"errors"
	"fmt"
	"strings"

	clowddav "github.com/ShiftyMcCool/clowd-dav-sub000"
	"github.com/ShiftyMcCool/clowd-dav-sub000/internal/httpclient"
)

// mapError folds transport-level failures into the public taxonomy, keeping
// the failing operation in the message so callers can build an actionable
// report.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}

	var httpErr *httpclient.HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.Code {
		case 401:
			return fmt.Errorf("%s: %w", op, clowddav.ErrAuthenticationFailed)
		case 403:
			return fmt.Errorf("%s: %w", op, clowddav.ErrForbidden)
		case 404:
			return fmt.Errorf("%s: %w", op, clowddav.ErrNotFound)
		case 412:
			return fmt.Errorf("%s: %w", op, clowddav.ErrPreconditionFailed)
		default:
			return fmt.Errorf("%s: %w", op, &clowddav.ServerError{
				StatusCode: httpErr.Code,
				Reason:     reasonPhrase(httpErr.Status),
			})
		}
	}

	var netErr *httpclient.NetworkError
	if errors.As(err, &netErr) {
		return fmt.Errorf("%s: %w: %v (check connectivity and the server URL)", op, clowddav.ErrNetwork, netErr.Err)
	}

	return fmt.Errorf("%s: %w", op, err)
}

// reasonPhrase strips the numeric code from an http status line, leaving
// just the phrase ("503 Service Unavailable" -> "Service Unavailable").
func reasonPhrase(status string) string {
	if i := strings.IndexByte(status, ' '); i >= 0 {
		return status[i+1:]
	}
	return status
}

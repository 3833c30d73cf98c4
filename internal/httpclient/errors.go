package httpclient

import "fmt"

// HTTPError is returned when the server answers with a status the calling
// operation does not accept. The service layer maps it onto the public
// error taxonomy.
type HTTPError struct {
	Code   int
	Status string
}

func (e *HTTPError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("unexpected status %d (%s)", e.Code, e.Status)
	}
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// NetworkError wraps transport-level failures: DNS, refused connections,
// timeouts. Both "no response" and explicit dial errors fold into it.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

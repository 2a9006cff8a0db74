package remote

import (
	"errors"
	"fmt"
)

// ErrTimeout is matched by every TimeoutError.
var ErrTimeout = errors.New("remote: request timed out")

// RemoteServiceError is returned when an upstream API answers with a non-2xx
// status.
type RemoteServiceError struct {
	Service    string
	Operation  string
	StatusCode int
	Body       string
}

func (e *RemoteServiceError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: upstream returned %d", e.Service, e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: upstream returned %d: %s", e.Service, e.Operation, e.StatusCode, e.Body)
}

// TimeoutError wraps a deadline or transport timeout on an outbound call.
type TimeoutError struct {
	Service   string
	Operation string
	Err       error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %s: request timed out: %v", e.Service, e.Operation, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// StatusCode returns the upstream status carried by err, or 0.
func StatusCode(err error) int {
	var rse *RemoteServiceError
	if errors.As(err, &rse) {
		return rse.StatusCode
	}
	return 0
}

// IsRemote reports whether err came from an upstream non-2xx response.
func IsRemote(err error) bool {
	var rse *RemoteServiceError
	return errors.As(err, &rse)
}

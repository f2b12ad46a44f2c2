package gateway

import (
	"errors"
	"fmt"
)

// ErrMethodNotFound indicates the backend does not expose the requested
// method. It triggers the fallback chain before ever reaching a caller.
var ErrMethodNotFound = errors.New("method not found")

// DomainError is a business-rule rejection from the backend. It carries
// the backend's text code and description so callers can decide whether
// the action is retryable with an override.
type DomainError struct {
	Code      string
	Desc      string
	EventCode int64
	Payload   any
}

func (e *DomainError) Error() string {
	if e.Desc == "" {
		return fmt.Sprintf("backend rejected call: %s", e.Code)
	}
	return fmt.Sprintf("backend rejected call: %s (%s)", e.Code, e.Desc)
}

// TransportError wraps a failure to reach or parse a backend reply.
type TransportError struct {
	Service string
	Method  string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("calling %s.%s: %v", e.Service, e.Method, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Text codes the backend uses when the specialized method variant is
// not available on this deployment. They are treated like method
// resolution failures for fallback purposes.
var unsupportedCodes = map[string]struct{}{
	"METHOD_NOT_FOUND":    {},
	"SERVICE_NOT_FOUND":   {},
	"UNSUPPORTED_REQUEST": {},
}

// isUnsupported reports whether err means the called method variant is
// missing on this backend version, as opposed to a genuine rejection.
func isUnsupported(err error) bool {
	if errors.Is(err, ErrMethodNotFound) {
		return true
	}
	var de *DomainError
	if errors.As(err, &de) {
		_, ok := unsupportedCodes[de.Code]
		return ok
	}
	return false
}

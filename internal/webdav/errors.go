package webdav

import (
	"errors"
	"fmt"
)

// ProtocolError is returned when the server answers with a status the
// operation does not tolerate.
type ProtocolError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("webdav %s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

// TransportError wraps failures below HTTP: DNS, connect, TLS, timeouts.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("webdav %s %s: %s", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsStatus reports whether err is a ProtocolError with the given status.
func IsStatus(err error, status int) bool {
	var pe *ProtocolError
	return errors.As(err, &pe) && pe.StatusCode == status
}

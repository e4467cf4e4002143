package device

import (
	"errors"
	"fmt"
)

// AuthenticationError means the device rejected the login.
type AuthenticationError struct {
	Target Target
	Err    error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authenticating to %s: %v", e.Target, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// TransportError covers socket, DNS and OS-level I/O failures, plus fatal
// replies after which the device closes the connection.
type TransportError struct {
	Target Target
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport to %s: %v", e.Target, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError is a trap sentence returned by the device mid-query.
type ProtocolError struct {
	Target  Target
	Path    string
	Message string
	Err     error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s on %s: %s", e.Path, e.Target, e.Message)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// IsSessionFault reports whether err originated in a device session and
// therefore invalidates it.
func IsSessionFault(err error) bool {
	var (
		authErr  *AuthenticationError
		transErr *TransportError
		protoErr *ProtocolError
	)

	return errors.As(err, &authErr) ||
		errors.As(err, &transErr) ||
		errors.As(err, &protoErr)
}

// FaultReason returns a short label for a session fault, used in logs and
// eviction metrics. Non-session errors return "other".
func FaultReason(err error) string {
	var (
		authErr  *AuthenticationError
		transErr *TransportError
		protoErr *ProtocolError
	)

	switch {
	case errors.As(err, &authErr):
		return "authentication"
	case errors.As(err, &transErr):
		return "transport"
	case errors.As(err, &protoErr):
		return "protocol"
	default:
		return "other"
	}
}

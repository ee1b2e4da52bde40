package remote

import "github.com/go-errors/errors"

var (
	// ErrTransport indicates the socket to the remote host could not be
	// opened or broke mid-session.
	ErrTransport = errors.New("transport error")
	// ErrAuthentication indicates the handshake or credential check was
	// rejected, including unusable key material.
	ErrAuthentication = errors.New("authentication error")
	// ErrNotConnected indicates an operation that needs a live shell ran
	// against a session in any other status.
	ErrNotConnected = errors.New("not connected")
)

// Class buckets connection failures for reporting. Every failure lands in
// exactly one class; anything not recognizably transport or authentication
// is generic.
type Class int

const (
	ClassGeneric Class = iota
	ClassTransport
	ClassAuthentication
)

func (c Class) String() string {
	switch c {
	case ClassTransport:
		return "transport"
	case ClassAuthentication:
		return "authentication"
	default:
		return "generic"
	}
}

// Classify maps an error to its failure class by unwrapping to the
// package sentinels.
func Classify(err error) Class {
	switch {
	case errors.Is(err, ErrTransport):
		return ClassTransport
	case errors.Is(err, ErrAuthentication):
		return ClassAuthentication
	default:
		return ClassGeneric
	}
}

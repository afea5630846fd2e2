package ipc

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAlreadyStarted    = errors.New("daemon already started")
	ErrNotRunning        = errors.New("daemon is not running")
	ErrDuplicateEndpoint = errors.New("endpoint already registered")
	ErrNilObject         = errors.New("exposed object is nil")
)

// Kind classifies daemon failures. A Kind is itself an error so callers can
// match with errors.Is(err, ipc.KindAddressInUse).
type Kind uint8

const (
	KindUnknown Kind = iota
	KindAddressInUse
	KindBindOrRegistration
	KindHandshake
	KindShutdownTimeout
	KindSerialization
	KindSettings
	KindInvalidState
)

var kindNames = [...]string{
	KindUnknown:            "unknown",
	KindAddressInUse:       "address in use",
	KindBindOrRegistration: "bind or registration failure",
	KindHandshake:          "handshake failure",
	KindShutdownTimeout:    "shutdown timeout",
	KindSerialization:      "serialization incompatible",
	KindSettings:           "settings unavailable",
	KindInvalidState:       "invalid state",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

func (k Kind) Error() string { return k.String() }

// Error is the structured failure returned by the daemon. Owner describes
// the process holding an occupied port, when it could be found.
type Error struct {
	Kind     Kind
	Op       string
	URI      string
	Port     int
	Attempts int
	Owner    string
	Cause    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("ipc: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(" ")
	}
	if e.URI != "" {
		b.WriteString(e.URI)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Kind == KindAddressInUse {
		fmt.Fprintf(&b, ": port %d already in use", e.Port)
		if e.Owner != "" {
			fmt.Fprintf(&b, " by %s", e.Owner)
		}
	}
	if e.Attempts > 1 {
		fmt.Fprintf(&b, " after %d attempts", e.Attempts)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches the error's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// KindOf returns the Kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

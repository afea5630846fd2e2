//go:build unix

package transport

import (
	"errors"

	"golang.org/x/sys/unix"
)

// IsAddrInUse reports whether err is a bind failure caused by an occupied
// address.
func IsAddrInUse(err error) bool {
	return errors.Is(err, unix.EADDRINUSE)
}

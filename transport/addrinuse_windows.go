//go:build windows

package transport

import (
	"errors"

	"golang.org/x/sys/windows"
)

// IsAddrInUse reports whether err is a bind failure caused by an occupied
// address (WSAEADDRINUSE, 10048).
func IsAddrInUse(err error) bool {
	return errors.Is(err, windows.WSAEADDRINUSE)
}

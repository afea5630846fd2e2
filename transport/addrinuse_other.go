//go:build !unix && !windows

package transport

import "strings"

func IsAddrInUse(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "address already in use")
}

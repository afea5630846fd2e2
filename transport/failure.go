package transport

import (
	"errors"
	"fmt"
	"net/rpc"
	"strings"
	"sync/atomic"
	"time"
)

var lastFailure atomic.Pointer[string]

// LastFailureDetail returns a multi-line description of the most recent
// transport failure seen by this process, or "" if none occurred.
func LastFailureDetail() string {
	if p := lastFailure.Load(); p != nil {
		return *p
	}
	return ""
}

func recordFailure(op, target string, err error) {
	if err == nil {
		return
	}
	detail := formatFailure(op, target, err, time.Now())
	lastFailure.Store(&detail)
}

func formatFailure(op, target string, err error, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %v\n", op, target, err)
	fmt.Fprintf(&b, "  at: %s\n", at.UTC().Format(time.RFC3339Nano))
	var remote rpc.ServerError
	if errors.As(err, &remote) {
		fmt.Fprintf(&b, "  remote: %s\n", string(remote))
	}
	for depth, cur := 0, err; cur != nil; depth, cur = depth+1, errors.Unwrap(cur) {
		fmt.Fprintf(&b, "  #%d %T: %v\n", depth, cur, cur)
	}
	return strings.TrimRight(b.String(), "\n")
}

package ipc

import (
	"context"
	"fmt"
	"time"

	gopsnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
)

// portOwnerTimeout bounds the connection table scan.
const portOwnerTimeout = 250 * time.Millisecond

// PortOwner identifies a process listening on a TCP port.
type PortOwner struct {
	Pid  int32
	Name string
}

func (o PortOwner) String() string {
	if o.Name == "" {
		return fmt.Sprintf("pid %d", o.Pid)
	}
	return fmt.Sprintf("pid %d (%s)", o.Pid, o.Name)
}

// LookupPortOwner finds the process listening on port. The second result is
// false when no owner could be determined, which includes lacking the
// privileges to inspect other users' sockets.
func LookupPortOwner(ctx context.Context, port int) (PortOwner, bool) {
	conns, err := gopsnet.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return PortOwner{}, false
	}
	for _, c := range conns {
		if c.Status != "LISTEN" || int(c.Laddr.Port) != port || c.Pid == 0 {
			continue
		}
		owner := PortOwner{Pid: c.Pid}
		if proc, err := process.NewProcessWithContext(ctx, c.Pid); err == nil {
			owner.Name, _ = proc.NameWithContext(ctx)
		}
		return owner, true
	}
	return PortOwner{}, false
}

func describePortOwner(port int) string {
	ctx, cancel := context.WithTimeout(context.Background(), portOwnerTimeout)
	defer cancel()
	if owner, ok := LookupPortOwner(ctx, port); ok {
		return owner.String()
	}
	return ""
}

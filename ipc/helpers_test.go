package ipc_test

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/robo-monk/ipcd/ipc"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func loopback(name string) ipc.EndpointConfig {
	return ipc.EndpointConfig{Name: name, Host: "127.0.0.1", Serializer: ipc.SerializerNative}
}

// Counter is a plain exposed object.
type Counter struct {
	mu sync.Mutex
	n  int
}

func (c *Counter) Increment(_ struct{}, reply *int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	*reply = c.n
	return nil
}

func (c *Counter) Value(_ struct{}, reply *int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	*reply = c.n
	return nil
}

// ClosingCounter records calls to Close and whether the listener had
// already exited at that point.
type ClosingCounter struct {
	Counter

	exited     <-chan struct{}
	closes     int
	afterExit  bool
	closeError error
}

func (c *ClosingCounter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	select {
	case <-c.exited:
		c.afterExit = true
	default:
	}
	return c.closeError
}

func (c *ClosingCounter) snapshot() (closes int, afterExit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes, c.afterExit
}

// PanickyCounter panics when closed.
type PanickyCounter struct{ Counter }

func (*PanickyCounter) Close() { panic("close exploded") }

// Gate blocks Wait calls until released.
type Gate struct {
	entered chan struct{}
	release chan struct{}
}

func newGate() *Gate {
	return &Gate{entered: make(chan struct{}, 4), release: make(chan struct{})}
}

func (g *Gate) Wait(_ struct{}, reply *int) error {
	g.entered <- struct{}{}
	<-g.release
	*reply = 1
	return nil
}

func newLifecycle(t *testing.T, obj any, cfg ipc.Config) *ipc.Lifecycle {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = quietLogger()
	}
	l, err := ipc.NewLifecycle(obj, cfg)
	require.NoError(t, err)
	t.Cleanup(l.Stop)
	return l
}

func waitClosed(t *testing.T, ch <-chan struct{}, within time.Duration) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(within):
		t.Fatalf("channel not closed within %s", within)
	}
}

// occupy binds a loopback port and keeps it until the test ends.
func occupy(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().(*net.TCPAddr).Port
}

var errCloseFailed = errors.New("close failed")

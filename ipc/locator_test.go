package ipc_test

import (
	"net"
	"testing"
	"time"

	"github.com/robo-monk/ipcd/ipc"
	"github.com/robo-monk/ipcd/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocatorResolveEndpoint(t *testing.T) {
	t.Parallel()
	locator := ipc.NewLocator(ipc.LocatorConfig{Logger: quietLogger()})
	assert.Equal(t, ipc.DefaultEndpoint(), locator.Endpoint())
	assert.Equal(t, ipc.DefaultEndpoint(), locator.ResolveEndpoint(nil, nil))

	override := ipc.EndpointConfig{Name: "other", Port: 1234}
	got := locator.ResolveEndpoint(&override, nil)
	assert.Equal(t, "other", got.Name)
	assert.Equal(t, ipc.DefaultHost, got.Host)
	assert.Equal(t, 1234, got.Port)

	src := mapSource(map[string]string{"data_name": "stored", "host": "127.0.0.1", "port": "9400"})
	got = locator.ResolveEndpoint(&override, src)
	assert.Equal(t, "stored", got.Name)
	assert.Equal(t, 9400, got.Port)
}

func TestProbeUnavailable(t *testing.T) {
	t.Parallel()
	locator := ipc.NewLocator(ipc.LocatorConfig{Logger: quietLogger()})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	ep := loopback("nobody")
	ep.Port = port
	assert.False(t, locator.ProbeAvailability(ep, 200*time.Millisecond))
}

func TestLocatorPortZeroIsNotDialable(t *testing.T) {
	t.Parallel()
	l := newLifecycle(t, &Counter{}, ipc.Config{Endpoint: loopback("ephemeral")})
	require.NoError(t, l.Start())
	require.NotZero(t, l.Endpoint().Port)

	locator := ipc.NewLocator(ipc.LocatorConfig{Endpoint: loopback("ephemeral"), Logger: quietLogger()})
	assert.Zero(t, locator.Endpoint().Port)
	assert.False(t, locator.ProbeAvailability(locator.Endpoint(), 200*time.Millisecond))
	assert.True(t, locator.ProbeAvailability(l.Endpoint(), time.Second))

	handle := locator.RemoteHandle(ipc.EndpointConfig{Name: "ephemeral"})
	defer handle.Close()
	var n int
	assert.ErrorIs(t, handle.Call("Increment", struct{}{}, &n), transport.ErrUnboundPort)
}

func TestProbeWrongName(t *testing.T) {
	t.Parallel()
	l := newLifecycle(t, &Counter{}, ipc.Config{Endpoint: loopback("registered")})
	require.NoError(t, l.Start())

	locator := ipc.NewLocator(ipc.LocatorConfig{Logger: quietLogger()})
	ep := l.Endpoint()
	assert.True(t, locator.ProbeAvailability(ep, time.Second))
	ep.Name = "unregistered"
	assert.False(t, locator.ProbeAvailability(ep, time.Second))
}

func TestProbeSilentListener(t *testing.T) {
	t.Parallel()
	// Accepts connections but never answers.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		var held []net.Conn
		for {
			conn, err := ln.Accept()
			if err != nil {
				for _, c := range held {
					c.Close()
				}
				return
			}
			held = append(held, conn)
		}
	}()

	ep := loopback("silent")
	ep.Port = ln.Addr().(*net.TCPAddr).Port
	locator := ipc.NewLocator(ipc.LocatorConfig{Logger: quietLogger()})

	began := time.Now()
	assert.False(t, locator.ProbeAvailability(ep, 100*time.Millisecond))
	assert.Less(t, time.Since(began), time.Second)
}

// TestLocatorLastFailureDetail is serial since the detail is process-wide.
func TestLocatorLastFailureDetail(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	ep := loopback("gone")
	ep.Port = port
	locator := ipc.NewLocator(ipc.LocatorConfig{Logger: quietLogger()})
	require.False(t, locator.ProbeAvailability(ep, 200*time.Millisecond))
	assert.Contains(t, locator.LastFailureDetail(), ep.URI().String())
}

package transport_test

import (
	"errors"
	"net"
	"testing"

	"github.com/robo-monk/ipcd/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type plainRecord struct {
	Name  string
	Count int
	Tags  []string
	Attrs map[string]string
}

type withChannel struct {
	Name   string
	Events chan int
}

type withConn struct {
	Peer net.Conn
}

type nested struct {
	Inner *withChannel
}

var allModes = []transport.Mode{
	transport.ModeNative,
	transport.ModeText,
	transport.ModeJSON,
	transport.ModeLegacy,
}

func TestCanEncodePlainValues(t *testing.T) {
	t.Parallel()
	values := []any{
		42,
		"hello",
		[]int{1, 2, 3},
		map[string]int{"a": 1},
		plainRecord{Name: "x", Count: 1, Tags: []string{"a"}, Attrs: map[string]string{"k": "v"}},
		&plainRecord{Name: "y"},
	}
	for _, mode := range allModes {
		for _, v := range values {
			assert.NoError(t, transport.CanEncode(mode, v), "%s %T", mode, v)
		}
	}
}

func TestCanEncodeRejectsLiveConnection(t *testing.T) {
	t.Parallel()
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	for _, mode := range allModes {
		err := transport.CanEncode(mode, a)
		require.Error(t, err, mode)
		var encErr *transport.EncodeError
		require.True(t, errors.As(err, &encErr))
		assert.Equal(t, mode, encErr.Mode)

		assert.Error(t, transport.CanEncode(mode, withConn{Peer: a}), mode)
	}
}

func TestCanEncodeRejectsChannelsAndFuncs(t *testing.T) {
	t.Parallel()
	for _, mode := range allModes {
		err := transport.CanEncode(mode, withChannel{Name: "x", Events: make(chan int)})
		require.Error(t, err)
		var encErr *transport.EncodeError
		require.True(t, errors.As(err, &encErr))
		assert.Equal(t, "Events", encErr.Path)

		err = transport.CanEncode(mode, nested{Inner: &withChannel{}})
		require.Error(t, err)
		require.True(t, errors.As(err, &encErr))
		assert.Equal(t, "Inner.Events", encErr.Path)

		assert.Error(t, transport.CanEncode(mode, func() {}))
		assert.Error(t, transport.CanEncode(mode, []any{1, make(chan int)}))
	}
}

func TestCanEncodeNilAndUnknownMode(t *testing.T) {
	t.Parallel()
	assert.Error(t, transport.CanEncode(transport.ModeNative, nil))
	assert.Error(t, transport.CanEncode(transport.Mode("xml"), 1))
}

type node struct {
	Value int
	Next  *node
}

type leaf struct {
	Name string
}

type pair struct {
	A, B *leaf
}

func TestCanEncodeRejectsCycles(t *testing.T) {
	t.Parallel()
	n := &node{Value: 1}
	n.Next = n

	ring := &node{Value: 1, Next: &node{Value: 2}}
	ring.Next.Next = ring

	m := map[string]any{"k": 1}
	m["self"] = m

	s := make([]any, 1)
	s[0] = s

	cycles := map[string]any{
		"self pointer":  n,
		"two node ring": ring,
		"map":           m,
		"slice":         s,
	}
	for _, mode := range allModes {
		for name, v := range cycles {
			var err error
			assert.NotPanics(t, func() { err = transport.CanEncode(mode, v) }, "%s %s", mode, name)
			require.Error(t, err, "%s %s", mode, name)
			var encErr *transport.EncodeError
			require.True(t, errors.As(err, &encErr), "%s %s", mode, name)
			assert.Equal(t, "cyclic value", encErr.Reason, "%s %s", mode, name)
		}
	}
}

func TestCanEncodeSharedPointer(t *testing.T) {
	t.Parallel()
	l := &leaf{Name: "shared"}
	for _, mode := range allModes {
		assert.NoError(t, transport.CanEncode(mode, pair{A: l, B: l}), mode)
		assert.NoError(t, transport.CanEncode(mode, []*leaf{l, l, l}), mode)
	}
}

func TestCanEncodeSharedPointerStillChecked(t *testing.T) {
	t.Parallel()
	ch := &withChannel{Events: make(chan int)}
	for _, mode := range allModes {
		assert.Error(t, transport.CanEncode(mode, []*withChannel{ch, ch}), mode)
	}
}

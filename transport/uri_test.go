package transport_test

import (
	"testing"

	"github.com/robo-monk/ipcd/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURIString(t *testing.T) {
	t.Parallel()
	u := transport.URI{Name: "kodi-IPC", Host: "localhost", Port: 9099}
	assert.Equal(t, "ipc://kodi-IPC@localhost:9099", u.String())
	assert.Equal(t, "localhost:9099", u.Address())
}

func TestParseURIRoundTrip(t *testing.T) {
	t.Parallel()
	for _, u := range []transport.URI{
		{Name: "kodi-IPC", Host: "localhost", Port: 9099},
		{Name: "counter", Host: "127.0.0.1", Port: 1},
		{Name: "v6", Host: "::1", Port: 65535},
	} {
		parsed, err := transport.ParseURI(u.String())
		require.NoError(t, err, u.String())
		assert.Equal(t, u, parsed)
	}
}

func TestParseURIRejectsMalformed(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{
		"http://kodi-IPC@localhost:9099",
		"ipc://localhost:9099",
		"ipc://kodi-IPC@localhost",
		"ipc://kodi-IPC@localhost:port",
		"ipc://kodi-IPC@localhost:70000",
	} {
		_, err := transport.ParseURI(raw)
		assert.Error(t, err, raw)
	}
}

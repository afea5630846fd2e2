package ipc

import "log/slog"

// Canonical log keys.
const (
	KeyComponent = "component"
	KeyInstance  = "instance"
	KeyURI       = "uri"
	KeyState     = "state"
	KeyAttempt   = "attempt"
	KeyPort      = "port"
	KeyError     = "error"
)

func logInstance(id string) slog.Attr { return slog.String(KeyInstance, id) }
func logURI(uri string) slog.Attr     { return slog.String(KeyURI, uri) }
func logState(s State) slog.Attr      { return slog.String(KeyState, s.String()) }
func logAttempt(n int) slog.Attr      { return slog.Int(KeyAttempt, n) }
func logPort(p int) slog.Attr         { return slog.Int(KeyPort, p) }
func logError(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

package transport

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Scheme is the URI scheme used for registered objects.
const Scheme = "ipc"

// URI addresses one registered object on one daemon.
type URI struct {
	Name string
	Host string
	Port int
}

// Address returns the dialable host:port pair.
func (u URI) Address() string {
	return net.JoinHostPort(u.Host, strconv.Itoa(u.Port))
}

func (u URI) String() string {
	return fmt.Sprintf("%s://%s@%s", Scheme, u.Name, u.Address())
}

// ParseURI parses the textual form produced by URI.String.
func ParseURI(raw string) (URI, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return URI{}, fmt.Errorf("parse uri %q: %w", raw, err)
	}
	if parsed.Scheme != Scheme {
		return URI{}, fmt.Errorf("parse uri %q: unsupported scheme %q", raw, parsed.Scheme)
	}
	if parsed.User == nil || parsed.User.Username() == "" {
		return URI{}, fmt.Errorf("parse uri %q: missing object name", raw)
	}
	host, portText, err := net.SplitHostPort(parsed.Host)
	if err != nil {
		return URI{}, fmt.Errorf("parse uri %q: %w", raw, err)
	}
	port, err := strconv.Atoi(portText)
	if err != nil || port < 0 || port > 65535 {
		return URI{}, fmt.Errorf("parse uri %q: invalid port %q", raw, portText)
	}
	return URI{Name: parsed.User.Username(), Host: host, Port: port}, nil
}

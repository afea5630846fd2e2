package transport

import (
	"fmt"
	"strings"
)

// Mode selects the wire encoding shared by server and client.
type Mode string

const (
	ModeNative Mode = "native"
	ModeText   Mode = "text"
	ModeJSON   Mode = "json"
	ModeLegacy Mode = "legacy"
)

// modeAliases maps the names stored by older settings files onto modes.
var modeAliases = map[string]Mode{
	"native":  ModeNative,
	"gob":     ModeNative,
	"pickle":  ModeNative,
	"text":    ModeText,
	"yaml":    ModeText,
	"serpent": ModeText,
	"json":    ModeJSON,
	"legacy":  ModeLegacy,
	"marshal": ModeLegacy,
}

// ParseMode resolves a mode name or one of its aliases. An empty name is
// the native mode.
func ParseMode(name string) (Mode, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return ModeNative, nil
	}
	if m, ok := modeAliases[key]; ok {
		return m, nil
	}
	return "", fmt.Errorf("unknown serialization mode %q", name)
}

// Valid reports whether m is one of the canonical modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeNative, ModeText, ModeJSON, ModeLegacy:
		return true
	}
	return false
}

func (m Mode) String() string { return string(m) }

package ipc

import (
	"fmt"
	"strings"

	"github.com/robo-monk/ipcd/transport"
)

// SerializationMode selects the encoding used on the wire.
type SerializationMode = transport.Mode

const (
	// SerializerNative is a gob stream carrying any gob-encodable value.
	SerializerNative = transport.ModeNative
	// SerializerText is the text-safe YAML encoding.
	SerializerText = transport.ModeText
	SerializerJSON = transport.ModeJSON
	// SerializerLegacy frames each message as a self-contained gob.
	SerializerLegacy = transport.ModeLegacy
)

const (
	DefaultName = "kodi-IPC"
	DefaultHost = "localhost"
	DefaultPort = 9099
)

// ParseSerializationMode accepts canonical names and the aliases
// pickle, serpent, json and marshal.
func ParseSerializationMode(name string) (SerializationMode, error) {
	return transport.ParseMode(name)
}

// EndpointConfig names one daemon endpoint. Port 0 asks the daemon to bind
// any free port; Lifecycle.Endpoint reports the one chosen. Clients cannot
// dial port 0 and fail with transport.ErrUnboundPort, so a client must use
// the endpoint reported by Lifecycle.Endpoint.
type EndpointConfig struct {
	Name       string            `yaml:"data_name" json:"data_name"`
	Host       string            `yaml:"host" json:"host"`
	Port       int               `yaml:"port" json:"port"`
	Serializer SerializationMode `yaml:"serializer" json:"serializer"`
}

// DefaultEndpoint returns kodi-IPC@localhost:9099 using the native mode.
func DefaultEndpoint() EndpointConfig {
	return EndpointConfig{
		Name:       DefaultName,
		Host:       DefaultHost,
		Port:       DefaultPort,
		Serializer: SerializerNative,
	}
}

// withDefaults fills empty fields. A zero EndpointConfig becomes
// DefaultEndpoint; otherwise the port is kept as given.
func (e EndpointConfig) withDefaults() EndpointConfig {
	if e == (EndpointConfig{}) {
		return DefaultEndpoint()
	}
	if e.Name == "" {
		e.Name = DefaultName
	}
	if e.Host == "" {
		e.Host = DefaultHost
	}
	if e.Serializer == "" {
		e.Serializer = SerializerNative
	}
	return e
}

// Validate checks the endpoint can be bound and addressed.
func (e EndpointConfig) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("endpoint name is required")
	}
	if strings.ContainsAny(e.Name, " \t\r\n@/") {
		return fmt.Errorf("endpoint name %q contains reserved characters", e.Name)
	}
	if e.Host == "" {
		return fmt.Errorf("endpoint host is required")
	}
	if e.Port < 0 || e.Port > 65535 {
		return fmt.Errorf("endpoint port %d out of range", e.Port)
	}
	if !e.Serializer.Valid() {
		return fmt.Errorf("endpoint serializer %q is not supported", e.Serializer)
	}
	return nil
}

// URI returns the address of the object registered at this endpoint.
func (e EndpointConfig) URI() transport.URI {
	return transport.URI{Name: e.Name, Host: e.Host, Port: e.Port}
}

func (e EndpointConfig) String() string {
	return fmt.Sprintf("%s (%s)", e.URI(), e.Serializer)
}

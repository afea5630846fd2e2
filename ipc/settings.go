package ipc

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Keys looked up in a settings source.
const (
	SettingDataName = "data_name"
	SettingHost     = "host"
	SettingPort     = "port"
)

var ErrSettingNotFound = errors.New("setting not found")

// SettingsSource is an external store of endpoint settings, such as a host
// application's per-addon configuration.
type SettingsSource interface {
	Setting(key string) (string, error)
}

// SettingsFunc adapts a function to SettingsSource.
type SettingsFunc func(key string) (string, error)

func (f SettingsFunc) Setting(key string) (string, error) { return f(key) }

// DotEnvSettings reads keys from a dotenv file. Relative paths that do not
// exist in the working directory are resolved next to the executable.
type DotEnvSettings struct {
	Path string
}

func (s DotEnvSettings) Setting(key string) (string, error) {
	env, err := ReadDotEnvFile(resolvePath(s.Path))
	if err != nil {
		return "", err
	}
	v, ok := env[key]
	if !ok {
		return "", fmt.Errorf("%s: %w", key, ErrSettingNotFound)
	}
	return v, nil
}

// YAMLSettings reads keys from the section named ID of a YAML file:
//
//	service.ipc:
//	  data_name: kodi-IPC
//	  host: localhost
//	  port: 9099
type YAMLSettings struct {
	Path string
	ID   string
}

func (s YAMLSettings) Setting(key string) (string, error) {
	data, err := os.ReadFile(resolvePath(s.Path))
	if err != nil {
		return "", err
	}
	var doc map[string]map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("parse %s: %w", s.Path, err)
	}
	section, ok := doc[s.ID]
	if !ok {
		return "", fmt.Errorf("section %q: %w", s.ID, ErrSettingNotFound)
	}
	v, ok := section[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%s.%s: %w", s.ID, key, ErrSettingNotFound)
	}
	return fmt.Sprint(v), nil
}

// EnvSettings reads Prefix+KEY from the process environment, e.g.
// IPCD_DATA_NAME for Prefix "IPCD_".
type EnvSettings struct {
	Prefix string
}

func (s EnvSettings) Setting(key string) (string, error) {
	name := s.Prefix + strings.ToUpper(key)
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("%s: %w", name, ErrSettingNotFound)
	}
	return v, nil
}

// ResolveEndpoint applies name, host and port from src over explicit. The
// stored values are taken together or not at all: any failure reading src,
// a missing or empty key, a malformed port or even a panic inside src leaves
// explicit untouched. A nil src returns explicit.
func ResolveEndpoint(explicit EndpointConfig, src SettingsSource) EndpointConfig {
	resolved, err := endpointFromSettings(explicit, src)
	if err != nil {
		return explicit
	}
	return resolved
}

func endpointFromSettings(explicit EndpointConfig, src SettingsSource) (ep EndpointConfig, err error) {
	if src == nil {
		return explicit, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = &Error{Kind: KindSettings, Op: "read settings", Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	lookup := func(key string) (string, error) {
		v, err := src.Setting(key)
		if err != nil {
			return "", err
		}
		v = strings.TrimSpace(v)
		if v == "" {
			return "", fmt.Errorf("%s: %w", key, ErrSettingNotFound)
		}
		return v, nil
	}

	name, err := lookup(SettingDataName)
	if err != nil {
		return explicit, &Error{Kind: KindSettings, Op: "read settings", Cause: err}
	}
	host, err := lookup(SettingHost)
	if err != nil {
		return explicit, &Error{Kind: KindSettings, Op: "read settings", Cause: err}
	}
	portText, err := lookup(SettingPort)
	if err != nil {
		return explicit, &Error{Kind: KindSettings, Op: "read settings", Cause: err}
	}
	port, err := strconv.Atoi(portText)
	if err != nil || port < 0 || port > 65535 {
		return explicit, &Error{Kind: KindSettings, Op: "read settings", Cause: fmt.Errorf("malformed port %q", portText)}
	}

	ep = explicit
	ep.Name, ep.Host, ep.Port = name, host, port
	return ep, nil
}

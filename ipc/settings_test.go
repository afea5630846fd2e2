package ipc_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/robo-monk/ipcd/ipc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func explicitEndpoint() ipc.EndpointConfig {
	return ipc.EndpointConfig{Name: "explicit", Host: "127.0.0.1", Port: 4000, Serializer: ipc.SerializerJSON}
}

func mapSource(values map[string]string) ipc.SettingsSource {
	return ipc.SettingsFunc(func(key string) (string, error) {
		v, ok := values[key]
		if !ok {
			return "", ipc.ErrSettingNotFound
		}
		return v, nil
	})
}

func TestResolveEndpointAppliesSettings(t *testing.T) {
	t.Parallel()
	got := ipc.ResolveEndpoint(explicitEndpoint(), mapSource(map[string]string{
		"data_name": "stored",
		"host":      "10.0.0.2",
		"port":      " 5000 ",
	}))
	assert.Equal(t, ipc.EndpointConfig{Name: "stored", Host: "10.0.0.2", Port: 5000, Serializer: ipc.SerializerJSON}, got)
}

func TestResolveEndpointFallsBack(t *testing.T) {
	t.Parallel()
	throwing := ipc.SettingsFunc(func(string) (string, error) {
		return "", errors.New("settings service unavailable")
	})
	panicking := ipc.SettingsFunc(func(string) (string, error) {
		panic("host application is shutting down")
	})
	cases := map[string]ipc.SettingsSource{
		"nil source":       nil,
		"throwing source":  throwing,
		"panicking source": panicking,
		"missing port":     mapSource(map[string]string{"data_name": "stored", "host": "10.0.0.2"}),
		"empty host":       mapSource(map[string]string{"data_name": "stored", "host": "", "port": "5000"}),
		"bad port":         mapSource(map[string]string{"data_name": "stored", "host": "10.0.0.2", "port": "ninety"}),
		"port range":       mapSource(map[string]string{"data_name": "stored", "host": "10.0.0.2", "port": "70000"}),
	}
	for name, src := range cases {
		assert.NotPanics(t, func() {
			assert.Equal(t, explicitEndpoint(), ipc.ResolveEndpoint(explicitEndpoint(), src), name)
		}, name)
	}
}

func TestDotEnvSettings(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "ipc.env")
	require.NoError(t, os.WriteFile(path, []byte("data_name=dotenv-IPC\nhost=127.0.0.1\nport=9100\n"), 0o644))

	got := ipc.ResolveEndpoint(explicitEndpoint(), ipc.DotEnvSettings{Path: path})
	assert.Equal(t, "dotenv-IPC", got.Name)
	assert.Equal(t, 9100, got.Port)

	_, err := ipc.DotEnvSettings{Path: path}.Setting("missing")
	assert.ErrorIs(t, err, ipc.ErrSettingNotFound)

	missing := ipc.DotEnvSettings{Path: filepath.Join(t.TempDir(), "absent.env")}
	assert.Equal(t, explicitEndpoint(), ipc.ResolveEndpoint(explicitEndpoint(), missing))
}

func TestYAMLSettings(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	doc := `
service.ipc:
  data_name: yaml-IPC
  host: 127.0.0.1
  port: 9200
other.addon:
  data_name: other
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	got := ipc.ResolveEndpoint(explicitEndpoint(), ipc.YAMLSettings{Path: path, ID: "service.ipc"})
	assert.Equal(t, "yaml-IPC", got.Name)
	assert.Equal(t, "127.0.0.1", got.Host)
	assert.Equal(t, 9200, got.Port)

	partial := ipc.YAMLSettings{Path: path, ID: "other.addon"}
	assert.Equal(t, explicitEndpoint(), ipc.ResolveEndpoint(explicitEndpoint(), partial))

	_, err := ipc.YAMLSettings{Path: path, ID: "unknown"}.Setting("host")
	assert.ErrorIs(t, err, ipc.ErrSettingNotFound)
}

func TestYAMLSettingsMalformed(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("service.ipc: [unterminated"), 0o644))

	src := ipc.YAMLSettings{Path: path, ID: "service.ipc"}
	_, err := src.Setting("host")
	assert.Error(t, err)
	assert.Equal(t, explicitEndpoint(), ipc.ResolveEndpoint(explicitEndpoint(), src))
}

func TestEnvSettings(t *testing.T) {
	t.Setenv("IPCD_TEST_DATA_NAME", "env-IPC")
	t.Setenv("IPCD_TEST_HOST", "127.0.0.1")
	t.Setenv("IPCD_TEST_PORT", "9300")

	got := ipc.ResolveEndpoint(explicitEndpoint(), ipc.EnvSettings{Prefix: "IPCD_TEST_"})
	assert.Equal(t, "env-IPC", got.Name)
	assert.Equal(t, 9300, got.Port)

	assert.Equal(t, explicitEndpoint(), ipc.ResolveEndpoint(explicitEndpoint(), ipc.EnvSettings{Prefix: "IPCD_ABSENT_"}))
}

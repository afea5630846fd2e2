package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/robo-monk/ipcd/ipc"
)

// CLI holds the global flags shared by every command.
type CLI struct {
	Verbose    bool   `short:"v" help:"Enable verbose logging"`
	Name       string `help:"Name of the exposed object" default:"kodi-IPC" env:"IPCD_NAME"`
	Host       string `help:"Host the daemon binds or is reached at" default:"localhost" env:"IPCD_HOST"`
	Port       int    `short:"p" help:"Daemon port, 0 for any free port" default:"9099" env:"IPCD_PORT"`
	Serializer string `short:"s" help:"Serialization mode (native, text, json, legacy or an alias)" default:"native" env:"IPCD_SERIALIZER"`
	Settings   string `help:"Settings file (.env or .yaml) supplying data_name, host and port" type:"path" env:"IPCD_SETTINGS"`
	SettingsID string `name:"settings-id" help:"Section of a YAML settings file" default:"service.ipc"`

	Serve  ServeCmd  `cmd:"" help:"Expose a counter object until interrupted"`
	Probe  ProbeCmd  `cmd:"" help:"Check whether a daemon is reachable"`
	Call   CallCmd   `cmd:"" help:"Invoke a method on the remote counter"`
	Status StatusCmd `cmd:"" help:"Show the state published by a serving daemon"`
}

// AfterApply runs after flag parsing; setup logging once.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

func (c *CLI) endpoint() (ipc.EndpointConfig, error) {
	mode, err := ipc.ParseSerializationMode(c.Serializer)
	if err != nil {
		return ipc.EndpointConfig{}, err
	}
	return ipc.EndpointConfig{Name: c.Name, Host: c.Host, Port: c.Port, Serializer: mode}, nil
}

func (c *CLI) settings() ipc.SettingsSource {
	if c.Settings == "" {
		return nil
	}
	switch strings.ToLower(filepath.Ext(c.Settings)) {
	case ".yaml", ".yml":
		return ipc.YAMLSettings{Path: c.Settings, ID: c.SettingsID}
	default:
		return ipc.DotEnvSettings{Path: c.Settings}
	}
}

func (c *CLI) locator() (*ipc.Locator, error) {
	ep, err := c.endpoint()
	if err != nil {
		return nil, err
	}
	return ipc.NewLocator(ipc.LocatorConfig{Endpoint: ep, Settings: c.settings()}), nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("ipcd"),
		kong.Description("Expose and reach an in-process object over local RPC."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli))
}

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

var errUnavailable = errors.New("daemon unavailable")

type ProbeCmd struct {
	Timeout time.Duration `help:"Connect and handshake timeout" default:"2s"`
}

func (p *ProbeCmd) Run(cli *CLI) error {
	locator, err := cli.locator()
	if err != nil {
		return err
	}
	ep := locator.Endpoint()
	if locator.ProbeAvailability(ep, p.Timeout) {
		fmt.Printf("%s available\n", ep.URI())
		return nil
	}
	fmt.Printf("%s unavailable\n", ep.URI())
	if detail := locator.LastFailureDetail(); detail != "" {
		slog.Debug("Last transport failure\n" + strings.TrimSpace(detail))
	}
	return errUnavailable
}

type CallCmd struct {
	Method string `arg:"" enum:"increment,value" help:"Method to call (increment or value)"`
}

func (c *CallCmd) Run(cli *CLI) error {
	locator, err := cli.locator()
	if err != nil {
		return err
	}
	proxy := locator.RemoteHandle(locator.Endpoint())
	defer proxy.Close()

	method := strings.ToUpper(c.Method[:1]) + c.Method[1:]
	var n int
	if err := proxy.Call(method, struct{}{}, &n); err != nil {
		slog.Debug("Call failed", "detail", locator.LastFailureDetail())
		return fmt.Errorf("%s: %w", method, err)
	}
	fmt.Println(n)
	return nil
}

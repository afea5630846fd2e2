package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aquasecurity/table"

	"github.com/robo-monk/ipcd/ipc"
)

type StatusCmd struct {
	Timeout time.Duration `help:"Probe timeout" default:"1s"`
}

func (s *StatusCmd) Run(cli *CLI) error {
	locator, err := cli.locator()
	if err != nil {
		return err
	}
	ep := locator.Endpoint()

	state, pid, uptime := "Stopped", "-", "-"
	if rec, err := ipc.ReadRecord(ipc.RecordPath(ep.Name)); err == nil {
		if up, err := rec.Uptime(); err == nil {
			state = "Running"
			pid = strconv.Itoa(int(rec.Pid))
			uptime = up.Truncate(time.Second).String()
			if rec.Port != 0 {
				ep.Port = int(rec.Port)
			}
		} else if rec.State == ipc.StateFailed {
			state = "Failed"
		}
	}

	available := "no"
	if locator.ProbeAvailability(ep, s.Timeout) {
		available = "yes"
	}

	t := table.New(os.Stdout)
	t.SetHeaders("Name", "Status", "PID", "URI", "Uptime", "Available")
	t.AddRow(ep.Name, state, pid, ep.URI().String(), uptime, available)
	t.Render()

	if available == "no" && state == "Running" {
		return fmt.Errorf("%s: process %s is running but not answering", ep.Name, pid)
	}
	return nil
}

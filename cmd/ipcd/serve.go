package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robo-monk/ipcd/ipc"
)

type ServeCmd struct {
	MetricsAddr    string        `name:"metrics-addr" help:"Serve Prometheus metrics on this address"`
	MaxConnections int           `help:"Concurrent connection limit" default:"64"`
	BindRetries    int           `help:"Bind attempts while the port is in use" default:"5"`
	JoinTimeout    time.Duration `help:"How long stop waits for the listener to exit" default:"2s"`
}

func (s *ServeCmd) Run(cli *CLI) error {
	ep, err := cli.endpoint()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	l, err := ipc.NewLifecycle(&Counter{}, ipc.Config{
		Endpoint:       ep,
		Settings:       cli.settings(),
		BindRetries:    s.BindRetries,
		JoinTimeout:    s.JoinTimeout,
		MaxConnections: s.MaxConnections,
		Logger:         slog.Default(),
		Recorder:       ipc.NewPrometheusRecorder(reg),
	})
	if err != nil {
		return err
	}

	manager := ipc.NewManager(slog.Default())
	if err := manager.Register(l); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if s.MetricsAddr != "" {
		metrics := &http.Server{
			Addr:              s.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = metrics.Shutdown(shutdownCtx)
		}()
	}

	if err := manager.Start(); err != nil {
		publish(l)
		return err
	}
	publish(l)
	slog.Info("Serving", "uri", l.URI().String(), "instance", l.ID())

	select {
	case <-ctx.Done():
	case <-l.Done():
		slog.Error("Listener exited unexpectedly", "error", l.Err())
	}

	manager.Stop()
	publish(l)
	for _, st := range manager.List() {
		slog.Info("Daemon finished", "name", st.Name, "state", st.State.String())
	}
	if err := l.Err(); err != nil {
		return err
	}
	return l.ShutdownErr()
}

func publish(l *ipc.Lifecycle) {
	if err := l.Publish(); err != nil {
		slog.Warn("Could not publish daemon state", "path", ipc.RecordPath(l.Endpoint().Name), "error", err)
	}
}

// Package ipc exposes an in-process object to remote callers through a
// background listener with a synchronous start/stop contract.
package ipc

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/robo-monk/ipcd/transport"
)

// State is the listener state of a Lifecycle.
type State int32

const (
	StateNotStarted State = iota
	StateStarting
	StateRunning
	StateFailed
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not started"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateFailed:
		return "failed"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

const (
	DefaultBindRetries    = 5
	DefaultBindRetryDelay = 10 * time.Millisecond
	DefaultDrainDelay     = 50 * time.Millisecond
	DefaultQuiesceTimeout = 500 * time.Millisecond
	DefaultJoinTimeout    = 2 * time.Second
	DefaultMaxConnections = 64
)

// Config configures a Lifecycle. Zero values take the defaults above; a zero
// Endpoint is DefaultEndpoint.
type Config struct {
	Endpoint EndpointConfig
	// Settings, when set, supplies name, host and port ahead of Endpoint.
	Settings SettingsSource

	BindRetries    int
	BindRetryDelay time.Duration
	DrainDelay     time.Duration
	QuiesceTimeout time.Duration
	JoinTimeout    time.Duration
	MaxConnections int

	Logger   *slog.Logger
	Recorder Recorder
}

func (c Config) withDefaults() Config {
	c.Endpoint = ResolveEndpoint(c.Endpoint.withDefaults(), c.Settings)
	if c.BindRetries <= 0 {
		c.BindRetries = DefaultBindRetries
	}
	if c.BindRetryDelay <= 0 {
		c.BindRetryDelay = DefaultBindRetryDelay
	}
	if c.DrainDelay <= 0 {
		c.DrainDelay = DefaultDrainDelay
	}
	if c.QuiesceTimeout <= 0 {
		c.QuiesceTimeout = DefaultQuiesceTimeout
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = DefaultJoinTimeout
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = DefaultMaxConnections
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Recorder == nil {
		c.Recorder = NoopRecorder{}
	}
	return c
}

// Lifecycle runs one exposed object on a background listener goroutine.
//
// Start blocks until the listener has either bound and registered the object
// or given up, so a caller never proceeds believing a dead daemon is alive.
// Stop drains, closes the object if it has a Close method, shuts the
// transport down and waits a bounded time for the listener to exit.
//
// A Lifecycle is single use: after Stopped or Failed it cannot be restarted.
type Lifecycle struct {
	id       string
	cfg      Config
	obj      any
	logger   *slog.Logger
	recorder Recorder

	state    atomic.Int32
	endpoint atomic.Pointer[EndpointConfig]
	signal   *StartupSignal
	exited   chan struct{}

	// srv is written by the listener goroutine before it publishes
	// StateRunning and only read by Stop after observing that state.
	srv *transport.Server

	errMu       sync.Mutex
	err         error
	shutdownErr error
}

// NewLifecycle prepares obj for exposure. The object is not touched until
// Start; the Lifecycle keeps a reference only while it is registered.
func NewLifecycle(obj any, cfg Config) (*Lifecycle, error) {
	if obj == nil {
		return nil, ErrNilObject
	}
	cfg = cfg.withDefaults()
	if err := cfg.Endpoint.Validate(); err != nil {
		return nil, &Error{Kind: KindInvalidState, Op: "configure", Cause: err}
	}

	id := uuid.NewString()
	l := &Lifecycle{
		id:       id,
		cfg:      cfg,
		obj:      obj,
		recorder: cfg.Recorder,
		signal:   newStartupSignal(),
		exited:   make(chan struct{}),
	}
	l.logger = cfg.Logger.With(
		slog.String(KeyComponent, "ipc"),
		logInstance(id),
		logURI(cfg.Endpoint.URI().String()),
	)
	ep := cfg.Endpoint
	l.endpoint.Store(&ep)
	cfg.Recorder.SetState(cfg.Endpoint.Name, StateNotStarted)
	return l, nil
}

// ID is a unique identifier for this Lifecycle, used in logs.
func (l *Lifecycle) ID() string { return l.id }

// State returns the current listener state.
func (l *Lifecycle) State() State { return State(l.state.Load()) }

// Endpoint returns the endpoint in use. Once running, Port is the port
// actually bound.
func (l *Lifecycle) Endpoint() EndpointConfig { return *l.endpoint.Load() }

// URI returns the address remote callers use to reach the object.
func (l *Lifecycle) URI() transport.URI { return l.Endpoint().URI() }

// Err returns the failure that put the daemon into StateFailed.
func (l *Lifecycle) Err() error {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	return l.err
}

// ShutdownErr returns the shutdown failure recorded by Stop, if the listener
// did not exit within the join timeout.
func (l *Lifecycle) ShutdownErr() error {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	return l.shutdownErr
}

// Done is closed when the listener goroutine has exited.
func (l *Lifecycle) Done() <-chan struct{} { return l.exited }

// CanSerialize reports whether candidate can be encoded under the configured
// serialization mode.
func (l *Lifecycle) CanSerialize(candidate any) bool {
	return CanSerialize(l.Endpoint().Serializer, candidate)
}

func (l *Lifecycle) setState(s State) {
	l.state.Store(int32(s))
	l.recorder.SetState(l.cfg.Endpoint.Name, s)
}

func (l *Lifecycle) transition(from, to State) bool {
	if !l.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	l.recorder.SetState(l.cfg.Endpoint.Name, to)
	return true
}

// Start spawns the listener goroutine and blocks until it reports the
// outcome of the bind phase. The wait is bounded by the retry budget.
func (l *Lifecycle) Start() error {
	if !l.transition(StateNotStarted, StateStarting) {
		return &Error{
			Kind:  KindInvalidState,
			Op:    "start",
			URI:   l.URI().String(),
			Cause: fmt.Errorf("%w (state %s)", ErrAlreadyStarted, l.State()),
		}
	}
	l.logger.Debug("Starting")
	go l.run()
	return l.signal.Wait()
}

func (l *Lifecycle) run() {
	defer close(l.exited)

	srv, err := l.bind()
	if err != nil {
		l.errMu.Lock()
		l.err = err
		l.errMu.Unlock()
		l.setState(StateFailed)
		l.recorder.IncStartOutcome(l.cfg.Endpoint.Name, KindOf(err).String())
		l.logger.Error("Error starting IPC server", logError(err))
		l.signal.resolve(err)
		return
	}

	l.srv = srv
	l.setState(StateRunning)
	l.recorder.IncStartOutcome(l.cfg.Endpoint.Name, OutcomeReady)
	l.logger.Info("IPC server started", logURI(l.URI().String()))
	l.signal.resolve(nil)

	if err := srv.Serve(); err != nil {
		if l.transition(StateRunning, StateFailed) {
			l.errMu.Lock()
			l.err = &Error{Kind: KindBindOrRegistration, Op: "serve", URI: l.URI().String(), Cause: err}
			l.errMu.Unlock()
		}
		l.logger.Error("IPC server serve loop failed", logError(err))
		return
	}
	l.logger.Info("IPC server exited event loop")
}

// bind reserves the endpoint and registers the object, retrying while the
// address is in use.
func (l *Lifecycle) bind() (*transport.Server, error) {
	ep := l.cfg.Endpoint
	uri := ep.URI().String()
	budget := RetryBudget{Remaining: l.cfg.BindRetries, Delay: l.cfg.BindRetryDelay}
	opts := transport.ServerOptions{
		Mode:           ep.Serializer,
		MaxConnections: l.cfg.MaxConnections,
		Logger:         l.logger,
	}

	for attempt := 1; budget.take(); attempt++ {
		l.recorder.IncBindAttempt(ep.Name)
		srv, err := transport.Bind(ep.Host, ep.Port, opts)
		if err != nil {
			if !transport.IsAddrInUse(err) {
				return nil, &Error{Kind: KindBindOrRegistration, Op: "bind", URI: uri, Port: ep.Port, Attempts: attempt, Cause: err}
			}
			if budget.exhausted() {
				l.logger.Error("Socket already in use", logPort(ep.Port), logAttempt(attempt))
				return nil, &Error{
					Kind:     KindAddressInUse,
					Op:       "bind",
					URI:      uri,
					Port:     ep.Port,
					Attempts: attempt,
					Owner:    describePortOwner(ep.Port),
					Cause:    err,
				}
			}
			l.logger.Debug("Port busy, retrying", logPort(ep.Port), logAttempt(attempt))
			time.Sleep(budget.Delay)
			continue
		}

		registered, err := srv.Register(l.obj, ep.Name)
		if err != nil {
			srv.Shutdown()
			return nil, &Error{Kind: KindBindOrRegistration, Op: "register", URI: uri, Port: ep.Port, Attempts: attempt, Cause: err}
		}
		ep.Port = registered.Port
		l.endpoint.Store(&ep)
		return srv, nil
	}
	// unreachable: BindRetries is at least one
	return nil, &Error{Kind: KindBindOrRegistration, Op: "bind", URI: uri, Cause: errors.New("no bind attempts")}
}

// Stop shuts a running daemon down. Calling it in any other state is a
// no-op. It never fails from the caller's point of view: a listener that
// does not exit within the join timeout is recorded in ShutdownErr and the
// daemon is still marked stopped.
//
// Before closing the exposed object Stop waits the drain delay and then
// holds new calls while in-flight ones finish, up to the quiesce timeout. A
// call still running when that window expires may overlap Close.
func (l *Lifecycle) Stop() {
	if !l.transition(StateRunning, StateStopping) {
		l.logger.Debug("Stop ignored", logState(l.State()))
		return
	}
	l.logger.Info("Stopping IPC server")

	time.Sleep(l.cfg.DrainDelay)
	if !l.srv.Quiesce(l.cfg.QuiesceTimeout) {
		l.logger.Warn("In-flight calls still running after quiesce timeout")
	}
	l.closeObject()
	l.srv.Shutdown()

	timer := time.NewTimer(l.cfg.JoinTimeout)
	defer timer.Stop()
	select {
	case <-l.exited:
	case <-timer.C:
		err := &Error{Kind: KindShutdownTimeout, Op: "stop", URI: l.URI().String(),
			Cause: fmt.Errorf("listener still running after %s", l.cfg.JoinTimeout)}
		l.errMu.Lock()
		l.shutdownErr = err
		l.errMu.Unlock()
		l.recorder.IncShutdownTimeout(l.cfg.Endpoint.Name)
		l.logger.Error("IPC server failed to shutdown", logError(err))
	}
	l.setState(StateStopped)
	l.logger.Info("IPC server stopped")
}

// closeObject invokes the object's Close method, if it has one.
func (l *Lifecycle) closeObject() {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Exposed object close panicked", slog.Any("panic", r))
		}
	}()
	switch c := l.obj.(type) {
	case interface{ Close() error }:
		if err := c.Close(); err != nil {
			l.logger.Warn("Exposed object close failed", logError(err))
		}
	case interface{ Close() }:
		c.Close()
	}
}

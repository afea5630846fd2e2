package ipc

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Status is a snapshot of one managed daemon.
type Status struct {
	Name     string
	URI      string
	State    State
	Err      error
	Shutdown error
}

// Manager supervises several daemons in one process. Names and non-zero
// ports must be unique across registered daemons.
type Manager struct {
	mu         sync.Mutex
	lifecycles map[string]*Lifecycle
	logger     *slog.Logger
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		lifecycles: make(map[string]*Lifecycle),
		logger:     logger.With(slog.String(KeyComponent, "manager")),
	}
}

// Register adds l under its endpoint name.
func (m *Manager) Register(l *Lifecycle) error {
	ep := l.Endpoint()
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, other := range m.lifecycles {
		if name == ep.Name {
			return fmt.Errorf("%w: name %q", ErrDuplicateEndpoint, ep.Name)
		}
		if ep.Port != 0 && other.Endpoint().Port == ep.Port {
			return fmt.Errorf("%w: port %d used by %q", ErrDuplicateEndpoint, ep.Port, name)
		}
	}
	m.lifecycles[ep.Name] = l
	return nil
}

// Get returns the daemon registered as name.
func (m *Manager) Get(name string) (*Lifecycle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lifecycles[name]
	return l, ok
}

// selected returns the named daemons, or all of them, ordered by name.
func (m *Manager) selected(names []string) []*Lifecycle {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Lifecycle, 0, len(m.lifecycles))
	for name, l := range m.lifecycles {
		if len(names) > 0 && !contains(names, name) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Endpoint().Name < out[j].Endpoint().Name
	})
	return out
}

// Start starts the named daemons, or all of them. Daemons already running
// are skipped. Every failure is returned, joined.
func (m *Manager) Start(names ...string) error {
	var errs []error
	for _, l := range m.selected(names) {
		if l.State() == StateRunning {
			m.logger.Info("Daemon already running", logURI(l.URI().String()))
			continue
		}
		if err := l.Start(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stop stops the named daemons, or all of them, in reverse name order.
func (m *Manager) Stop(names ...string) {
	ls := m.selected(names)
	for i := len(ls) - 1; i >= 0; i-- {
		ls[i].Stop()
	}
}

// List reports every registered daemon ordered by name.
func (m *Manager) List() []Status {
	ls := m.selected(nil)
	out := make([]Status, 0, len(ls))
	for _, l := range ls {
		out = append(out, Status{
			Name:     l.Endpoint().Name,
			URI:      l.URI().String(),
			State:    l.State(),
			Err:      l.Err(),
			Shutdown: l.ShutdownErr(),
		})
	}
	return out
}

package ipc

import (
	"log/slog"
	"time"

	"github.com/robo-monk/ipcd/transport"
)

const (
	DefaultDialTimeout = 5 * time.Second
	DefaultCallTimeout = 5 * time.Second
)

// LocatorConfig configures a Locator. Endpoint and Settings are resolved the
// same way Lifecycle resolves them, so both sides agree on the address.
type LocatorConfig struct {
	Endpoint    EndpointConfig
	Settings    SettingsSource
	DialTimeout time.Duration
	CallTimeout time.Duration
	Logger      *slog.Logger
}

// Locator produces handles on a remote daemon and checks its availability.
type Locator struct {
	endpoint EndpointConfig
	dial     time.Duration
	call     time.Duration
	logger   *slog.Logger
}

func NewLocator(cfg LocatorConfig) *Locator {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Locator{
		endpoint: ResolveEndpoint(cfg.Endpoint.withDefaults(), cfg.Settings),
		dial:     cfg.DialTimeout,
		call:     cfg.CallTimeout,
		logger:   cfg.Logger.With(slog.String(KeyComponent, "locator")),
	}
}

// Endpoint returns the endpoint the locator targets by default.
func (l *Locator) Endpoint() EndpointConfig { return l.endpoint }

// ResolveEndpoint returns override, or the locator's endpoint when override
// is nil, with values from src layered on top. Reading src never fails.
func (l *Locator) ResolveEndpoint(override *EndpointConfig, src SettingsSource) EndpointConfig {
	base := l.endpoint
	if override != nil {
		base = override.withDefaults()
	}
	return ResolveEndpoint(base, src)
}

// RemoteHandle returns an unconnected proxy on the object at ep. No network
// activity happens until the first call. The caller must Close it. Calls on
// an endpoint with port 0 fail with transport.ErrUnboundPort.
func (l *Locator) RemoteHandle(ep EndpointConfig) *transport.Proxy {
	ep = ep.withDefaults()
	return transport.OpenProxy(ep.URI(), transport.ProxyOptions{
		Mode:        ep.Serializer,
		DialTimeout: l.dial,
		CallTimeout: l.call,
	})
}

// ProbeAvailability reports whether a daemon at ep accepts a connection and
// completes the handshake. It never panics and always releases its
// connection. A timeout of zero uses the locator's call timeout.
func (l *Locator) ProbeAvailability(ep EndpointConfig, timeout time.Duration) (ok bool) {
	ep = ep.withDefaults()
	if timeout <= 0 {
		timeout = l.call
	}
	proxy := transport.OpenProxy(ep.URI(), transport.ProxyOptions{
		Mode:        ep.Serializer,
		DialTimeout: timeout,
		CallTimeout: timeout,
	})
	defer func() {
		if err := proxy.Close(); err != nil {
			l.logger.Debug("Probe close failed", logError(err))
		}
		if r := recover(); r != nil {
			l.logger.Warn("Probe panicked", slog.Any("panic", r))
			ok = false
		}
	}()

	if err := proxy.Handshake(); err != nil {
		l.logger.Debug("Server not available", logURI(ep.URI().String()), logError(err))
		return false
	}
	return true
}

// LastFailureDetail describes the most recent transport failure seen by this
// process, or "" if there has been none.
func (l *Locator) LastFailureDetail() string {
	return transport.LastFailureDetail()
}

package transport

import (
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"sync"
	"time"
)

var (
	// ErrCallTimeout is returned when a call does not complete within the
	// proxy's call timeout.
	ErrCallTimeout = errors.New("transport: call timed out")
	// ErrUnboundPort is returned by a proxy whose URI carries port 0.
	// Port 0 only means "any free port" to a listener.
	ErrUnboundPort = errors.New("transport: port 0 is not dialable")
)

// ProxyOptions configures OpenProxy. Zero timeouts disable the bound.
type ProxyOptions struct {
	Mode        Mode
	DialTimeout time.Duration
	CallTimeout time.Duration
}

// Proxy is a client-side handle on a registered object. It connects lazily
// on first use and holds one server connection slot until Close.
type Proxy struct {
	uri  URI
	opts ProxyOptions

	mu     sync.Mutex
	client *rpc.Client
}

// OpenProxy returns a proxy bound to uri. It does not contact the server.
func OpenProxy(uri URI, opts ProxyOptions) *Proxy {
	if opts.Mode == "" {
		opts.Mode = ModeNative
	}
	return &Proxy{uri: uri, opts: opts}
}

// URI returns the address the proxy is bound to.
func (p *Proxy) URI() URI { return p.uri }

// Call invokes method on the remote object. After ErrCallTimeout the
// underlying client may still decode a late response into reply, so reply
// must not be read or reused once Call has timed out.
func (p *Proxy) Call(method string, args, reply any) error {
	return p.invoke("call", p.uri.Name+"."+method, args, reply)
}

// Handshake checks that the server is reachable and has the proxy's object
// registered. No method of the object is invoked.
func (p *Proxy) Handshake() error {
	var ok bool
	if err := p.invoke("handshake", handshakeMethod, p.uri.Name, &ok); err != nil {
		return err
	}
	if !ok {
		err := fmt.Errorf("handshake %s: rejected", p.uri)
		recordFailure("handshake", p.uri.String(), err)
		return err
	}
	return nil
}

// Close releases the connection, if one is open. The proxy may be reused
// afterwards; it reconnects on the next call.
func (p *Proxy) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	if errors.Is(err, rpc.ErrShutdown) {
		return nil
	}
	return err
}

func (p *Proxy) connect() (*rpc.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	if p.uri.Port == 0 {
		return nil, fmt.Errorf("dial %s: %w", p.uri, ErrUnboundPort)
	}
	dialer := net.Dialer{Timeout: p.opts.DialTimeout}
	conn, err := dialer.Dial("tcp", p.uri.Address())
	if err != nil {
		return nil, err
	}
	p.client = rpc.NewClientWithCodec(newClientCodec(p.opts.Mode, conn))
	return p.client, nil
}

// drop forgets client if it is still the current one.
func (p *Proxy) drop(client *rpc.Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == client {
		p.client.Close()
		p.client = nil
	}
}

func (p *Proxy) invoke(op, serviceMethod string, args, reply any) error {
	client, err := p.connect()
	if err != nil {
		recordFailure(op, p.uri.String(), err)
		return err
	}

	var timeout <-chan time.Time
	if p.opts.CallTimeout > 0 {
		timer := time.NewTimer(p.opts.CallTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	call := client.Go(serviceMethod, args, reply, make(chan *rpc.Call, 1))
	select {
	case <-call.Done:
		if call.Error == nil {
			return nil
		}
		var remote rpc.ServerError
		if !errors.As(call.Error, &remote) {
			// connection-level failure, the client is unusable
			p.drop(client)
		}
		recordFailure(op, p.uri.String()+" "+serviceMethod, call.Error)
		return call.Error
	case <-timeout:
		p.drop(client)
		err := fmt.Errorf("%s %s: %w", op, serviceMethod, ErrCallTimeout)
		recordFailure(op, p.uri.String(), err)
		return err
	}
}

package transport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/rpc"
	"strconv"
	"sync"
	"time"

	"golang.org/x/net/netutil"
)

// handshakeService is the reserved rpc service answering Proxy.Handshake.
const handshakeService = "_ipc"

const handshakeMethod = handshakeService + ".Handshake"

var (
	ErrAlreadyRegistered = errors.New("transport: an object is already registered")
	errQuiescing         = errors.New("transport: server is draining")
)

// ServerOptions configures Bind.
type ServerOptions struct {
	Mode Mode
	// MaxConnections caps concurrently served connections; 0 means unlimited.
	MaxConnections int
	Logger         *slog.Logger
}

// Server owns a bound listener and the rpc server dispatching calls to the
// registered object.
type Server struct {
	mode     Mode
	logger   *slog.Logger
	listener net.Listener
	rpc      *rpc.Server
	host     string
	port     int

	mu        sync.Mutex
	name      string
	conns     map[io.Closer]struct{}
	quiescing bool
	inflight  int
	// drained is closed when inflight drops to zero while Quiesce waits.
	drained chan struct{}

	done     chan struct{}
	stopOnce sync.Once
	connWG   sync.WaitGroup
}

// Bind reserves host:port. A port of 0 binds an ephemeral port; Port reports
// the one actually bound. Callers classify failures with IsAddrInUse.
func Bind(host string, port int, opts ServerOptions) (*Server, error) {
	if opts.Mode == "" {
		opts.Mode = ModeNative
	}
	if !opts.Mode.Valid() {
		return nil, fmt.Errorf("transport: invalid mode %q", opts.Mode)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		recordFailure("bind", addr, err)
		return nil, err
	}

	bound := port
	if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
		bound = tcp.Port
	}
	if opts.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, opts.MaxConnections)
	}

	s := &Server{
		mode:     opts.Mode,
		logger:   opts.Logger,
		listener: ln,
		rpc:      rpc.NewServer(),
		host:     host,
		port:     bound,
		conns:    make(map[io.Closer]struct{}),
		done:     make(chan struct{}),
	}
	if err := s.rpc.RegisterName(handshakeService, &handshake{srv: s}); err != nil {
		ln.Close()
		return nil, err
	}
	return s, nil
}

// Port returns the bound TCP port.
func (s *Server) Port() int { return s.port }

// Host returns the host the listener was bound with.
func (s *Server) Host() string { return s.host }

// Register exposes obj under name and returns its URI. Only one object may
// be registered per server.
func (s *Server) Register(obj any, name string) (URI, error) {
	uri := URI{Name: name, Host: s.host, Port: s.port}
	if name == "" || name == handshakeService {
		err := fmt.Errorf("transport: invalid object name %q", name)
		recordFailure("register", uri.String(), err)
		return URI{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.name != "" {
		return URI{}, ErrAlreadyRegistered
	}
	if err := s.rpc.RegisterName(name, obj); err != nil {
		recordFailure("register", uri.String(), err)
		return URI{}, err
	}
	s.name = name
	return uri, nil
}

// Serve accepts connections until Shutdown is called. It returns nil after a
// requested shutdown, once every connection goroutine has finished.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				s.connWG.Wait()
				return nil
			default:
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.logger.Warn("accept timeout", "error", err)
				time.Sleep(5 * time.Millisecond)
				continue
			}
			recordFailure("accept", s.listener.Addr().String(), err)
			s.Shutdown()
			s.connWG.Wait()
			return err
		}

		if !s.track(conn) {
			conn.Close()
			continue
		}
		s.connWG.Add(1)
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.connWG.Done()
	defer s.untrack(conn)
	s.logger.Debug("connection accepted", "remote", conn.RemoteAddr().String())
	s.rpc.ServeCodec(&gatedCodec{ServerCodec: newServerCodec(s.mode, conn), srv: s})
}

func (s *Server) track(c io.Closer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return false
	default:
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c io.Closer) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

// admit lets a request with a decoded header proceed to dispatch. While the
// server is draining it parks the connection until shutdown and refuses.
func (s *Server) admit() bool {
	s.mu.Lock()
	if !s.quiescing {
		s.inflight++
		s.mu.Unlock()
		return true
	}
	s.mu.Unlock()
	<-s.done
	return false
}

// release marks one admitted call as answered.
func (s *Server) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if s.inflight == 0 && s.drained != nil {
		close(s.drained)
		s.drained = nil
	}
}

// Quiesce stops dispatching new calls and waits up to timeout for calls
// already dispatched to write their responses. It reports whether every
// in-flight call finished in time. Nothing is left waiting after a timeout,
// so Quiesce may be retried.
func (s *Server) Quiesce(timeout time.Duration) bool {
	s.mu.Lock()
	s.quiescing = true
	if s.inflight == 0 {
		s.mu.Unlock()
		return true
	}
	if s.drained == nil {
		s.drained = make(chan struct{})
	}
	drained := s.drained
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-drained:
		return true
	case <-timer.C:
		return false
	}
}

// Shutdown makes Serve return: the listener and every open connection are
// closed. It is safe to call more than once.
func (s *Server) Shutdown() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		close(s.done)
		conns := make([]io.Closer, 0, len(s.conns))
		for c := range s.conns {
			conns = append(conns, c)
		}
		s.mu.Unlock()

		if err := s.listener.Close(); err != nil {
			s.logger.Debug("close listener", "error", err)
		}
		for _, c := range conns {
			c.Close()
		}
	})
}

// gatedCodec counts dispatched calls so Quiesce can wait for them.
type gatedCodec struct {
	rpc.ServerCodec
	srv *Server
}

func (c *gatedCodec) ReadRequestHeader(r *rpc.Request) error {
	if err := c.ServerCodec.ReadRequestHeader(r); err != nil {
		return err
	}
	if !c.srv.admit() {
		return errQuiescing
	}
	return nil
}

func (c *gatedCodec) WriteResponse(r *rpc.Response, body any) error {
	defer c.srv.release()
	return c.ServerCodec.WriteResponse(r, body)
}

type handshake struct {
	srv *Server
}

// Handshake succeeds when name is the object registered on this server.
func (h *handshake) Handshake(name string, ok *bool) error {
	h.srv.mu.Lock()
	registered := h.srv.name
	h.srv.mu.Unlock()
	if registered == "" || registered != name {
		return fmt.Errorf("no object registered as %q", name)
	}
	*ok = true
	return nil
}

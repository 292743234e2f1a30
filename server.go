package wsstream

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// Handler is the interface for serving one upgraded connection.
// The engine is already running when Handle is called; the server closes
// the connection once Handle returns.
type Handler interface {
	Handle(ctx context.Context, conn *Conn)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, conn *Conn)

// Handle calls f(ctx, conn).
func (f HandlerFunc) Handle(ctx context.Context, conn *Conn) { f(ctx, conn) }

// readHeaderTimeout bounds the HTTP request preceding the upgrade.
const readHeaderTimeout = 10 * time.Second

// Server accepts WebSocket connections and runs an engine per connection.
type Server struct {
	listener        *net.TCPListener
	logger          Logger
	shutdownTimeout time.Duration
	connOpts        []Option
	upgrader        websocket.Upgrader

	mu          sync.Mutex
	shutdown    bool
	httpServer  *http.Server
	shutdownNow chan struct{} // signals immediate shutdown, bypassing timeout
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// ServerLoggerOption sets the logger for the server.
func ServerLoggerOption(logger Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// ServerShutdownTimeoutOption sets the graceful shutdown timeout.
// When the context is canceled, the server will wait up to this duration
// before closing the listener. Connection engines see the cancellation
// immediately and send a going-away close frame.
// Default is 0 (immediate shutdown).
func ServerShutdownTimeoutOption(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.shutdownTimeout = timeout
	}
}

// ServerConnOption sets the options applied to every accepted connection.
func ServerConnOption(opts ...Option) ServerOption {
	return func(s *Server) {
		s.connOpts = append(s.connOpts, opts...)
	}
}

// ServerCheckOriginOption sets the origin check of the WebSocket handshake.
// By default cross-origin browser requests are rejected.
func ServerCheckOriginOption(check func(r *http.Request) bool) ServerOption {
	return func(s *Server) {
		s.upgrader.CheckOrigin = check
	}
}

// New creates a new WebSocket server bound to the specified address.
// Returns an error if the address cannot be bound.
func New(addr *net.TCPAddr, opts ...ServerOption) (*Server, error) {
	listener, err := net.ListenTCP(addr.Network(), addr)
	if err != nil {
		return nil, err
	}

	s := &Server{
		listener:    listener,
		logger:      slog.Default(),
		shutdownNow: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Serve upgrades incoming HTTP requests and dispatches each connection to
// the handler. It blocks until the context is canceled or an unrecoverable
// error occurs. If ServerShutdownTimeoutOption is set, the server waits up
// to the specified duration before closing the listener. Call Close() to
// bypass the timeout and shut down immediately.
func (s *Server) Serve(ctx context.Context, handler Handler) error {
	s.logger.Info("server started", "addr", s.listener.Addr())

	srv := &http.Server{
		Handler:           s.serveConn(ctx, handler),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	// Start a goroutine to handle context cancellation
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
			return
		}

		// Wait for shutdown timeout if configured, but allow early exit via Close()
		if s.shutdownTimeout > 0 {
			s.logger.Info("graceful shutdown initiated", "timeout", s.shutdownTimeout)
			select {
			case <-time.After(s.shutdownTimeout):
				// Timeout expired, proceed with shutdown
			case <-s.shutdownNow:
				// Close() was called, skip remaining timeout
				s.logger.Debug("shutdown timeout bypassed via Close()")
			}
		}

		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = srv.Close()
	}()

	err := srv.Serve(s.listener)

	s.mu.Lock()
	isShutdown := s.shutdown
	s.mu.Unlock()

	if isShutdown {
		s.logger.Info("server stopped", "addr", s.listener.Addr())
		return ctx.Err()
	}

	s.logger.Error("serve error", "error", err)
	return errors.Wrap(err, "serve")
}

// serveConn upgrades one request and runs its engine for the lifetime of
// the handler.
func (s *Server) serveConn(ctx context.Context, handler Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already replied with an HTTP error.
			s.logger.Debug("upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
			return
		}
		s.logger.Debug("accepted connection", "remote_addr", ws.RemoteAddr())

		conn, err := NewConn(ws, s.connOpts...)
		if err != nil {
			s.logger.Error("connection setup failed", "remote_addr", ws.RemoteAddr(), "error", err)
			_ = ws.Close()
			return
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		runErr := make(chan error, 1)
		go func() {
			runErr <- conn.Run(ctx)
		}()

		handler.Handle(ctx, conn)
		_ = conn.Close()
		<-runErr
	}
}

// Close stops the server by closing the underlying listener.
// If a shutdown timeout is configured, Close() bypasses the remaining timeout.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	srv := s.httpServer
	s.mu.Unlock()

	// Signal to bypass any pending shutdown timeout
	select {
	case s.shutdownNow <- struct{}{}:
	default:
		// Channel already has a signal or no one is listening
	}

	if srv != nil {
		return srv.Close()
	}
	return s.listener.Close()
}

// Addr returns the listener's network address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

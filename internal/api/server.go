package api

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-http/internal/audit"
	"github.com/nerrad567/gray-logic-http/internal/auth"
	"github.com/nerrad567/gray-logic-http/internal/ban"
	"github.com/nerrad567/gray-logic-http/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-http/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// healthCheckTimeout bounds the self-dial in HealthCheck.
const healthCheckTimeout = 2 * time.Second

// State is the server's lifecycle state.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// HostState reports whether the hub is up. *core.Hub satisfies it.
type HostState interface {
	IsRunning() bool
}

// RequestRecorder receives one sample per dispatched view request.
// *influxdb.Client satisfies it.
type RequestRecorder interface {
	RecordRequest(view, method string, status int, duration time.Duration)
}

// ConnectionStatus reports whether a backing connection is up.
type ConnectionStatus interface {
	IsConnected() bool
}

// AuditLog lists recorded security events. *audit.SQLiteRepository satisfies it.
type AuditLog interface {
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// Deps holds the dependencies required by the HTTP server.
type Deps struct {
	Config config.HTTPConfig
	Logger *logging.Logger
	Host   HostState
	Auth   *auth.Authenticator

	// Bans is nil when IP banning is disabled.
	Bans *ban.Tracker

	// Optional.
	Metrics RequestRecorder
	MQTT    ConnectionStatus
	DB      *sql.DB
	Audit   AuditLog

	Version string
}

// Server is the hub's HTTP front door.
//
// Views, redirects and static paths are registered while the server is
// stopped. Start binds the socket and freezes registration until Stop.
type Server struct {
	cfg     config.HTTPConfig
	logger  *logging.Logger
	host    HostState
	auth    *auth.Authenticator
	bans    *ban.Tracker
	metrics RequestRecorder
	mqtt    ConnectionStatus
	db      *sql.DB
	audit   AuditLog
	version string

	router *chi.Mux

	mu        sync.Mutex
	state     State
	routes    map[string]struct{}
	server    *http.Server
	listener  net.Listener
	served    chan struct{}
	startTime time.Time
}

// New creates the server, installs the middleware chain and registers the
// built-in API views. The server is not started until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Host == nil {
		return nil, fmt.Errorf("host state is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("authenticator is required")
	}

	s := &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		host:    deps.Host,
		auth:    deps.Auth,
		bans:    deps.Bans,
		metrics: deps.Metrics,
		mqtt:    deps.MQTT,
		db:      deps.DB,
		audit:   deps.Audit,
		version: deps.Version,
		state:   StateStopped,
		routes:  make(map[string]struct{}),
	}
	s.router = s.buildRouter()

	if err := s.registerSystemViews(); err != nil {
		return nil, err
	}
	return s, nil
}

// buildRouter creates the router with the middleware chain. Order matters:
// the client address must be known before logging, banning and auth.
func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.realIPMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)
	if s.bans != nil {
		r.Use(s.banMiddleware)
	}
	r.Use(s.authMiddleware)

	r.NotFound(writeNotFound)
	r.MethodNotAllowed(writeMethodNotAllowed)
	return r
}

// Start loads the TLS key pair if one is configured, binds the listening
// socket and serves in the background. A certificate or bind failure is
// logged and returned, and leaves the server stopped.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStopped {
		return ErrAlreadyStarted
	}
	s.state = StateStarting

	tlsCfg, err := s.loadTLS()
	if err != nil {
		s.state = StateStopped
		s.logger.Error("could not read TLS certificate", "cert", s.cfg.SSLCertificate, "error", err)
		return err
	}

	addr := net.JoinHostPort(s.cfg.ServerHost, strconv.Itoa(s.cfg.ServerPort))
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		s.state = StateStopped
		s.logger.Error("failed to create HTTP server", "address", addr, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrBind, addr, err)
	}
	if tlsCfg != nil {
		ln = tls.NewListener(ln, tlsCfg)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadTimeout:       s.cfg.Timeouts.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadTimeout(),
		WriteTimeout:      s.cfg.Timeouts.WriteTimeout(),
		IdleTimeout:       s.cfg.Timeouts.IdleTimeout(),
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	served := make(chan struct{})

	s.server = srv
	s.listener = ln
	s.served = served
	s.startTime = time.Now()
	s.state = StateRunning

	go func() {
		defer close(served)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	s.logger.Info("HTTP server started",
		"address", ln.Addr().String(),
		"tls", tlsCfg != nil,
		"ip_ban_enabled", s.bans != nil,
	)
	return nil
}

func (s *Server) loadTLS() (*tls.Config, error) {
	if !s.cfg.TLSEnabled() {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(s.cfg.SSLCertificate, s.cfg.SSLKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCertificate, s.cfg.SSLCertificate, err)
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}, nil
}

// Stop closes the listener and waits up to 10 seconds (or until ctx ends)
// for in-flight requests, then forcibly closes what is left. Stopping a
// server that is not running does nothing.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopping
	srv, served := s.server, s.served
	s.mu.Unlock()

	s.logger.Info("HTTP server shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, gracefulShutdownTimeout)
	defer cancel()

	var shutdownErr error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("graceful shutdown incomplete, closing connections", "error", err)
		srv.Close() //nolint:errcheck // connections are being abandoned anyway
		shutdownErr = fmt.Errorf("shutting down HTTP server: %w", err)
	}
	<-served

	s.mu.Lock()
	s.server = nil
	s.listener = nil
	s.served = nil
	s.state = StateStopped
	s.mu.Unlock()

	s.logger.Info("HTTP server stopped")
	return shutdownErr
}

// Close stops the server with the default grace period.
func (s *Server) Close() error {
	return s.Stop(context.Background())
}

// State returns the server's lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Addr returns the bound address, or nil when the server is not running.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// HealthCheck verifies the server is accepting connections by dialling its
// own listener. A wildcard bind is checked through the loopback address.
func (s *Server) HealthCheck(ctx context.Context) error {
	addr, ok := s.Addr().(*net.TCPAddr)
	if !ok || s.State() != StateRunning {
		return ErrNotRunning
	}

	target := addr.String()
	if addr.IP.IsUnspecified() {
		target = net.JoinHostPort("127.0.0.1", strconv.Itoa(addr.Port))
	}

	dialCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", target)
	if err != nil {
		return fmt.Errorf("http health check: %w", err)
	}
	return conn.Close()
}

// ServeHTTP serves a request through the full middleware chain without a
// listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

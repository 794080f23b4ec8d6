package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-dbkeeper/internal/health"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/supervisor"
)

// shutdownGrace bounds how long Close waits for in-flight requests.
const shutdownGrace = 10 * time.Second

// Supervisor is the view of the supervisor the API serves.
// *supervisor.Supervisor satisfies it.
type Supervisor interface {
	Targets() []string
	Status(name string) (supervisor.TargetStatus, bool)
	Check(ctx context.Context, name string) (health.Result, error)
	Reset(ctx context.Context, name string) error
}

// Deps wires a Server. Logger and Supervisor are required.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Logger     *logging.Logger
	Supervisor Supervisor

	// Hub is shared with the supervisor so results reach WebSocket clients.
	// A hub is created when nil.
	Hub     *Hub
	Version string
}

// Server serves target status over HTTP and WebSocket.
type Server struct {
	cfg     config.APIConfig
	logger  *logging.Logger
	sup     Supervisor
	version string
	hub     *Hub
	server  *http.Server
	addr    net.Addr
	cancel  context.CancelFunc
}

// New builds a Server from deps without binding a listener.
//
// Returns:
//   - *Server: Server ready for Start
//   - error: If Logger or Supervisor is nil
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Supervisor == nil {
		return nil, fmt.Errorf("supervisor is required")
	}

	hub := deps.Hub
	if hub == nil {
		hub = NewHub(deps.WS, deps.Logger)
	}

	return &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		sup:     deps.Supervisor,
		version: deps.Version,
		hub:     hub,
	}, nil
}

// Hub returns the server's WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listener and serves in a background goroutine. Port 0
// picks a free port; Addr reports the bound address.
//
// Parameters:
//   - ctx: Parent context for the hub; the listener lives until Close
//
// Returns:
//   - error: If the listener cannot be bound
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		s.cancel()
		return fmt.Errorf("binding API listener: %w", err)
	}
	s.addr = ln.Addr()
	s.logger.Info("API server listening", "address", s.addr.String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Close stops the hub, which drops WebSocket clients, then drains HTTP
// requests for up to shutdownGrace. It is a no-op before Start.
func (s *Server) Close() error {
	if s.server == nil || s.addr == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	s.logger.Info("API server stopping", "address", s.addr.String())
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	return nil
}

// HealthCheck fails until Start has bound the listener.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.addr == nil {
		return errors.New("api server not started")
	}
	return nil
}

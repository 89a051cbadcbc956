package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/hydrogate/internal/hydro"
	"github.com/nerrad567/hydrogate/internal/infrastructure/config"
	"github.com/nerrad567/hydrogate/internal/infrastructure/database"
	"github.com/nerrad567/hydrogate/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ControlPublisher announces dispense amount changes on the message bus.
// Implemented by *mqtt.Client.
type ControlPublisher interface {
	PublishControlSetting(componentName string, amount *float64) error
}

// ControlRecorder stores dispense amount changes as time-series points.
// Implemented by *influxdb.Client.
type ControlRecorder interface {
	WriteControlChange(componentName string, amount *float64)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config config.APIConfig
	WS     config.WebSocketConfig
	Logger *logging.Logger
	Repo   hydro.Repository

	// DB backs the health ping and pool metrics. Optional.
	DB *database.DB

	// Publisher and Recorder receive control changes. Both optional.
	Publisher ControlPublisher
	Recorder  ControlRecorder

	Version string
}

// Server is the HTTP API server for the hydroponics gateway.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	repo      hydro.Repository
	db        *database.DB
	publisher ControlPublisher
	recorder  ControlRecorder
	version   string

	hub     *Hub
	metrics *metrics
	server  *http.Server
	addr    string
	cancel  context.CancelFunc
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Repo == nil {
		return nil, fmt.Errorf("repository is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		repo:      deps.Repo,
		db:        deps.DB,
		publisher: deps.Publisher,
		recorder:  deps.Recorder,
		version:   deps.Version,
	}
	s.hub = NewHub(deps.WS, deps.Logger)

	var err error
	s.metrics, err = newMetrics(deps.DB, s.hub)
	if err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	return s, nil
}

// Handler returns the fully wired router. Start uses it for the listener;
// tests serve it through httptest.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves requests in a background goroutine.
// A bind failure (port in use, etc.) is returned directly.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port)),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("binding %s: %w", s.server.Addr, err)
	}
	s.addr = ln.Addr().String()

	go func() {
		s.logger.Info("API server listening", "address", s.addr)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	return s.addr
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}

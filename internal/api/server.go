package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/farm-bridge/internal/account"
	"github.com/nerrad567/farm-bridge/internal/control"
	"github.com/nerrad567/farm-bridge/internal/correlation"
	"github.com/nerrad567/farm-bridge/internal/device"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/config"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/farm-bridge/internal/telemetry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// defaultCookieName is the session cookie set by the account service.
const defaultCookieName = "_uu"

// HealthChecker is implemented by the database and the bus connection.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Bridge   config.BridgeConfig
	Logger   *logging.Logger

	Devices    *device.Registry
	Accounts   account.Repository // optional: skips the withdrawn-account check when nil
	Samples    telemetry.Store
	Commands   *control.Dispatcher
	Thresholds *control.ThresholdPublisher
	Realtime   *correlation.RealtimeQuery

	DB  HealthChecker
	Bus HealthChecker

	Metrics *prometheus.Registry // optional: /metrics is not mounted when nil
	Hub     *Hub                 // optional: created when nil
	Version string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	secCfg     config.SecurityConfig
	bridgeCfg  config.BridgeConfig
	logger     *logging.Logger
	devices    *device.Registry
	accounts   account.Repository
	samples    telemetry.Store
	commands   *control.Dispatcher
	thresholds *control.ThresholdPublisher
	realtime   *correlation.RealtimeQuery
	db         HealthChecker
	bus        HealthChecker
	metrics    *prometheus.Registry
	version    string
	now        func() time.Time
	server     *http.Server
	hub        *Hub
	cancel     context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, errors.New("logger is required")
	case deps.Devices == nil:
		return nil, errors.New("device registry is required")
	case deps.Samples == nil:
		return nil, errors.New("telemetry store is required")
	case deps.Commands == nil || deps.Thresholds == nil:
		return nil, errors.New("command dispatcher and threshold publisher are required")
	case deps.Realtime == nil:
		return nil, errors.New("realtime query is required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		secCfg:     deps.Security,
		bridgeCfg:  deps.Bridge,
		logger:     deps.Logger,
		devices:    deps.Devices,
		accounts:   deps.Accounts,
		samples:    deps.Samples,
		commands:   deps.Commands,
		thresholds: deps.Thresholds,
		realtime:   deps.Realtime,
		db:         deps.DB,
		bus:        deps.Bus,
		metrics:    deps.Metrics,
		version:    deps.Version,
		now:        time.Now,
		hub:        deps.Hub,
	}
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	return s, nil
}

// Hub returns the live telemetry hub, for wiring into the ingest path.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the full HTTP handler without starting a listener.
func (s *Server) Handler() http.Handler { return s.buildRouter() }

// Start begins listening for HTTP connections in a background goroutine.
// ctx bounds the hub, not the listener; stop the server with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting up to 10 seconds
// for in-flight requests.
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
		return errors.New("api server not started")
	}
	return nil
}

// Package api provides the HTTP REST API and WebSocket server for Hearth.
//
// It exposes automation CRUD, manual firing, firing history, and read-only
// device views, plus a WebSocket channel for real-time engine events.
//
// The server follows the same lifecycle pattern as the other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hearth-home/hearth-core/internal/automation"
	"github.com/hearth-home/hearth-core/internal/device"
	"github.com/hearth-home/hearth-core/internal/infrastructure/config"
	"github.com/hearth-home/hearth-core/internal/infrastructure/database"
	"github.com/hearth-home/hearth-core/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Firer starts an automation firing. Implemented by *automation.Engine.
type Firer interface {
	Fire(automationID, trigger string)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	Logger      *logging.Logger
	Store       *automation.Store
	Registry    *device.Registry
	Engine      Firer
	Repo        automation.Repository
	DB          *database.DB
	ExternalHub *Hub // If set, the server uses this hub instead of creating its own
	Version     string
}

// Server is the HTTP API server for Hearth.
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	logger      *logging.Logger
	store       *automation.Store
	registry    *device.Registry
	engine      Firer
	repo        automation.Repository
	db          *database.DB
	version     string
	server      *http.Server
	hub         *Hub
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates an API server. It is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("automation store is required")
	}

	s := &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		logger:   deps.Logger,
		store:    deps.Store,
		registry: deps.Registry,
		engine:   deps.Engine,
		repo:     deps.Repo,
		db:       deps.DB,
		version:  deps.Version,
		hub:      deps.ExternalHub,
	}
	return s, nil
}

// Start begins listening for HTTP connections. The WebSocket hub is
// started (unless one was injected) and the listener runs in a background
// goroutine. Stop with Close().
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

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

// Hub returns the server's WebSocket hub. Nil until Start() unless an
// external hub was injected.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Close gracefully shuts down the API server, waiting up to ten seconds
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
		return fmt.Errorf("api server not started")
	}
	return nil
}

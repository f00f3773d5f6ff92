package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/lightnode/internal/api/models"
	"github.com/smazurov/lightnode/internal/events"
	"github.com/smazurov/lightnode/internal/light"
	"github.com/smazurov/lightnode/internal/logging"
	"github.com/smazurov/lightnode/internal/presets"
	"github.com/smazurov/lightnode/internal/version"
)

// shutdownGrace bounds how long Stop waits for in-flight requests before
// closing the remaining connections (SSE streams never finish on their own).
const shutdownGrace = 2 * time.Second

// LightController is the part of the light controller the API drives.
type LightController interface {
	Apply(mode light.Mode) (light.State, error)
	SetDurations(update light.DurationUpdate) (light.State, error)
	Snapshot() light.State
}

// PresetService is the part of the preset service the API drives.
type PresetService interface {
	Names() []string
	List() []presets.Preset
	Save(name string, durations light.Durations) error
	SaveCurrent(name string) error
	Apply(name string) (light.State, error)
	Delete(name string) (light.State, error)
}

// Options wires the server to the rest of the daemon.
type Options struct {
	Controller        LightController
	Presets           PresetService
	EventBus          *events.Bus
	PrometheusHandler http.Handler // optional, served at /metrics
}

// Server is the HTTP control surface.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	ctrl       LightController
	presets    PresetService
	eventBus   *events.Bus
	logger     *slog.Logger
	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
}

// NewServer creates the API server with Huma v2 on Go 1.22+ native routing.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("lightnode API", version.Version)
	config.Info.Description = "Traffic light controller: modes, live timings and presets"
	// Relative paths so the docs work behind any host
	config.Servers = []*huma.Server{}

	api := humago.New(mux, config)
	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(RequestIDMiddleware)
	api.UseMiddleware(HTTPLoggingMiddleware)

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	s := &Server{
		api:      api,
		mux:      mux,
		ctrl:     opts.Controller,
		presets:  opts.Presets,
		eventBus: opts.EventBus,
		logger:   logging.GetLogger("api"),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// GetAPI returns the Huma API instance
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Listen binds addr so that the real port is known before serving.
func (s *Server) Listen(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Unlock()

	s.logger.Info("API server listening", "addr", ln.Addr().String())
	s.logger.Info("OpenAPI documentation available", "url", "http://"+ln.Addr().String()+"/docs")
	return ln.Addr(), nil
}

// Serve blocks serving the listener bound by Listen. It returns nil after
// Stop.
func (s *Server) Serve() error {
	s.mu.Lock()
	srv, ln := s.httpServer, s.listener
	s.mu.Unlock()
	if srv == nil {
		return errors.New("api: Serve called before Listen")
	}

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Start listens on addr and serves until Stop.
func (s *Server) Start(addr string) error {
	if _, err := s.Listen(addr); err != nil {
		return err
	}
	return s.Serve()
}

// Stop shuts the server down, closing whatever is still open after a short
// grace period.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	s.logger.Info("Stopping API server")
	ctx, cancel := context.WithTimeout(ctx, shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Debug("Graceful shutdown incomplete, closing connections", "error", err)
		return srv.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				BuildID:   info.BuildID,
				GoVersion: info.GoVersion,
				Compiler:  info.Compiler,
				Platform:  info.Platform,
			},
		}, nil
	})

	s.registerLightRoutes()
	s.registerPresetRoutes()
	s.registerSSERoutes()
}

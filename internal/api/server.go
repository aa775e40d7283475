package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/niconistal/BabyBox/internal/audioroute"
	"github.com/niconistal/BabyBox/internal/downloader"
	"github.com/niconistal/BabyBox/internal/infrastructure/config"
	"github.com/niconistal/BabyBox/internal/infrastructure/logging"
	"github.com/niconistal/BabyBox/internal/library"
	"github.com/niconistal/BabyBox/internal/orchestrator"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Controller is the slice of the orchestrator the API uses.
type Controller interface {
	Snapshot() orchestrator.Snapshot
	Submit(ev orchestrator.Event) bool
	LastScan() (orchestrator.TagScan, bool)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Media    config.MediaConfig
	Logger   *logging.Logger

	Controller Controller
	MediaRepo  *library.MediaRepository
	Tags       *library.TagRepository
	Playback   *library.PlaybackRepository
	Settings   *library.SettingsRepository

	// Downloads and Bluetooth may be nil; their routes then return 404.
	Downloads *downloader.Manager
	Bluetooth *audioroute.Router

	Version string
}

// Server is the admin HTTP API server.
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	secCfg   config.SecurityConfig
	mediaCfg config.MediaConfig
	logger   *logging.Logger

	controller Controller
	media      *library.MediaRepository
	tags       *library.TagRepository
	playback   *library.PlaybackRepository
	settings   *library.SettingsRepository
	downloads  *downloader.Manager
	bluetooth  *audioroute.Router
	version    string

	server  *http.Server
	hub     *Hub
	tickets *ticketStore
	cancel  context.CancelFunc
}

// New creates an API server. It is not listening until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Controller == nil {
		return nil, fmt.Errorf("controller is required")
	}
	if deps.MediaRepo == nil || deps.Tags == nil || deps.Playback == nil || deps.Settings == nil {
		return nil, fmt.Errorf("library repositories are required")
	}

	return &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		secCfg:     deps.Security,
		mediaCfg:   deps.Media,
		logger:     deps.Logger,
		controller: deps.Controller,
		media:      deps.MediaRepo,
		tags:       deps.Tags,
		playback:   deps.Playback,
		settings:   deps.Settings,
		downloads:  deps.Downloads,
		bluetooth:  deps.Bluetooth,
		version:    deps.Version,
		tickets:    newTicketStore(),
	}, nil
}

// Start begins listening for HTTP connections.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)
	go s.tickets.cleanLoop(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("admin API listening", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("admin API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("admin API shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down admin API: %w", err)
	}
	return nil
}

// PublishState broadcasts a state snapshot to WebSocket subscribers.
// Implements orchestrator.StatePublisher so the API can be one of the
// orchestrator's state fan-out targets.
func (s *Server) PublishState(snap orchestrator.Snapshot) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(ChannelState, snap)
}

// PublishDownload broadcasts download job progress to WebSocket
// subscribers. Wired as a download manager progress callback.
func (s *Server) PublishDownload(job downloader.Job) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(ChannelDownload, job)
}

// HealthCheck verifies the server has been started.
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

package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hubgate/internal/application"
	"hubgate/internal/domain"
)

type SessionService interface {
	Login(ctx context.Context, username, password, previousID string) (application.Session, error)
	Get(id string) (application.Session, bool)
	Logout(ctx context.Context, id string) error
	SetMode(ctx context.Context, id string, mode domain.Mode) (application.Session, error)
	ChangePassword(ctx context.Context, id, current, next, confirm string) error
}

type DeviceService interface {
	Refresh(ctx context.Context, userID int64, mode domain.Mode, background bool) ([]domain.UIDevice, error)
	Devices(ctx context.Context, userID int64, mode domain.Mode) ([]domain.UIDevice, error)
}

type CommandService interface {
	Dispatch(ctx context.Context, userID int64, mode domain.Mode, cmd domain.Command, entityID string, value *float64) error
}

type HistoryService interface {
	FetchHistory(ctx context.Context, userID int64, mode domain.Mode, entityID string, bucket domain.Bucket) (*domain.HistoryResult, error)
}

type SettingsService interface {
	Connection(ctx context.Context, userID int64) (*domain.Connection, error)
	UpdateHubSettings(ctx context.Context, adminID int64, in application.HubSettings) (*domain.Connection, error)
	SaveOverride(ctx context.Context, adminID int64, in application.OverrideEdit) (*domain.DeviceOverride, error)
}

type Services struct {
	Sessions SessionService
	Devices  DeviceService
	Commands CommandService
	History  HistoryService
	Settings SettingsService
}

type Config struct {
	Addr            string
	LoginRateLimit  int
	LoginRateWindow time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.LoginRateLimit <= 0 {
		c.LoginRateLimit = 10
	}
	if c.LoginRateWindow <= 0 {
		c.LoginRateWindow = time.Minute
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
}

// Server is the UI-facing HTTP surface.
type Server struct {
	cfg      Config
	sessions SessionService
	devices  DeviceService
	commands CommandService
	history  HistoryService
	settings SettingsService
	limiter  *RateLimiter
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	server  *http.Server
	running bool
}

func NewServer(cfg Config, services Services, logger *slog.Logger) *Server {
	cfg.setDefaults()
	return &Server{
		cfg:      cfg,
		sessions: services.Sessions,
		devices:  services.Devices,
		commands: services.Commands,
		history:  services.History,
		settings: services.Settings,
		limiter:  NewRateLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow),
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(s.cfg.RequestTimeout))

		r.With(s.limiter.Middleware).Post("/session", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)

			r.Delete("/session", s.handleLogout)
			r.Put("/session/mode", s.handleSetMode)
			r.Put("/session/password", s.handleChangePassword)

			r.Get("/connection", s.handleGetConnection)
			r.Put("/connection", s.handleUpdateConnection)

			r.Get("/devices", s.handleListDevices)
			r.Route("/devices/{entityID}", func(r chi.Router) {
				r.Get("/", s.handleDeviceDetail)
				r.Post("/commands", s.handleCommand)
				r.Put("/override", s.handleSaveOverride)
				r.Get("/history", s.handleHistory)
				r.Get("/camera", s.handleCamera)
			})
		})
	})

	return r
}

func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.server = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      s.cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		s.logger.Info("HTTP server starting", "addr", s.cfg.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	s.running = true
	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
		if err := s.server.Close(); err != nil {
			return fmt.Errorf("closing server: %w", err)
		}
	}

	s.running = false
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

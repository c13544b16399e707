package config

import (
	telemetryHandler "SkiMonitor/internal/api/telemetry/handler"
	telemetryService "SkiMonitor/internal/api/telemetry/service"
	"SkiMonitor/internal/middleware"
	"SkiMonitor/internal/state"
	"context"
	"fmt"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"time"
)

const shutdownGrace = 5 * time.Second

type ServerOption func(*Server) error

type Server struct {
	engine        *fiber.App
	log           *logrus.Logger
	middleware    middleware.Middleware
	store         state.IStore
	coldThreshold float64
	handlers      []handler
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{
		coldThreshold: telemetryService.DefaultColdThreshold,
	}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.store == nil {
		return nil, fmt.Errorf("state store is required")
	}
	if server.middleware == nil {
		server.middleware = middleware.New(server.log, middleware.DefaultConfig())
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithMiddleware(cfg middleware.Config) ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log, cfg)
		return nil
	}
}

func WithStore(store state.IStore) ServerOption {
	return func(s *Server) error {
		s.store = store
		return nil
	}
}

func WithColdThreshold(celsius float64) ServerOption {
	return func(s *Server) error {
		s.coldThreshold = celsius
		return nil
	}
}

// RegisterHandler wires middleware and every route onto the engine. It must
// run once, before Run.
func (s *Server) RegisterHandler() {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())

	// Telemetry
	telemetryServices := telemetryService.NewTelemetryService(s.log, s.store, s.coldThreshold)
	telemetryHandlers := telemetryHandler.New(s.log, s.middleware, telemetryServices)

	s.setupHealthCheck()
	s.handlers = append(s.handlers, telemetryHandlers)

	for _, h := range s.handlers {
		h.Start(s.engine)
	}
}

func (s *Server) Run(addr string) error {
	s.log.Infof("Serving on %s", addr)

	if err := s.engine.Listen(addr); err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	return nil
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	return s.engine.ShutdownWithContext(ctx)
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/health", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message": "Server is Healthy!",
		})
	})
}

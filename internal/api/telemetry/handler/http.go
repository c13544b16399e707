package telemetryHandler

import (
	"SkiMonitor/internal/api/telemetry"
	telemetryService "SkiMonitor/internal/api/telemetry/service"
	"SkiMonitor/internal/middleware"
	"SkiMonitor/pkg/handlerUtil"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type TelemetryHandler struct {
	log              *logrus.Logger
	middleware       middleware.Middleware
	telemetryService telemetryService.ITelemetryService
}

func New(
	log *logrus.Logger,
	middleware middleware.Middleware,
	ts telemetryService.ITelemetryService,
) *TelemetryHandler {
	return &TelemetryHandler{
		log:              log,
		middleware:       middleware,
		telemetryService: ts,
	}
}

// Start mounts the dashboard routes at the root of srv and the JSON API
// under /api/v1.
func (h *TelemetryHandler) Start(srv fiber.Router) {
	srv.Get("/", h.Index)
	srv.Get("/data", h.GetData)

	api := srv.Group("/api/v1")
	api.Get("/status", h.middleware.NewRateLimiter, h.GetStatus)

	api.Use("/ws", func(ctx *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(ctx) {
			return ctx.Next()
		}
		errHandler := handlerUtil.New(h.log)
		return errHandler.Handle(ctx, h.middleware.GetRequestID(ctx), telemetry.ErrUpgradeRequired, ctx.Path(), "upgrade_websocket")
	})
	api.Get("/ws", websocket.New(h.handleStream))
}

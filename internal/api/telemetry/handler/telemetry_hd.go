package telemetryHandler

import (
	"SkiMonitor/internal/api/telemetry"
	contextPkg "SkiMonitor/pkg/context"
	"SkiMonitor/pkg/handlerUtil"
	"SkiMonitor/pkg/log"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"golang.org/x/net/context"
	"time"
)

const writeTimeout = 10 * time.Second

func (h *TelemetryHandler) Index(ctx *fiber.Ctx) error {
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	page := h.telemetryService.RenderIndex(c)

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		log.WithRequestID(c).WithFields(log.Fields{
			"path": ctx.Path(),
		}).Debug("Rendered index page")
		ctx.Type("html", "utf-8")
		return ctx.Status(fiber.StatusOK).SendString(page)
	}
}

func (h *TelemetryHandler) GetData(ctx *fiber.Ctx) error {
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	data := h.telemetryService.GetData(c)

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		log.WithRequestID(c).WithFields(log.Fields{
			"path": ctx.Path(),
		}).Debug("Served telemetry data")
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, data)
	}
}

func (h *TelemetryHandler) GetStatus(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	status, err := h.telemetryService.GetStatus(c)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_status")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		log.WithRequestID(c).WithFields(log.Fields{
			"path":   ctx.Path(),
			"frames": status.Frames,
			"cold":   status.Cold,
		}).Debug("Served monitor status")
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, status)
	}
}

func (h *TelemetryHandler) handleStream(c *websocket.Conn) {
	h.log.Info("Telemetry WebSocket client connected")
	defer h.log.Info("Telemetry WebSocket client disconnected")

	feed, unsubscribe := h.telemetryService.Subscribe()
	defer unsubscribe()

	// Inbound frames are discarded; a read error means the peer is gone.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.log.Errorf("Telemetry WebSocket error: %v", err)
				}
				return
			}
		}
	}()

	if err := h.writeData(c, h.telemetryService.GetData(context.Background())); err != nil {
		h.log.Errorf("Error writing initial telemetry: %v", err)
		return
	}

	for {
		select {
		case <-closed:
			return
		case snapshot, ok := <-feed:
			if !ok {
				return
			}
			if err := h.writeData(c, telemetry.ToData(snapshot)); err != nil {
				h.log.Errorf("Error writing telemetry: %v", err)
				return
			}
		}
	}
}

func (h *TelemetryHandler) writeData(c *websocket.Conn, data telemetry.DataResponse) error {
	if err := c.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}

	if err := c.WriteJSON(data); err != nil {
		return err
	}

	return c.SetWriteDeadline(time.Time{})
}

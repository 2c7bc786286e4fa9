package handler

import (
	"bufio"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/agentgauge/agentgauge/internal/middleware"
	"github.com/agentgauge/agentgauge/internal/service"
)

// EventsHandler handles Server-Sent Events endpoints
type EventsHandler struct {
	realtimeService *service.RealtimeService
	logger          *zap.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(realtimeService *service.RealtimeService, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{
		realtimeService: realtimeService,
		logger:          logger,
	}
}

// StreamEvents handles GET /v1/events/stream. Pushes ingestion, capture
// and eval-completion events to the client as they happen.
func (h *EventsHandler) StreamEvents(c *fiber.Ctx) error {
	// Set SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")
	c.Set("X-Accel-Buffering", "no") // Disable nginx buffering

	ctx := c.Context()
	sub := h.realtimeService.Subscribe(ctx)

	h.logger.Info("SSE client connected", zap.String("subscriber_id", sub.ID))

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		// Send initial connection event
		fmt.Fprintf(w, "event: connected\n")
		fmt.Fprintf(w, "data: {\"subscriberId\":\"%s\"}\n\n", sub.ID)
		w.Flush()

		// Send heartbeat every 30 seconds
		heartbeat := time.NewTicker(30 * time.Second)
		defer heartbeat.Stop()

		for {
			select {
			case event, ok := <-sub.Channel:
				if !ok {
					return
				}

				data, err := service.FormatSSE(event)
				if err != nil {
					h.logger.Error("failed to format SSE event", zap.Error(err))
					continue
				}

				fmt.Fprintf(w, "event: %s\n", event.Type)
				w.Write(data)
				w.Flush()

			case <-heartbeat.C:
				// Keep the connection alive through proxies.
				fmt.Fprintf(w, ": heartbeat\n\n")
				w.Flush()

			case <-sub.Done:
				return

			case <-ctx.Done():
				h.realtimeService.Unsubscribe(sub.ID)
				return
			}
		}
	}))

	return nil
}

// GetSubscribers handles GET /v1/events/subscribers
func (h *EventsHandler) GetSubscribers(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"count": h.realtimeService.GetSubscriberCount(),
	})
}

// RegisterRoutes registers event routes
func (h *EventsHandler) RegisterRoutes(app *fiber.App, authMiddleware *middleware.AuthMiddleware) {
	v1 := app.Group("/v1", authMiddleware.RequireAuth())

	v1.Get("/events/stream", h.StreamEvents)
	v1.Get("/events/subscribers", h.GetSubscribers)
}

package handler

import (
	"context"
	"io"
	"time"

	"caixapdv/internal/infra"
	"caixapdv/internal/middleware"
	"caixapdv/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const streamHeartbeat = 25 * time.Second

// EventSubscriber is satisfied by *infra.EventBus.
type EventSubscriber interface {
	Subscribe(ctx context.Context, storeID string) (<-chan infra.StoreEvent, error)
}

// StreamHandler pushes the store's register summary over Server-Sent Events:
// once on connect and again after every store event.
type StreamHandler struct {
	svc    service.RegisterService
	events EventSubscriber
}

func NewStreamHandler(svc service.RegisterService, events EventSubscriber) *StreamHandler {
	return &StreamHandler{svc: svc, events: events}
}

// Stream godoc
// @Summary Resumo do caixa em tempo real (SSE)
// @Tags caixa
// @Produce text/event-stream
// @Security BearerAuth
// @Param storeID path string true "Loja"
// @Router /v1/stores/{storeID}/register/stream [get]
func (h *StreamHandler) Stream(c *gin.Context) {
	storeID := c.Param("storeID")
	ctx := c.Request.Context()

	events, err := h.events.Subscribe(ctx, storeID)
	if err != nil {
		respondError(c, err)
		return
	}

	first, err := h.svc.Active(ctx, storeID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("summary", first)
	c.Writer.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			sum, err := h.svc.Active(ctx, storeID)
			if err != nil {
				log.Warn().Err(err).Str("store_id", storeID).
					Str("request_id", c.GetString(middleware.RequestIDKey)).
					Msg("stream: summary recompute failed")
				return true
			}
			c.SSEvent(ev.Type, sum)
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		}
	})
}

package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/neurocanvas-backend/internal/http/response"
	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
	"github.com/yungbote/neurocanvas-backend/internal/realtime"
	"github.com/yungbote/neurocanvas-backend/internal/services"
)

type RealtimeHandler struct {
	log      *logger.Logger
	hub      *realtime.SSEHub
	canvases services.CanvasService
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub, canvases services.CanvasService) *RealtimeHandler {
	return &RealtimeHandler{log: log.With("handler", "RealtimeHandler"), hub: hub, canvases: canvases}
}

// GET /api/canvases/:id/events
func (h *RealtimeHandler) CanvasEvents(c *gin.Context) {
	id, ok := pathID(c, "invalid_canvas_id")
	if !ok {
		return
	}
	if _, err := h.canvases.Get(c.Request.Context(), id); err != nil {
		response.RespondAPIError(c, err)
		return
	}

	client := h.hub.NewSSEClient()
	h.hub.AddChannel(client, realtime.CanvasChannel(id))
	h.log.Debug("canvas event stream open", "canvas_id", id, "client_id", client.ID)

	h.hub.ServeHTTP(c.Writer, c.Request, client)

	h.hub.CloseClient(client)
	h.log.Debug("canvas event stream closed", "canvas_id", id, "client_id", client.ID)
}

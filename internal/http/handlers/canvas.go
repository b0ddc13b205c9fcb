package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/neurocanvas-backend/internal/http/response"
	"github.com/yungbote/neurocanvas-backend/internal/services"
)

type CanvasHandler struct {
	svc services.CanvasService
}

func NewCanvasHandler(svc services.CanvasService) *CanvasHandler {
	return &CanvasHandler{svc: svc}
}

type createCanvasRequest struct {
	Topic  string `json:"topic"`
	Domain string `json:"domain"`
}

// POST /api/canvases
func (h *CanvasHandler) CreateCanvas(c *gin.Context) {
	var req createCanvasRequest
	if !bindJSON(c, &req) {
		return
	}
	snap, err := h.svc.Create(c.Request.Context(), req.Topic, req.Domain)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, snap)
}

// GET /api/canvases/:id
func (h *CanvasHandler) GetCanvas(c *gin.Context) {
	id, ok := pathID(c, "invalid_canvas_id")
	if !ok {
		return
	}
	snap, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, snap)
}

// GET /api/canvases?status=active|archived|all
func (h *CanvasHandler) ListCanvases(c *gin.Context) {
	canvases, err := h.svc.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"canvases": canvases})
}

type promptRequest struct {
	Prompt string `json:"prompt"`
}

// POST /api/canvases/:id/expand
func (h *CanvasHandler) ExpandCanvas(c *gin.Context) {
	id, ok := pathID(c, "invalid_canvas_id")
	if !ok {
		return
	}
	var req promptRequest
	if !bindJSON(c, &req) {
		return
	}
	snap, err := h.svc.Expand(c.Request.Context(), id, req.Prompt)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, snap)
}

type newTopicRequest struct {
	NewTopic string `json:"new_topic"`
	Domain   string `json:"domain"`
}

// POST /api/canvases/:id/new
func (h *CanvasHandler) NewTopic(c *gin.Context) {
	id, ok := pathID(c, "invalid_canvas_id")
	if !ok {
		return
	}
	var req newTopicRequest
	if !bindJSON(c, &req) {
		return
	}
	snap, err := h.svc.NewTopic(c.Request.Context(), id, req.NewTopic, req.Domain)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, snap)
}

// DELETE /api/canvases/:id
func (h *CanvasHandler) DeleteCanvas(c *gin.Context) {
	id, ok := pathID(c, "invalid_canvas_id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": id})
}

type interactRequest struct {
	CanvasID string `json:"canvas_id"`
	Prompt   string `json:"prompt"`
}

// POST /api/interact
func (h *CanvasHandler) Interact(c *gin.Context) {
	var req interactRequest
	if !bindJSON(c, &req) {
		return
	}
	var canvasID *uuid.UUID
	if raw := strings.TrimSpace(req.CanvasID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_canvas_id", fmt.Errorf("invalid canvas_id %q", raw))
			return
		}
		canvasID = &id
	}
	res, err := h.svc.Interact(c.Request.Context(), canvasID, req.Prompt)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, res)
}

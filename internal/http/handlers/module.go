package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/neurocanvas-backend/internal/data/store"
	"github.com/yungbote/neurocanvas-backend/internal/http/response"
	"github.com/yungbote/neurocanvas-backend/internal/services"
)

type ModuleHandler struct {
	svc services.ModuleService
}

func NewModuleHandler(svc services.ModuleService) *ModuleHandler {
	return &ModuleHandler{svc: svc}
}

// POST /api/modules/:id/edit
func (h *ModuleHandler) EditModule(c *gin.Context) {
	id, ok := pathID(c, "invalid_module_id")
	if !ok {
		return
	}
	var req promptRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.svc.Edit(c.Request.Context(), id, req.Prompt)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// GET /api/modules/:id/versions
func (h *ModuleHandler) ListVersions(c *gin.Context) {
	id, ok := pathID(c, "invalid_module_id")
	if !ok {
		return
	}
	versions, err := h.svc.Versions(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"versions": versions})
}

// POST /api/modules/:id/refresh
func (h *ModuleHandler) RefreshModule(c *gin.Context) {
	id, ok := pathID(c, "invalid_module_id")
	if !ok {
		return
	}
	res, err := h.svc.Refresh(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// DELETE /api/modules/:id
func (h *ModuleHandler) DeleteModule(c *gin.Context) {
	id, ok := pathID(c, "invalid_module_id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": id})
}

type reorderRequest struct {
	ModuleOrders []struct {
		ID         string `json:"id"`
		OrderIndex *int   `json:"order_index"`
	} `json:"module_orders"`
}

// PUT /api/modules/reorder
func (h *ModuleHandler) ReorderModules(c *gin.Context) {
	var req reorderRequest
	if !bindJSON(c, &req) {
		return
	}
	orders := make([]store.OrderAssignment, 0, len(req.ModuleOrders))
	for i, o := range req.ModuleOrders {
		id, err := uuid.Parse(o.ID)
		if err != nil || o.OrderIndex == nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_module_orders",
				fmt.Errorf("module_orders[%d] needs a valid id and order_index", i))
			return
		}
		orders = append(orders, store.OrderAssignment{ModuleID: id, OrderIndex: *o.OrderIndex})
	}
	if err := h.svc.Reorder(c.Request.Context(), orders); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"updated": len(orders)})
}

type resizeRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// PUT /api/modules/:id/size
func (h *ModuleHandler) ResizeModule(c *gin.Context) {
	id, ok := pathID(c, "invalid_module_id")
	if !ok {
		return
	}
	var req resizeRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.svc.Resize(c.Request.Context(), id, req.Width, req.Height); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"id": id, "width": req.Width, "height": req.Height})
}

// GET /api/async/status
func (h *ModuleHandler) MediaStatus(c *gin.Context) {
	snap, err := h.svc.MediaStatus(c.Request.Context())
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, snap)
}

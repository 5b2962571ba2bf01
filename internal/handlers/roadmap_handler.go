package handlers

import (
	"net/http"
	"strings"

	"obraflow/internal/services"

	"github.com/gin-gonic/gin"
)

// RoadmapHandler 待办动作的读取与状态流转
type RoadmapHandler struct {
	service *services.RoadmapService
}

func NewRoadmapHandler(service *services.RoadmapService) *RoadmapHandler {
	return &RoadmapHandler{service: service}
}

// ListPending 当前用户的待办动作
func (h *RoadmapHandler) ListPending(c *gin.Context) {
	orgID, userID := identity(c)
	actions, err := h.service.ListPending(c.Request.Context(), orgID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list roadmap actions", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, actions)
}

// UpdateStatus 状态流转
func (h *RoadmapHandler) UpdateStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}
	orgID, _ := identity(c)
	action, err := h.service.UpdateStatus(c.Request.Context(), orgID, c.Param("id"), req.Status)
	if err != nil {
		status := http.StatusBadRequest
		if err.Error() == "roadmap action not found" {
			status = http.StatusNotFound
		}
		if strings.HasPrefix(err.Error(), "invalid status transition") {
			status = http.StatusConflict
		}
		c.JSON(status, ErrorResponse{Error: "Failed to update roadmap action", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, action)
}

// RegisterRoadmapRoutes 注册路由
func RegisterRoadmapRoutes(r *gin.RouterGroup, handler *RoadmapHandler) {
	roadmap := r.Group("/roadmap")
	{
		roadmap.GET("", handler.ListPending)
		roadmap.PUT(":id/status", handler.UpdateStatus)
	}
}

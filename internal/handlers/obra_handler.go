package handlers

import (
	"net/http"

	"obraflow/internal/services"

	"github.com/gin-gonic/gin"
)

// ObraHandler 施工项目 CRUD 与清单读取
type ObraHandler struct {
	service *services.ObraService
}

func NewObraHandler(service *services.ObraService) *ObraHandler {
	return &ObraHandler{service: service}
}

func (h *ObraHandler) CreateObra(c *gin.Context) {
	var req services.ObraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}
	orgID, userID := identity(c)
	obra, err := h.service.CreateObra(c.Request.Context(), orgID, userID, &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to create obra", Message: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, obra)
}

func (h *ObraHandler) ListObras(c *gin.Context) {
	orgID, _ := identity(c)
	obras, err := h.service.ListObras(c.Request.Context(), orgID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list obras", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, obras)
}

func (h *ObraHandler) GetObra(c *gin.Context) {
	orgID, _ := identity(c)
	obra, err := h.service.GetObra(c.Request.Context(), orgID, c.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if err.Error() == "obra not found" {
			status = http.StatusNotFound
		}
		c.JSON(status, ErrorResponse{Error: "Failed to get obra", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, obra)
}

// ListChecklists 返回某项目的清单（含条目）
func (h *ObraHandler) ListChecklists(c *gin.Context) {
	orgID, _ := identity(c)
	checklists, err := h.service.ListChecklists(c.Request.Context(), orgID, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list checklists", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, checklists)
}

// RegisterObraRoutes 注册路由
func RegisterObraRoutes(r *gin.RouterGroup, handler *ObraHandler) {
	obras := r.Group("/obras")
	{
		obras.GET("", handler.ListObras)
		obras.POST("", handler.CreateObra)
		obras.GET(":id", handler.GetObra)
		obras.GET(":id/checklists", handler.ListChecklists)
	}
}

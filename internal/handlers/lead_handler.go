package handlers

import (
	"net/http"

	"obraflow/internal/services"

	"github.com/gin-gonic/gin"
)

// LeadHandler 商机 CRUD
type LeadHandler struct {
	service *services.LeadService
}

func NewLeadHandler(service *services.LeadService) *LeadHandler {
	return &LeadHandler{service: service}
}

// CreateLead 创建商机（创建成功后自动化在服务层触发）
func (h *LeadHandler) CreateLead(c *gin.Context) {
	var req services.LeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}
	orgID, userID := identity(c)
	lead, err := h.service.CreateLead(c.Request.Context(), orgID, userID, &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to create lead", Message: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, lead)
}

func (h *LeadHandler) ListLeads(c *gin.Context) {
	orgID, _ := identity(c)
	leads, err := h.service.ListLeads(c.Request.Context(), orgID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list leads", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, leads)
}

func (h *LeadHandler) GetLead(c *gin.Context) {
	orgID, _ := identity(c)
	lead, err := h.service.GetLead(c.Request.Context(), orgID, c.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if err.Error() == "lead not found" {
			status = http.StatusNotFound
		}
		c.JSON(status, ErrorResponse{Error: "Failed to get lead", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, lead)
}

// UpdateLeadStage 更新阶段
func (h *LeadHandler) UpdateLeadStage(c *gin.Context) {
	var req struct {
		Stage string `json:"stage" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}
	orgID, _ := identity(c)
	if err := h.service.UpdateLeadStage(c.Request.Context(), orgID, c.Param("id"), req.Stage); err != nil {
		status := http.StatusBadRequest
		if err.Error() == "lead not found" {
			status = http.StatusNotFound
		}
		c.JSON(status, ErrorResponse{Error: "Failed to update lead", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "updated"})
}

// RegisterLeadRoutes 注册路由
func RegisterLeadRoutes(r *gin.RouterGroup, handler *LeadHandler) {
	leads := r.Group("/leads")
	{
		leads.GET("", handler.ListLeads)
		leads.POST("", handler.CreateLead)
		leads.GET(":id", handler.GetLead)
		leads.PUT(":id/stage", handler.UpdateLeadStage)
	}
}

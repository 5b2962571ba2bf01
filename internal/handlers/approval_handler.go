package handlers

import (
	"net/http"

	"obraflow/internal/services"

	"github.com/gin-gonic/gin"
)

// ApprovalHandler 客户审批决策入口（引擎的触发边界）
type ApprovalHandler struct {
	service *services.ApprovalService
}

func NewApprovalHandler(service *services.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{service: service}
}

func (h *ApprovalHandler) CreateApproval(c *gin.Context) {
	var req services.ApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}
	orgID, _ := identity(c)
	approval, err := h.service.CreateApproval(c.Request.Context(), orgID, &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to create approval", Message: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, approval)
}

// Decide 记录审批决策；reject 在服务层触发自动化
func (h *ApprovalHandler) Decide(c *gin.Context) {
	var req services.ApprovalDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}
	orgID, userID := identity(c)
	approval, err := h.service.Decide(c.Request.Context(), orgID, userID, c.Param("id"), &req)
	if err != nil {
		status := http.StatusBadRequest
		if err.Error() == "approval not found" {
			status = http.StatusNotFound
		}
		c.JSON(status, ErrorResponse{Error: "Failed to record decision", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, approval)
}

func (h *ApprovalHandler) ListApprovals(c *gin.Context) {
	orgID, _ := identity(c)
	approvals, err := h.service.ListApprovals(c.Request.Context(), orgID, c.Query("obra_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list approvals", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, approvals)
}

// RegisterApprovalRoutes 注册路由
func RegisterApprovalRoutes(r *gin.RouterGroup, handler *ApprovalHandler) {
	approvals := r.Group("/approvals")
	{
		approvals.GET("", handler.ListApprovals)
		approvals.POST("", handler.CreateApproval)
		approvals.POST(":id/decision", handler.Decide)
	}
}

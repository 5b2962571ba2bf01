package handlers

import (
	"net/http"
	"strconv"

	"obraflow/internal/middleware"
	"obraflow/internal/services"

	"github.com/gin-gonic/gin"
)

// AutomationHandler 管理自动化规则、预览与执行
type AutomationHandler struct {
	service *services.AutomationService
}

func NewAutomationHandler(service *services.AutomationService) *AutomationHandler {
	return &AutomationHandler{service: service}
}

// ListRules 获取本租户的规则列表
func (h *AutomationHandler) ListRules(c *gin.Context) {
	orgID, _ := identity(c)
	rules, err := h.service.ListRules(c.Request.Context(), orgID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list rules", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, rules)
}

// CreateRule 创建规则
func (h *AutomationHandler) CreateRule(c *gin.Context) {
	var req services.AutomationRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}
	req.OrgID, req.CreatedBy = identity(c)

	rule, err := h.service.CreateRule(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to create rule", Message: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// DeleteRule 删除规则
func (h *AutomationHandler) DeleteRule(c *gin.Context) {
	orgID, _ := identity(c)
	if err := h.service.DeleteRule(c.Request.Context(), orgID, c.Param("id")); err != nil {
		status := http.StatusInternalServerError
		if err.Error() == "rule not found" {
			status = http.StatusNotFound
		}
		c.JSON(status, ErrorResponse{Error: "Failed to delete rule", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "deleted"})
}

// ListTemplates 返回模板注册表
func (h *AutomationHandler) ListTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, services.ListTemplates())
}

// automationRunRequest is the body for both preview and run.
type automationRunRequest struct {
	Trigger           string                 `json:"trigger" binding:"required"`
	TriggerEntityType string                 `json:"trigger_entity_type"`
	TriggerEntityID   string                 `json:"trigger_entity_id" binding:"required"`
	Payload           map[string]interface{} `json:"payload"`
	Confirm           bool                   `json:"confirm"`
}

func (h *AutomationHandler) triggerContext(c *gin.Context, req automationRunRequest) services.TriggerContext {
	orgID, userID := identity(c)
	return services.TriggerContext{
		OrgID:             orgID,
		UserID:            userID,
		Trigger:           services.Trigger(req.Trigger),
		TriggerEntityType: req.TriggerEntityType,
		TriggerEntityID:   req.TriggerEntityID,
		Payload:           req.Payload,
	}
}

// Preview 只读展开预览
func (h *AutomationHandler) Preview(c *gin.Context) {
	var req automationRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}
	preview, err := h.service.Preview(c.Request.Context(), h.triggerContext(c, req))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to build preview", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, preview)
}

// Run 手动执行一次自动化（confirm=true 通过复核门）
func (h *AutomationHandler) Run(c *gin.Context) {
	var req automationRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}
	result := h.service.Run(c.Request.Context(), h.triggerContext(c, req), services.RunOptions{
		Confirm: req.Confirm,
		Source:  "manual",
	})
	status := http.StatusOK
	if result.Status == services.RunStatusError && result.RunID == "" {
		status = http.StatusInternalServerError
	}
	c.JSON(status, result)
}

// ListRuns 审计列表
func (h *AutomationHandler) ListRuns(c *gin.Context) {
	orgID, _ := identity(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := h.service.ListRuns(c.Request.Context(), orgID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list runs", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, runs)
}

// RegisterAutomationRoutes 注册路由；规则管理仅限 admin
func RegisterAutomationRoutes(r *gin.RouterGroup, handler *AutomationHandler) {
	auto := r.Group("/automation")
	{
		auto.GET("/templates", handler.ListTemplates)
		auto.POST("/preview", handler.Preview)
		auto.POST("/run", handler.Run)
		auto.GET("/runs", handler.ListRuns)

		rules := auto.Group("/rules")
		rules.Use(middleware.RequireRole("admin"))
		{
			rules.GET("", handler.ListRules)
			rules.POST("", handler.CreateRule)
			rules.DELETE(":id", handler.DeleteRule)
		}
	}
}

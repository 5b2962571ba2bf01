package handlers

import (
	"github.com/gin-gonic/gin"

	"obraflow/internal/middleware"
)

// ErrorResponse 错误响应结构
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

// SuccessResponse 成功响应结构
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// identity pulls the authenticated tenant context injected by the auth
// middleware. Handlers never read tenant ids from the request body.
func identity(c *gin.Context) (orgID, userID string) {
	return c.GetString(middleware.CtxOrgID), c.GetString(middleware.CtxUserID)
}

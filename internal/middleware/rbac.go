// Package middleware 中间件
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/fulinvn/hr-auth/internal/service"
	"github.com/fulinvn/hr-auth/pkg/response"
)

// RequireManager 主管身份检查中间件
// 依赖 JWTAuth 先写入上下文
func RequireManager() gin.HandlerFunc {
	return func(c *gin.Context) {
		isManager, exists := c.Get("is_manager")
		if !exists {
			response.Error(c, response.CodeTokenInvalid)
			c.Abort()
			return
		}

		if v, ok := isManager.(bool); !ok || !v {
			response.Error(c, response.CodeInsufficientPrivileges)
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequirePermissions 权限检查中间件
// 要求令牌权限集覆盖全部指定权限
func RequirePermissions(required ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		granted, exists := c.Get("permissions")
		if !exists {
			response.Error(c, response.CodeTokenInvalid)
			c.Abort()
			return
		}

		perms, ok := granted.([]string)
		if !ok || !service.HasAllPermissions(perms, required) {
			response.Error(c, response.CodeInsufficientPermissions)
			c.Abort()
			return
		}

		c.Next()
	}
}

package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fulinvn/hr-auth/internal/service"
	"github.com/fulinvn/hr-auth/pkg/response"
)

// JWTAuth 访问令牌认证中间件
// 校验顺序：黑名单 -> 签名与过期 -> 令牌类型，全部在会话管理器内完成
func JWTAuth(sessions service.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			response.Error(c, response.CodeTokenMissing)
			c.Abort()
			return
		}

		claims, err := sessions.Verify(c.Request.Context(), tokenString, service.TokenTypeAccess)
		if err != nil {
			switch err {
			case service.ErrTokenExpired:
				response.ErrorWithMsg(c, response.CodeTokenInvalid, "Token has expired")
			case service.ErrTokenBlacklisted:
				response.ErrorWithMsg(c, response.CodeTokenInvalid, "Token has been revoked")
			default:
				response.Error(c, response.CodeTokenInvalid)
			}
			c.Abort()
			return
		}

		setIdentity(c, claims)
		c.Next()
	}
}

// OptionalJWTAuth 可选认证中间件
// 令牌缺失或无效时以匿名身份继续
func OptionalJWTAuth(sessions service.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}

		claims, err := sessions.Verify(c.Request.Context(), tokenString, service.TokenTypeAccess)
		if err == nil {
			setIdentity(c, claims)
		}

		c.Next()
	}
}

// bearerToken 从 Authorization 头提取 Bearer 令牌
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// setIdentity 将令牌声明写入请求上下文
func setIdentity(c *gin.Context, claims *service.TokenClaims) {
	c.Set("claims", claims)
	c.Set("username", claims.Username)
	c.Set("user_id", claims.UserID)
	c.Set("session_id", claims.SessionID)
	c.Set("department", claims.Department)
	c.Set("is_manager", claims.IsManager)
	c.Set("permissions", claims.Permissions)
}

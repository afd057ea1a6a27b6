// Package handler HTTP 处理器
package handler

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fulinvn/hr-auth/internal/service"
	"github.com/fulinvn/hr-auth/pkg/response"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	auth     service.AuthService
	sessions service.SessionManager
	display  *time.Location // 展示用时区，令牌计算一律 UTC
	logger   *zap.Logger
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(auth service.AuthService, sessions service.SessionManager, display *time.Location, logger *zap.Logger) *AuthHandler {
	if display == nil {
		display = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		auth:     auth,
		sessions: sessions,
		display:  display,
		logger:   logger,
	}
}

// LoginRequest 登入请求
type LoginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
	Server     string `json:"server"` // 可选，覆盖默认目录服务器
	Domain     string `json:"domain"` // 可选，覆盖默认网域
}

// RefreshRequest 刷新请求
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// clientMeta 提取客户端元信息
func clientMeta(c *gin.Context) service.ClientMeta {
	return service.ClientMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// formatTime 按展示时区格式化时间
func (h *AuthHandler) formatTime(t time.Time) string {
	return t.In(h.display).Format("2006-01-02 15:04:05")
}

// tokenPayload 令牌对的响应体
func (h *AuthHandler) tokenPayload(pair *service.TokenPair) gin.H {
	return gin.H{
		"access_token":       pair.AccessToken,
		"refresh_token":      pair.RefreshToken,
		"token_type":         pair.TokenType,
		"expires_in":         pair.ExpiresIn,
		"access_expires_at":  h.formatTime(pair.AccessExpiresAt),
		"refresh_expires_at": h.formatTime(pair.RefreshExpiresAt),
		"session_id":         pair.SessionID,
	}
}

// Login 目录认证登入
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, response.CodeInvalidRequestFormat)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		response.Error(c, response.CodeMissingCredentials)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Username:   req.Username,
		Password:   req.Password,
		RememberMe: req.RememberMe,
		Server:     req.Server,
		Domain:     req.Domain,
		Meta:       clientMeta(c),
	})
	if err != nil {
		switch err {
		case service.ErrAuthenticationFailed:
			response.Error(c, response.CodeAuthFailed)
		case service.ErrDirectoryUnavailable:
			// 对外不区分目录故障与凭据错误，细节只进日志
			h.logger.Error("目录服务不可用", zap.String("username", req.Username))
			response.Error(c, response.CodeAuthFailed)
		case service.ErrTooManyAttempts:
			response.Error(c, response.CodeTooManyAttempts)
		default:
			h.logger.Error("登入流程错误", zap.String("username", req.Username), zap.Error(err))
			response.Error(c, response.CodeLoginError)
		}
		return
	}

	response.Success(c, "Login successful", gin.H{
		"user":        result.User,
		"tokens":      h.tokenPayload(result.Tokens),
		"auth_format": result.AuthFormat,
		"timing":      result.Timing,
	})
}

// Refresh 刷新令牌兑换
// POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, response.CodeInvalidRequestFormat)
		return
	}
	if req.RefreshToken == "" {
		response.Error(c, response.CodeMissingRefreshToken)
		return
	}

	pair, err := h.sessions.Refresh(c.Request.Context(), req.RefreshToken, clientMeta(c))
	if err != nil {
		switch err {
		case service.ErrInvalidToken, service.ErrTokenExpired, service.ErrWrongTokenType,
			service.ErrTokenBlacklisted, service.ErrRefreshTokenUsed:
			response.Error(c, response.CodeInvalidRefreshToken)
		default:
			h.logger.Error("刷新流程错误", zap.Error(err))
			response.Error(c, response.CodeRefreshError)
		}
		return
	}

	response.Success(c, "Token refreshed successfully", gin.H{
		"tokens": h.tokenPayload(pair),
	})
}

// Logout 登出
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		response.Error(c, response.CodeTokenMissing)
		return
	}

	err := h.sessions.Logout(c.Request.Context(), parts[1])
	if err != nil {
		switch err {
		case service.ErrNoActiveSession:
			response.Error(c, response.CodeNoActiveSession)
		case service.ErrInvalidToken, service.ErrWrongTokenType:
			response.Error(c, response.CodeLogoutFailed)
		default:
			h.logger.Error("登出流程错误", zap.Error(err))
			response.Error(c, response.CodeLogoutError)
		}
		return
	}

	response.Success(c, "Logout successful", gin.H{
		"logout_time": h.formatTime(time.Now().UTC()),
	})
}

// Me 当前用户信息
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	value, exists := c.Get("claims")
	if !exists {
		response.Error(c, response.CodeTokenInvalid)
		return
	}
	claims, ok := value.(*service.TokenClaims)
	if !ok {
		response.Error(c, response.CodeTokenInvalid)
		return
	}

	response.Success(c, "User info retrieved", gin.H{
		"username":    claims.Username,
		"user_id":     claims.UserID,
		"department":  claims.Department,
		"is_manager":  claims.IsManager,
		"permissions": claims.Permissions,
		"session_id":  claims.SessionID,
	})
}

// Sessions 当前用户的活跃会话列表
// GET /api/v1/auth/sessions
func (h *AuthHandler) Sessions(c *gin.Context) {
	username := c.GetString("username")
	if username == "" {
		response.Error(c, response.CodeTokenInvalid)
		return
	}

	sessions, err := h.sessions.ActiveSessions(c.Request.Context(), username)
	if err != nil {
		h.logger.Error("查询活跃会话失败", zap.String("username", username), zap.Error(err))
		response.Error(c, response.CodeServerError)
		return
	}

	currentSessionID := c.GetString("session_id")
	items := make([]gin.H, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, gin.H{
			"session_id":         s.SessionID,
			"created_at":         h.formatTime(s.CreatedAt),
			"last_accessed_at":   h.formatTime(s.LastAccessedAt),
			"access_expires_at":  h.formatTime(s.AccessExpiresAt),
			"refresh_expires_at": h.formatTime(s.RefreshExpiresAt),
			"ip_address":         s.IPAddress,
			"device_info":        s.DeviceInfo,
			"is_current":         s.SessionID == currentSessionID,
		})
	}

	response.Success(c, "Active sessions retrieved", gin.H{
		"sessions": items,
		"count":    len(items),
	})
}

// SecurityStats 安全概览
// GET /api/v1/admin/security-stats
func (h *AuthHandler) SecurityStats(c *gin.Context) {
	stats, err := h.sessions.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("安全统计失败", zap.Error(err))
		response.Error(c, response.CodeServerError)
		return
	}

	response.Success(c, "Security statistics retrieved", stats)
}

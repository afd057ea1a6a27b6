package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 标准响应结构
// 字段顺序：success -> message -> error_code -> data
type Response struct {
	Success   bool        `json:"success"`              // 请求是否成功
	Message   string      `json:"message"`              // 响应消息
	ErrorCode string      `json:"error_code,omitempty"` // 机器可读的错误码
	Data      interface{} `json:"data,omitempty"`       // 响应数据
}

// 业务错误码
const (
	// 请求格式错误
	CodeInvalidRequestFormat = "INVALID_REQUEST_FORMAT" // 请求必须为 JSON
	CodeMissingCredentials   = "MISSING_CREDENTIALS"    // 缺少用户名或密码
	CodeMissingRefreshToken  = "MISSING_REFRESH_TOKEN"  // 缺少刷新令牌

	// 认证错误
	CodeAuthFailed          = "AUTH_FAILED"           // 目录认证失败
	CodeInvalidRefreshToken = "INVALID_REFRESH_TOKEN" // 刷新令牌无效或已使用
	CodeTokenMissing        = "TOKEN_MISSING"         // 未提供认证令牌
	CodeTokenInvalid        = "TOKEN_INVALID"         // 令牌无效、过期或已吊销
	CodeTooManyAttempts     = "TOO_MANY_ATTEMPTS"     // 短时间内失败次数过多

	// 授权错误
	CodeInsufficientPrivileges  = "INSUFFICIENT_PRIVILEGES"  // 需要主管权限
	CodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS" // 缺少所需权限

	// 登出错误
	CodeLogoutFailed    = "LOGOUT_FAILED"     // 登出处理失败
	CodeNoActiveSession = "NO_ACTIVE_SESSION" // 没有活跃会话

	// 服务器错误
	CodeLoginError   = "LOGIN_ERROR"   // 登入流程内部错误
	CodeRefreshError = "REFRESH_ERROR" // 刷新流程内部错误
	CodeLogoutError  = "LOGOUT_ERROR"  // 登出流程内部错误
	CodeServerError  = "SERVER_ERROR"  // 服务器内部错误
)

// 错误码对应的消息
var codeMessages = map[string]string{
	CodeInvalidRequestFormat:    "Request must be JSON",
	CodeMissingCredentials:      "Username and password are required",
	CodeMissingRefreshToken:     "Refresh token is required",
	CodeAuthFailed:              "Authentication failed",
	CodeInvalidRefreshToken:     "Invalid or expired refresh token",
	CodeTokenMissing:            "Missing authorization token",
	CodeTokenInvalid:            "Invalid or expired token",
	CodeTooManyAttempts:         "Too many failed login attempts",
	CodeInsufficientPrivileges:  "Admin privileges required",
	CodeInsufficientPermissions: "Insufficient permissions",
	CodeLogoutFailed:            "Logout failed",
	CodeNoActiveSession:         "No active session found",
	CodeLoginError:              "Internal server error",
	CodeRefreshError:            "Internal server error",
	CodeLogoutError:             "Internal server error",
	CodeServerError:             "Internal server error",
}

// Success 成功响应
func Success(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code string) {
	msg, ok := codeMessages[code]
	if !ok {
		msg = "Unknown error"
	}
	c.JSON(codeToHTTPStatus(code), Response{
		Success:   false,
		Message:   msg,
		ErrorCode: code,
	})
}

// ErrorWithMsg 错误响应（自定义消息）
func ErrorWithMsg(c *gin.Context, code, msg string) {
	c.JSON(codeToHTTPStatus(code), Response{
		Success:   false,
		Message:   msg,
		ErrorCode: code,
	})
}

// codeToHTTPStatus 业务错误码转 HTTP 状态码
func codeToHTTPStatus(code string) int {
	switch code {
	case CodeInvalidRequestFormat, CodeMissingCredentials, CodeMissingRefreshToken, CodeNoActiveSession:
		return http.StatusBadRequest
	case CodeAuthFailed, CodeInvalidRefreshToken, CodeTokenMissing, CodeTokenInvalid:
		return http.StatusUnauthorized
	case CodeInsufficientPrivileges, CodeInsufficientPermissions:
		return http.StatusForbidden
	case CodeTooManyAttempts:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Package model 数据模型定义
package model

import (
	"time"
)

// 会话登出原因
const (
	LogoutReasonManual       = "manual"        // 用户主动登出
	LogoutReasonExpired      = "expired"       // 刷新令牌过期
	LogoutReasonTokenRefresh = "token_refresh" // 刷新令牌轮换
	LogoutReasonForceLogout  = "force_logout"  // 管理员强制登出
)

// 令牌吊销原因
const (
	BlacklistReasonLogout  = "logout"
	BlacklistReasonRefresh = "refresh"
	BlacklistReasonForce   = "force_revoke"
)

// UserSession 用户会话表 - 记录活跃的令牌对
// 令牌本身绝不落库，只存 SHA256 哈希
type UserSession struct {
	ID        uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	SessionID string `json:"session_id" gorm:"type:char(36);uniqueIndex;not null"`
	Username  string `json:"username" gorm:"type:varchar(50);index:idx_user_session_active,priority:1;not null"`
	UserID    string `json:"user_id" gorm:"type:varchar(20);index;not null"`

	// 令牌哈希
	AccessTokenHash  string `json:"-" gorm:"type:char(64);index;not null"`
	RefreshTokenHash string `json:"-" gorm:"type:char(64);index;not null"`

	// 时间信息
	CreatedAt        time.Time `json:"created_at" gorm:"not null"`
	AccessExpiresAt  time.Time `json:"access_expires_at" gorm:"index:idx_user_session_expires,priority:1;not null"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at" gorm:"index:idx_user_session_expires,priority:2;not null"`
	LastAccessedAt   time.Time `json:"last_accessed_at" gorm:"not null"`

	// 客户端信息
	IPAddress  string `json:"ip_address" gorm:"type:varchar(45)"` // 兼容 IPv6
	UserAgent  string `json:"user_agent" gorm:"type:text"`
	DeviceInfo string `json:"device_info" gorm:"type:text"` // JSON 格式

	// 状态
	IsActive     bool       `json:"is_active" gorm:"index:idx_user_session_active,priority:2;default:true;not null"`
	LogoutReason string     `json:"logout_reason,omitempty" gorm:"type:varchar(50)"`
	LoggedOutAt  *time.Time `json:"logged_out_at,omitempty"`
}

// TableName 表名
func (UserSession) TableName() string {
	return "user_sessions"
}

// IsRefreshExpired 检查刷新令牌是否已过期
func (s *UserSession) IsRefreshExpired(now time.Time) bool {
	return now.After(s.RefreshExpiresAt)
}

// TokenBlacklist 令牌黑名单表
// 按哈希吊销，条目在令牌自身过期后即可删除
type TokenBlacklist struct {
	ID        uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	TokenHash string `json:"token_hash" gorm:"type:char(64);uniqueIndex;not null"`
	TokenType string `json:"token_type" gorm:"type:varchar(10);not null"` // access, refresh

	Username  string `json:"username" gorm:"type:varchar(50);index:idx_token_blacklist_user,priority:1;not null"`
	SessionID string `json:"session_id,omitempty" gorm:"type:char(36);index"`

	BlacklistedAt time.Time `json:"blacklisted_at" gorm:"index:idx_token_blacklist_user,priority:2;not null"`
	ExpiresAt     time.Time `json:"expires_at" gorm:"index;not null"`

	Reason        string `json:"reason" gorm:"type:varchar(50);not null"`
	BlacklistedBy string `json:"blacklisted_by,omitempty" gorm:"type:varchar(50)"`
}

// TableName 表名
func (TokenBlacklist) TableName() string {
	return "token_blacklist"
}

// LoginHistory 登入历史表（只追加的审计记录）
type LoginHistory struct {
	ID       uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	Username string `json:"username" gorm:"type:varchar(50);index:idx_login_history_user_time,priority:1;not null"`
	UserID   string `json:"user_id" gorm:"type:varchar(20);index;not null"`

	LoginTime       time.Time  `json:"login_time" gorm:"index:idx_login_history_user_time,priority:2;not null"`
	LogoutTime      *time.Time `json:"logout_time,omitempty"`
	SessionDuration *int64     `json:"session_duration,omitempty"` // 秒数

	// 认证方式
	AuthMethod string `json:"auth_method" gorm:"type:varchar(20);default:ldap;not null"`
	AuthServer string `json:"auth_server,omitempty" gorm:"type:varchar(100)"`
	AuthDomain string `json:"auth_domain,omitempty" gorm:"type:varchar(50)"`

	// 客户端信息
	IPAddress  string `json:"ip_address,omitempty" gorm:"type:varchar(45);index"`
	UserAgent  string `json:"user_agent,omitempty" gorm:"type:text"`
	DeviceInfo string `json:"device_info,omitempty" gorm:"type:text"` // JSON 格式

	LoginSuccessful bool   `json:"login_successful" gorm:"default:true;not null"`
	LogoutReason    string `json:"logout_reason,omitempty" gorm:"type:varchar(50)"`
	FailureReason   string `json:"failure_reason,omitempty" gorm:"type:varchar(100)"`

	SessionID string `json:"session_id,omitempty" gorm:"type:char(36);index"`
}

// TableName 表名
func (LoginHistory) TableName() string {
	return "login_history"
}

// UserLoginAttempt 登入尝试表（安全监控）
type UserLoginAttempt struct {
	ID        uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	Username  string `json:"username" gorm:"type:varchar(50);index:idx_login_attempts_user_time,priority:1;not null"`
	IPAddress string `json:"ip_address" gorm:"type:varchar(45);index:idx_login_attempts_ip_time,priority:1;not null"`

	AttemptTime   time.Time `json:"attempt_time" gorm:"index:idx_login_attempts_user_time,priority:2;index:idx_login_attempts_ip_time,priority:2;not null"`
	IsSuccessful  bool      `json:"is_successful" gorm:"default:false;not null"`
	FailureReason string    `json:"failure_reason,omitempty" gorm:"type:varchar(100)"`

	UserAgent string `json:"user_agent,omitempty" gorm:"type:text"`

	// 安全标记
	IsSuspicious bool       `json:"is_suspicious" gorm:"index;default:false;not null"`
	BlockedUntil *time.Time `json:"blocked_until,omitempty"`
}

// TableName 表名
func (UserLoginAttempt) TableName() string {
	return "user_login_attempts"
}

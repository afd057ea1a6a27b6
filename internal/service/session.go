package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fulinvn/hr-auth/internal/model"
	"github.com/fulinvn/hr-auth/internal/repository"
)

// 会话相关错误
var (
	ErrNoActiveSession = errors.New("没有活跃会话")
)

// 登入失败达到该次数（15 分钟窗口内）时，尝试记录会被标记为可疑
const suspiciousThreshold = 3

// suspiciousWindow 可疑判定的统计窗口
const suspiciousWindow = 15 * time.Minute

// TokenPair 签发的令牌对
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int64     `json:"expires_in"` // 访问令牌剩余秒数
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	SessionID        string    `json:"session_id"`
}

// IssueOptions 签发会话的附加信息
type IssueOptions struct {
	Meta       ClientMeta
	RememberMe bool
	AuthServer string
	AuthDomain string
}

// CleanupStats 一次清理的结果
type CleanupStats struct {
	BlacklistRemoved int64 `json:"blacklist_removed"`
	SessionsExpired  int64 `json:"sessions_expired"`
	AttemptsRemoved  int64 `json:"attempts_removed"`
}

// SecurityStats 安全概览
type SecurityStats struct {
	ActiveSessions     int64 `json:"active_sessions"`
	TodayLogins        int64 `json:"today_logins"`
	BlacklistedTokens  int64 `json:"blacklisted_tokens"`
	SuspiciousAttempts int64 `json:"suspicious_attempts_24h"` // 最近 24 小时
}

// SessionManagerConfig 会话管理配置
type SessionManagerConfig struct {
	AccessExpiry     time.Duration
	RefreshExpiry    time.Duration
	RememberMeExpiry time.Duration
	AttemptRetention time.Duration
}

// SessionManager 会话生命周期管理接口
// 签发、校验、轮换、吊销都经过这里
type SessionManager interface {
	// Issue 为通过认证的用户签发令牌对并落库会话
	Issue(ctx context.Context, principal *model.Principal, opts IssueOptions) (*TokenPair, error)
	// Verify 校验令牌：先查黑名单，再解码，再核对类型
	// 访问令牌校验通过后会顺带更新会话的最后访问时间
	Verify(ctx context.Context, tokenString, tokenType string) (*TokenClaims, error)
	// Refresh 兑换刷新令牌，旧令牌作废，返回新令牌对
	Refresh(ctx context.Context, refreshToken string, meta ClientMeta) (*TokenPair, error)
	// Logout 登出：停用会话并吊销两个令牌
	// 允许访问令牌已过期（仍需签名有效）
	Logout(ctx context.Context, accessToken string) error
	// RecordFailedLogin 记录失败的登入尝试并判定是否可疑
	RecordFailedLogin(ctx context.Context, username, reason string, meta ClientMeta)
	// ActiveSessions 列出用户当前的活跃会话
	ActiveSessions(ctx context.Context, username string) ([]*model.UserSession, error)
	// ForceLogout 管理员强制登出用户的全部活跃会话，返回停用数量
	ForceLogout(ctx context.Context, username, admin string) (int, error)
	// Cleanup 清理过期数据，各表独立执行
	Cleanup(ctx context.Context) (*CleanupStats, error)
	// Stats 安全概览统计
	Stats(ctx context.Context) (*SecurityStats, error)
}

type sessionManager struct {
	cfg       SessionManagerConfig
	tokens    TokenService
	sessions  repository.SessionRepository
	blacklist repository.BlacklistRepository
	audit     repository.LoginAuditRepository
	logger    *zap.Logger
}

// NewSessionManager 创建会话管理器
func NewSessionManager(
	cfg SessionManagerConfig,
	tokens TokenService,
	sessions repository.SessionRepository,
	blacklist repository.BlacklistRepository,
	audit repository.LoginAuditRepository,
	logger *zap.Logger,
) SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &sessionManager{
		cfg:       cfg,
		tokens:    tokens,
		sessions:  sessions,
		blacklist: blacklist,
		audit:     audit,
		logger:    logger,
	}
}

// Issue 签发令牌对
func (m *sessionManager) Issue(ctx context.Context, principal *model.Principal, opts IssueOptions) (*TokenPair, error) {
	claims := &TokenClaims{
		Username:    principal.Username,
		UserID:      principal.UserID,
		Department:  principal.Department,
		IsManager:   principal.IsManager,
		Permissions: principal.Permissions,
	}

	pair, session, err := m.newSession(ctx, claims, opts.Meta, opts.RememberMe)
	if err != nil {
		return nil, err
	}

	// 审计记录失败只记日志，不影响签发
	history := &model.LoginHistory{
		Username:        principal.Username,
		UserID:          principal.UserID,
		LoginTime:       session.CreatedAt,
		AuthMethod:      "ldap",
		AuthServer:      opts.AuthServer,
		AuthDomain:      opts.AuthDomain,
		IPAddress:       opts.Meta.IPAddress,
		UserAgent:       opts.Meta.UserAgent,
		DeviceInfo:      session.DeviceInfo,
		LoginSuccessful: true,
		SessionID:       session.SessionID,
	}
	if err := m.audit.CreateHistory(ctx, history); err != nil {
		m.logger.Warn("写入登入历史失败", zap.String("username", principal.Username), zap.Error(err))
	}

	attempt := &model.UserLoginAttempt{
		Username:     principal.Username,
		IPAddress:    opts.Meta.IPAddress,
		AttemptTime:  session.CreatedAt,
		IsSuccessful: true,
		UserAgent:    opts.Meta.UserAgent,
	}
	if err := m.audit.CreateAttempt(ctx, attempt); err != nil {
		m.logger.Warn("写入登入尝试失败", zap.String("username", principal.Username), zap.Error(err))
	}

	return pair, nil
}

// newSession 生成令牌对并落库会话行
// rememberMe 延长的是访问令牌的有效期，通过参数传入，绝不改写共享配置
func (m *sessionManager) newSession(ctx context.Context, claims *TokenClaims, meta ClientMeta, rememberMe bool) (*TokenPair, *model.UserSession, error) {
	sessionID := uuid.NewString()
	claims.SessionID = sessionID

	accessExpiry := m.cfg.AccessExpiry
	if rememberMe {
		accessExpiry = m.cfg.RememberMeExpiry
	}

	accessToken, accessExpiresAt, err := m.tokens.GenerateAccessToken(claims, accessExpiry)
	if err != nil {
		return nil, nil, err
	}
	refreshToken, refreshExpiresAt, err := m.tokens.GenerateRefreshToken(claims, m.cfg.RefreshExpiry)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	session := &model.UserSession{
		SessionID:        sessionID,
		Username:         claims.Username,
		UserID:           claims.UserID,
		AccessTokenHash:  HashToken(accessToken),
		RefreshTokenHash: HashToken(refreshToken),
		CreatedAt:        now,
		AccessExpiresAt:  accessExpiresAt,
		RefreshExpiresAt: refreshExpiresAt,
		LastAccessedAt:   now,
		IPAddress:        meta.IPAddress,
		UserAgent:        meta.UserAgent,
		DeviceInfo:       ParseDeviceInfo(meta.UserAgent).JSON(),
		IsActive:         true,
	}
	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, nil, err
	}

	pair := &TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		TokenType:        "Bearer",
		ExpiresIn:        int64(time.Until(accessExpiresAt).Seconds()),
		AccessExpiresAt:  accessExpiresAt,
		RefreshExpiresAt: refreshExpiresAt,
		SessionID:        sessionID,
	}
	return pair, session, nil
}

// Verify 校验令牌
func (m *sessionManager) Verify(ctx context.Context, tokenString, tokenType string) (*TokenClaims, error) {
	// 黑名单先于解码：已吊销的令牌即使签名有效也直接拒绝
	hash := HashToken(tokenString)
	blacklisted, err := m.blacklist.IsBlacklisted(ctx, hash, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if blacklisted {
		return nil, ErrTokenBlacklisted
	}

	claims, err := m.tokens.Decode(tokenString, true)
	if err != nil {
		return nil, err
	}
	if claims.Type != tokenType {
		return nil, ErrWrongTokenType
	}

	if tokenType == TokenTypeAccess {
		// 最后访问时间只做尽力更新
		if err := m.sessions.TouchAccessTime(ctx, hash, time.Now().UTC()); err != nil {
			m.logger.Warn("更新会话访问时间失败", zap.String("session_id", claims.SessionID), zap.Error(err))
		}
	}

	return claims, nil
}

// Refresh 兑换刷新令牌
func (m *sessionManager) Refresh(ctx context.Context, refreshToken string, meta ClientMeta) (*TokenPair, error) {
	claims, err := m.Verify(ctx, refreshToken, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	// 会话必须仍然活跃，登出后的刷新令牌不能再兑换
	session, err := m.sessions.GetBySessionID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !session.IsActive || session.IsRefreshExpired(time.Now().UTC()) {
		return nil, ErrInvalidToken
	}

	// 旧刷新令牌先入黑名单；唯一约束保证并发兑换只有一个赢家
	inserted, err := m.blacklist.Insert(ctx, &model.TokenBlacklist{
		TokenHash:     HashToken(refreshToken),
		TokenType:     TokenTypeRefresh,
		Username:      claims.Username,
		SessionID:     claims.SessionID,
		BlacklistedAt: time.Now().UTC(),
		ExpiresAt:     claims.ExpiresAt.Time,
		Reason:        model.BlacklistReasonRefresh,
	})
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, ErrRefreshTokenUsed
	}

	now := time.Now().UTC()
	if _, err := m.sessions.Deactivate(ctx, claims.SessionID, model.LogoutReasonTokenRefresh, now); err != nil {
		return nil, err
	}
	if err := m.audit.CloseHistory(ctx, claims.SessionID, now, model.LogoutReasonTokenRefresh); err != nil {
		m.logger.Warn("补写登入历史失败", zap.String("session_id", claims.SessionID), zap.Error(err))
	}

	// 刷新令牌只携带基础身份，新访问令牌不恢复部门与权限声明
	newClaims := &TokenClaims{
		Username: claims.Username,
		UserID:   claims.UserID,
	}
	pair, _, err := m.newSession(ctx, newClaims, meta, false)
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Logout 登出
func (m *sessionManager) Logout(ctx context.Context, accessToken string) error {
	// 已过期的访问令牌也允许登出，只校验签名
	claims, err := m.tokens.Decode(accessToken, false)
	if err != nil {
		return err
	}
	if claims.Type != TokenTypeAccess {
		return ErrWrongTokenType
	}

	now := time.Now().UTC()
	deactivated, err := m.sessions.Deactivate(ctx, claims.SessionID, model.LogoutReasonManual, now)
	if err != nil {
		return err
	}
	if !deactivated {
		return ErrNoActiveSession
	}

	if _, err := m.blacklist.Insert(ctx, &model.TokenBlacklist{
		TokenHash:     HashToken(accessToken),
		TokenType:     TokenTypeAccess,
		Username:      claims.Username,
		SessionID:     claims.SessionID,
		BlacklistedAt: now,
		ExpiresAt:     claims.ExpiresAt.Time,
		Reason:        model.BlacklistReasonLogout,
	}); err != nil {
		return err
	}

	// 吊销同会话的刷新令牌，防止登出后继续兑换
	if session, err := m.sessions.GetBySessionID(ctx, claims.SessionID); err == nil {
		if _, err := m.blacklist.Insert(ctx, &model.TokenBlacklist{
			TokenHash:     session.RefreshTokenHash,
			TokenType:     TokenTypeRefresh,
			Username:      claims.Username,
			SessionID:     claims.SessionID,
			BlacklistedAt: now,
			ExpiresAt:     session.RefreshExpiresAt,
			Reason:        model.BlacklistReasonLogout,
		}); err != nil {
			m.logger.Warn("吊销刷新令牌失败", zap.String("session_id", claims.SessionID), zap.Error(err))
		}
	}

	if err := m.audit.CloseHistory(ctx, claims.SessionID, now, model.LogoutReasonManual); err != nil {
		m.logger.Warn("补写登入历史失败", zap.String("session_id", claims.SessionID), zap.Error(err))
	}
	return nil
}

// RecordFailedLogin 记录失败尝试
// 15 分钟窗口内（含本次）失败满 3 次即标记可疑
func (m *sessionManager) RecordFailedLogin(ctx context.Context, username, reason string, meta ClientMeta) {
	now := time.Now().UTC()

	recent, err := m.audit.CountRecentFailures(ctx, username, meta.IPAddress, now.Add(-suspiciousWindow))
	if err != nil {
		m.logger.Warn("统计近期失败次数失败", zap.String("username", username), zap.Error(err))
		recent = 0
	}

	attempt := &model.UserLoginAttempt{
		Username:      username,
		IPAddress:     meta.IPAddress,
		AttemptTime:   now,
		IsSuccessful:  false,
		FailureReason: reason,
		UserAgent:     meta.UserAgent,
		IsSuspicious:  recent+1 >= suspiciousThreshold,
	}
	if err := m.audit.CreateAttempt(ctx, attempt); err != nil {
		m.logger.Warn("写入登入尝试失败", zap.String("username", username), zap.Error(err))
	}
}

// ActiveSessions 列出活跃会话
func (m *sessionManager) ActiveSessions(ctx context.Context, username string) ([]*model.UserSession, error) {
	return m.sessions.ListActive(ctx, username, time.Now().UTC())
}

// ForceLogout 强制登出用户的全部活跃会话
func (m *sessionManager) ForceLogout(ctx context.Context, username, admin string) (int, error) {
	now := time.Now().UTC()
	sessions, err := m.sessions.ListActive(ctx, username, now)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, session := range sessions {
		deactivated, err := m.sessions.Deactivate(ctx, session.SessionID, model.LogoutReasonForceLogout, now)
		if err != nil {
			m.logger.Error("强制停用会话失败", zap.String("session_id", session.SessionID), zap.Error(err))
			continue
		}
		if !deactivated {
			continue
		}
		count++

		for tokenType, entry := range map[string]struct {
			hash      string
			expiresAt time.Time
		}{
			TokenTypeAccess:  {session.AccessTokenHash, session.AccessExpiresAt},
			TokenTypeRefresh: {session.RefreshTokenHash, session.RefreshExpiresAt},
		} {
			if _, err := m.blacklist.Insert(ctx, &model.TokenBlacklist{
				TokenHash:     entry.hash,
				TokenType:     tokenType,
				Username:      username,
				SessionID:     session.SessionID,
				BlacklistedAt: now,
				ExpiresAt:     entry.expiresAt,
				Reason:        model.BlacklistReasonForce,
				BlacklistedBy: admin,
			}); err != nil {
				m.logger.Warn("吊销令牌失败",
					zap.String("session_id", session.SessionID),
					zap.String("token_type", tokenType),
					zap.Error(err))
			}
		}

		if err := m.audit.CloseHistory(ctx, session.SessionID, now, model.LogoutReasonForceLogout); err != nil {
			m.logger.Warn("补写登入历史失败", zap.String("session_id", session.SessionID), zap.Error(err))
		}
	}

	return count, nil
}

// Cleanup 清理过期数据
// 每张表各自独立执行，单表失败不阻断其余清理
func (m *sessionManager) Cleanup(ctx context.Context) (*CleanupStats, error) {
	now := time.Now().UTC()
	stats := &CleanupStats{}
	var firstErr error

	if n, err := m.blacklist.DeleteExpired(ctx, now); err != nil {
		m.logger.Error("清理黑名单失败", zap.Error(err))
		firstErr = err
	} else {
		stats.BlacklistRemoved = n
	}

	if n, err := m.sessions.DeactivateExpired(ctx, now); err != nil {
		m.logger.Error("停用过期会话失败", zap.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	} else {
		stats.SessionsExpired = n
	}

	retention := m.cfg.AttemptRetention
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	if n, err := m.audit.DeleteAttemptsBefore(ctx, now.Add(-retention)); err != nil {
		m.logger.Error("清理登入尝试失败", zap.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	} else {
		stats.AttemptsRemoved = n
	}

	return stats, firstErr
}

// Stats 安全概览
func (m *sessionManager) Stats(ctx context.Context) (*SecurityStats, error) {
	now := time.Now().UTC()
	stats := &SecurityStats{}

	var err error
	if stats.ActiveSessions, err = m.sessions.CountActive(ctx); err != nil {
		return nil, err
	}
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if stats.TodayLogins, err = m.audit.CountLoginsSince(ctx, todayStart); err != nil {
		return nil, err
	}
	if stats.BlacklistedTokens, err = m.blacklist.CountActive(ctx, now); err != nil {
		return nil, err
	}
	if stats.SuspiciousAttempts, err = m.audit.CountSuspiciousSince(ctx, now.Add(-24*time.Hour)); err != nil {
		return nil, err
	}

	return stats, nil
}

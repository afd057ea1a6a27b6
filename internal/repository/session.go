// Package repository 数据访问层
package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/fulinvn/hr-auth/internal/model"
)

var (
	ErrSessionNotFound = errors.New("会话不存在")
)

// SessionRepository 用户会话数据访问接口
type SessionRepository interface {
	Create(ctx context.Context, session *model.UserSession) error
	GetBySessionID(ctx context.Context, sessionID string) (*model.UserSession, error)
	// TouchAccessTime 更新活跃会话的最后访问时间
	TouchAccessTime(ctx context.Context, accessTokenHash string, now time.Time) error
	// Deactivate 停用会话，返回是否实际停用了一条活跃会话
	Deactivate(ctx context.Context, sessionID, reason string, at time.Time) (bool, error)
	// ListActive 列出用户的活跃会话，按最后访问时间降序
	ListActive(ctx context.Context, username string, now time.Time) ([]*model.UserSession, error)
	// DeactivateExpired 批量停用刷新令牌已过期的会话
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
	CountActive(ctx context.Context) (int64, error)
}

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository 创建会话数据访问实例
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *model.UserSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *sessionRepository) GetBySessionID(ctx context.Context, sessionID string) (*model.UserSession, error) {
	var session model.UserSession
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) TouchAccessTime(ctx context.Context, accessTokenHash string, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.UserSession{}).
		Where("access_token_hash = ? AND is_active = ?", accessTokenHash, true).
		Update("last_accessed_at", now).Error
}

func (r *sessionRepository) Deactivate(ctx context.Context, sessionID, reason string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.UserSession{}).
		Where("session_id = ? AND is_active = ?", sessionID, true).
		Updates(map[string]interface{}{
			"is_active":     false,
			"logout_reason": reason,
			"logged_out_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *sessionRepository) ListActive(ctx context.Context, username string, now time.Time) ([]*model.UserSession, error) {
	var sessions []*model.UserSession
	err := r.db.WithContext(ctx).
		Where("username = ? AND is_active = ? AND refresh_expires_at > ?", username, true, now).
		Order("last_accessed_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.UserSession{}).
		Where("is_active = ? AND refresh_expires_at < ?", true, now).
		Updates(map[string]interface{}{
			"is_active":     false,
			"logout_reason": model.LogoutReasonExpired,
			"logged_out_at": now,
		})
	return result.RowsAffected, result.Error
}

func (r *sessionRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.UserSession{}).
		Where("is_active = ?", true).
		Count(&count).Error
	return count, err
}

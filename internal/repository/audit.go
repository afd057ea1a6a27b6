package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/fulinvn/hr-auth/internal/model"
)

// LoginAuditRepository 登入历史与登入尝试数据访问接口
// 两张表都是只追加的审计记录
type LoginAuditRepository interface {
	CreateHistory(ctx context.Context, record *model.LoginHistory) error
	// CloseHistory 补写会话对应历史行的登出时间与时长
	CloseHistory(ctx context.Context, sessionID string, logoutAt time.Time, reason string) error
	CreateAttempt(ctx context.Context, attempt *model.UserLoginAttempt) error
	// CountRecentFailures 统计 (username, ip) 在 since 之后的失败次数
	CountRecentFailures(ctx context.Context, username, ip string, since time.Time) (int64, error)
	// DeleteAttemptsBefore 删除早于 cutoff 的尝试记录
	DeleteAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountLoginsSince(ctx context.Context, since time.Time) (int64, error)
	CountSuspiciousSince(ctx context.Context, since time.Time) (int64, error)
}

type loginAuditRepository struct {
	db *gorm.DB
}

// NewLoginAuditRepository 创建审计数据访问实例
func NewLoginAuditRepository(db *gorm.DB) LoginAuditRepository {
	return &loginAuditRepository{db: db}
}

func (r *loginAuditRepository) CreateHistory(ctx context.Context, record *model.LoginHistory) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *loginAuditRepository) CloseHistory(ctx context.Context, sessionID string, logoutAt time.Time, reason string) error {
	var record model.LoginHistory
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND logout_time IS NULL", sessionID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	duration := int64(logoutAt.Sub(record.LoginTime).Seconds())
	return r.db.WithContext(ctx).
		Model(&record).
		Updates(map[string]interface{}{
			"logout_time":      logoutAt,
			"logout_reason":    reason,
			"session_duration": duration,
		}).Error
}

func (r *loginAuditRepository) CreateAttempt(ctx context.Context, attempt *model.UserLoginAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *loginAuditRepository) CountRecentFailures(ctx context.Context, username, ip string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.UserLoginAttempt{}).
		Where("username = ? AND ip_address = ? AND attempt_time > ? AND is_successful = ?",
			username, ip, since, false).
		Count(&count).Error
	return count, err
}

func (r *loginAuditRepository) DeleteAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("attempt_time < ?", cutoff).
		Delete(&model.UserLoginAttempt{})
	return result.RowsAffected, result.Error
}

func (r *loginAuditRepository) CountLoginsSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.LoginHistory{}).
		Where("login_time >= ?", since).
		Count(&count).Error
	return count, err
}

func (r *loginAuditRepository) CountSuspiciousSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.UserLoginAttempt{}).
		Where("is_suspicious = ? AND attempt_time > ?", true, since).
		Count(&count).Error
	return count, err
}

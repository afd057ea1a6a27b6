package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fulinvn/hr-auth/internal/model"
)

// BlacklistRepository 令牌黑名单数据访问接口
type BlacklistRepository interface {
	// Insert 插入黑名单条目
	// token_hash 上有唯一约束，返回本次调用是否真正插入了新行；
	// 刷新令牌的"单次兑换"保证依赖这一点
	Insert(ctx context.Context, entry *model.TokenBlacklist) (bool, error)
	// IsBlacklisted 检查哈希是否在有效黑名单中
	IsBlacklisted(ctx context.Context, tokenHash string, now time.Time) (bool, error)
	// DeleteExpired 删除已过自身有效期的黑名单条目
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	CountActive(ctx context.Context, now time.Time) (int64, error)
}

type blacklistRepository struct {
	db *gorm.DB
}

// NewBlacklistRepository 创建黑名单数据访问实例
func NewBlacklistRepository(db *gorm.DB) BlacklistRepository {
	return &blacklistRepository{db: db}
}

func (r *blacklistRepository) Insert(ctx context.Context, entry *model.TokenBlacklist) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token_hash"}},
			DoNothing: true,
		}).
		Create(entry)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *blacklistRepository) IsBlacklisted(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.TokenBlacklist{}).
		Where("token_hash = ? AND expires_at > ?", tokenHash, now).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *blacklistRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&model.TokenBlacklist{})
	return result.RowsAffected, result.Error
}

func (r *blacklistRepository) CountActive(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.TokenBlacklist{}).
		Where("expires_at > ?", now).
		Count(&count).Error
	return count, err
}

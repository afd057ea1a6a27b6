package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// 登入限流默认参数
const (
	defaultThrottleLimit  = 5
	defaultThrottleWindow = 15 * time.Minute
)

// LoginThrottle 登入限流接口
// 以 (username, ip) 为粒度统计失败次数，数据库审计表之外的快速计数
type LoginThrottle interface {
	// Allow 检查是否还允许该来源继续尝试登入
	Allow(ctx context.Context, username, ip string) (bool, error)
	// RecordFailure 记录一次失败，窗口随首次失败开始计时
	RecordFailure(ctx context.Context, username, ip string) error
	// Reset 登入成功后清除计数
	Reset(ctx context.Context, username, ip string) error
}

type redisThrottle struct {
	client *redis.Client
	limit  int64
	window time.Duration
	logger *zap.Logger
}

// NewLoginThrottle 创建基于 Redis 的登入限流器
func NewLoginThrottle(client *redis.Client, limit int, window time.Duration, logger *zap.Logger) LoginThrottle {
	if limit <= 0 {
		limit = defaultThrottleLimit
	}
	if window <= 0 {
		window = defaultThrottleWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisThrottle{
		client: client,
		limit:  int64(limit),
		window: window,
		logger: logger,
	}
}

func throttleKey(username, ip string) string {
	return fmt.Sprintf("login:failures:%s:%s", username, ip)
}

func (t *redisThrottle) Allow(ctx context.Context, username, ip string) (bool, error) {
	count, err := t.client.Get(ctx, throttleKey(username, ip)).Int64()
	if err != nil {
		if err == redis.Nil {
			return true, nil
		}
		// Redis 故障时放行，认证本身仍有目录服务把关
		t.logger.Warn("读取限流计数失败", zap.String("username", username), zap.Error(err))
		return true, nil
	}
	return count < t.limit, nil
}

func (t *redisThrottle) RecordFailure(ctx context.Context, username, ip string) error {
	key := throttleKey(username, ip)

	count, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	// 首次失败时设置窗口过期
	if count == 1 {
		if err := t.client.Expire(ctx, key, t.window).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (t *redisThrottle) Reset(ctx context.Context, username, ip string) error {
	return t.client.Del(ctx, throttleKey(username, ip)).Err()
}

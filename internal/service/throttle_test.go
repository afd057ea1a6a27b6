package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 创建测试用的 Redis 客户端
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, client
}

// TestLoginThrottle_AllowUnderLimit 测试未达上限时放行
func TestLoginThrottle_AllowUnderLimit(t *testing.T) {
	_, client := setupTestRedis(t)
	throttle := NewLoginThrottle(client, 5, 15*time.Minute, nil)
	ctx := context.Background()

	allowed, err := throttle.Allow(ctx, "nguyenvana", "10.1.2.3")
	require.NoError(t, err)
	assert.True(t, allowed, "无失败记录时应放行")

	for i := 0; i < 4; i++ {
		require.NoError(t, throttle.RecordFailure(ctx, "nguyenvana", "10.1.2.3"))
	}
	allowed, err = throttle.Allow(ctx, "nguyenvana", "10.1.2.3")
	require.NoError(t, err)
	assert.True(t, allowed, "4 次失败仍应放行")
}

// TestLoginThrottle_BlockAtLimit 测试达到上限后拦截
func TestLoginThrottle_BlockAtLimit(t *testing.T) {
	_, client := setupTestRedis(t)
	throttle := NewLoginThrottle(client, 5, 15*time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, throttle.RecordFailure(ctx, "nguyenvana", "10.1.2.3"))
	}

	allowed, err := throttle.Allow(ctx, "nguyenvana", "10.1.2.3")
	require.NoError(t, err)
	assert.False(t, allowed, "5 次失败后应拦截")

	// 不同来源不受影响
	allowed, err = throttle.Allow(ctx, "nguyenvana", "10.9.9.9")
	require.NoError(t, err)
	assert.True(t, allowed, "不同 IP 应独立统计")

	allowed, err = throttle.Allow(ctx, "tranthib", "10.1.2.3")
	require.NoError(t, err)
	assert.True(t, allowed, "不同用户应独立统计")
}

// TestLoginThrottle_WindowExpiry 测试窗口过期后解除拦截
func TestLoginThrottle_WindowExpiry(t *testing.T) {
	mr, client := setupTestRedis(t)
	throttle := NewLoginThrottle(client, 5, 15*time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, throttle.RecordFailure(ctx, "nguyenvana", "10.1.2.3"))
	}

	mr.FastForward(16 * time.Minute)

	allowed, err := throttle.Allow(ctx, "nguyenvana", "10.1.2.3")
	require.NoError(t, err)
	assert.True(t, allowed, "窗口过期后应解除拦截")
}

// TestLoginThrottle_Reset 测试登入成功后清零
func TestLoginThrottle_Reset(t *testing.T) {
	_, client := setupTestRedis(t)
	throttle := NewLoginThrottle(client, 5, 15*time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, throttle.RecordFailure(ctx, "nguyenvana", "10.1.2.3"))
	}
	require.NoError(t, throttle.Reset(ctx, "nguyenvana", "10.1.2.3"))

	allowed, err := throttle.Allow(ctx, "nguyenvana", "10.1.2.3")
	require.NoError(t, err)
	assert.True(t, allowed, "清零后应放行")
}

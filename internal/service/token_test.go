package service

import (
	"strings"
	"testing"
	"time"
)

// 创建测试用的令牌服务
func newTestTokenService() TokenService {
	return NewTokenService("test-secret-key-for-unit-tests", "HS256")
}

// TestTokenService_AccessRoundTrip 测试访问令牌的生成与解码往返
func TestTokenService_AccessRoundTrip(t *testing.T) {
	svc := newTestTokenService()

	claims := &TokenClaims{
		Username:    "nguyenvana",
		UserID:      "FL12345",
		SessionID:   "11111111-2222-3333-4444-555555555555",
		Department:  "HR",
		IsManager:   true,
		Permissions: []string{"employee:read", "user:read"},
	}

	token, expiresAt, err := svc.GenerateAccessToken(claims, time.Hour)
	if err != nil {
		t.Fatalf("生成访问令牌失败: %v", err)
	}
	if token == "" {
		t.Fatal("令牌不应为空")
	}
	if remaining := time.Until(expiresAt); remaining < 59*time.Minute || remaining > time.Hour {
		t.Errorf("过期时间不在预期范围: %v", remaining)
	}

	decoded, err := svc.Decode(token, true)
	if err != nil {
		t.Fatalf("解码令牌失败: %v", err)
	}
	if decoded.Username != claims.Username {
		t.Errorf("Username 不匹配: 期望 %s, 实际 %s", claims.Username, decoded.Username)
	}
	if decoded.UserID != claims.UserID {
		t.Errorf("UserID 不匹配: 期望 %s, 实际 %s", claims.UserID, decoded.UserID)
	}
	if decoded.Type != TokenTypeAccess {
		t.Errorf("Type 不匹配: 期望 access, 实际 %s", decoded.Type)
	}
	if !decoded.IsManager {
		t.Error("IsManager 应保留")
	}
	if len(decoded.Permissions) != 2 {
		t.Errorf("权限集应保留, 实际 %v", decoded.Permissions)
	}
}

// TestTokenService_RefreshStripsClaims 测试刷新令牌剥离部门与权限声明
func TestTokenService_RefreshStripsClaims(t *testing.T) {
	svc := newTestTokenService()

	claims := &TokenClaims{
		Username:    "nguyenvana",
		UserID:      "FL12345",
		SessionID:   "11111111-2222-3333-4444-555555555555",
		Department:  "IT",
		IsManager:   true,
		Permissions: []string{"it:read", "system:read"},
	}

	token, _, err := svc.GenerateRefreshToken(claims, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("生成刷新令牌失败: %v", err)
	}

	decoded, err := svc.Decode(token, true)
	if err != nil {
		t.Fatalf("解码令牌失败: %v", err)
	}
	if decoded.Type != TokenTypeRefresh {
		t.Errorf("Type 不匹配: 期望 refresh, 实际 %s", decoded.Type)
	}
	if decoded.Department != "" {
		t.Errorf("刷新令牌不应携带部门: %s", decoded.Department)
	}
	if decoded.IsManager {
		t.Error("刷新令牌不应携带主管标记")
	}
	if len(decoded.Permissions) != 0 {
		t.Errorf("刷新令牌不应携带权限: %v", decoded.Permissions)
	}
	if decoded.Username != claims.Username || decoded.SessionID != claims.SessionID {
		t.Error("刷新令牌应保留基础身份声明")
	}
}

// TestTokenService_Expired 测试过期令牌的两种解码路径
func TestTokenService_Expired(t *testing.T) {
	svc := newTestTokenService()

	claims := &TokenClaims{Username: "nguyenvana", UserID: "FL12345", SessionID: "sid"}
	token, _, err := svc.GenerateAccessToken(claims, -time.Minute)
	if err != nil {
		t.Fatalf("生成令牌失败: %v", err)
	}

	if _, err := svc.Decode(token, true); err != ErrTokenExpired {
		t.Errorf("期望 ErrTokenExpired, 实际 %v", err)
	}

	// 登出路径跳过过期校验
	decoded, err := svc.Decode(token, false)
	if err != nil {
		t.Fatalf("跳过过期校验时解码应成功: %v", err)
	}
	if decoded.Username != "nguyenvana" {
		t.Errorf("声明应可提取, 实际 %s", decoded.Username)
	}
}

// TestTokenService_Tampered 测试被篡改的令牌
func TestTokenService_Tampered(t *testing.T) {
	svc := newTestTokenService()

	claims := &TokenClaims{Username: "nguyenvana", UserID: "FL12345", SessionID: "sid"}
	token, _, err := svc.GenerateAccessToken(claims, time.Hour)
	if err != nil {
		t.Fatalf("生成令牌失败: %v", err)
	}

	// 替换签名段
	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + "." + "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	if _, err := svc.Decode(tampered, true); err != ErrInvalidToken {
		t.Errorf("期望 ErrInvalidToken, 实际 %v", err)
	}

	// 错误密钥
	other := NewTokenService("another-secret", "HS256")
	if _, err := other.Decode(token, true); err != ErrInvalidToken {
		t.Errorf("错误密钥应返回 ErrInvalidToken, 实际 %v", err)
	}
}

// TestTokenService_UnknownAlgorithmFallsBack 测试未知算法回退到 HS256
func TestTokenService_UnknownAlgorithmFallsBack(t *testing.T) {
	svc := NewTokenService("secret", "RS256")

	claims := &TokenClaims{Username: "u", UserID: "1", SessionID: "sid"}
	token, _, err := svc.GenerateAccessToken(claims, time.Hour)
	if err != nil {
		t.Fatalf("生成令牌失败: %v", err)
	}
	if _, err := svc.Decode(token, true); err != nil {
		t.Fatalf("解码失败: %v", err)
	}
}

// TestHashToken 测试令牌哈希的形态与稳定性
func TestHashToken(t *testing.T) {
	h1 := HashToken("some.jwt.token")
	h2 := HashToken("some.jwt.token")

	if h1 != h2 {
		t.Error("相同输入应产出相同哈希")
	}
	if len(h1) != 64 {
		t.Errorf("期望 64 位十六进制哈希, 实际长度 %d", len(h1))
	}
	if HashToken("other.jwt.token") == h1 {
		t.Error("不同输入不应产出相同哈希")
	}
}

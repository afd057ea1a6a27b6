// Package service 业务逻辑层
package service

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// 令牌相关错误
var (
	ErrInvalidToken     = errors.New("无效的令牌")
	ErrTokenExpired     = errors.New("令牌已过期")
	ErrWrongTokenType   = errors.New("令牌类型不匹配")
	ErrTokenBlacklisted = errors.New("令牌已被吊销")
	ErrRefreshTokenUsed = errors.New("刷新令牌已被使用")
)

// 令牌类型
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// TokenClaims JWT 声明
// 部门、主管标记和权限集只写入访问令牌
type TokenClaims struct {
	jwt.RegisteredClaims
	Username    string   `json:"username"`
	UserID      string   `json:"user_id"`
	SessionID   string   `json:"session_id"`
	Department  string   `json:"department,omitempty"`
	IsManager   bool     `json:"is_manager,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	Type        string   `json:"type"`
}

// TokenService 令牌编解码接口
type TokenService interface {
	// GenerateAccessToken 生成访问令牌，expiry 按调用传入（记住我场景延长）
	GenerateAccessToken(claims *TokenClaims, expiry time.Duration) (string, time.Time, error)
	// GenerateRefreshToken 生成刷新令牌
	GenerateRefreshToken(claims *TokenClaims, expiry time.Duration) (string, time.Time, error)
	// Decode 解码令牌
	// verifyExpiry 为 false 时跳过过期校验，供登出/吊销路径从已过期令牌提取声明
	Decode(tokenString string, verifyExpiry bool) (*TokenClaims, error)
}

type tokenService struct {
	secret []byte
	method jwt.SigningMethod
}

// signingMethods 支持的 HMAC 签名算法
var signingMethods = map[string]jwt.SigningMethod{
	"HS256": jwt.SigningMethodHS256,
	"HS384": jwt.SigningMethodHS384,
	"HS512": jwt.SigningMethodHS512,
}

// NewTokenService 创建令牌服务
func NewTokenService(secret, algorithm string) TokenService {
	method, ok := signingMethods[algorithm]
	if !ok {
		method = jwt.SigningMethodHS256
	}
	return &tokenService{
		secret: []byte(secret),
		method: method,
	}
}

// GenerateAccessToken 生成访问令牌
func (s *tokenService) GenerateAccessToken(claims *TokenClaims, expiry time.Duration) (string, time.Time, error) {
	return s.generate(claims, TokenTypeAccess, expiry)
}

// GenerateRefreshToken 生成刷新令牌
// 刷新令牌不携带部门与权限声明
func (s *tokenService) GenerateRefreshToken(claims *TokenClaims, expiry time.Duration) (string, time.Time, error) {
	stripped := &TokenClaims{
		Username:  claims.Username,
		UserID:    claims.UserID,
		SessionID: claims.SessionID,
	}
	return s.generate(stripped, TokenTypeRefresh, expiry)
}

func (s *tokenService) generate(claims *TokenClaims, tokenType string, expiry time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(expiry)

	claims.Type = tokenType
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.Username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(s.method, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Decode 解码令牌
func (s *tokenService) Decode(tokenString string, verifyExpiry bool) (*TokenClaims, error) {
	var opts []jwt.ParserOption
	if !verifyExpiry {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		// 只接受 HMAC 签名算法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, opts...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// HashToken 计算令牌的 SHA256 哈希
// 会话表与黑名单表只存哈希，原始令牌绝不落库
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

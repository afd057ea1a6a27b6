package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fulinvn/hr-auth/internal/ldapauth"
	"github.com/fulinvn/hr-auth/internal/model"
)

// 认证相关错误
var (
	ErrAuthenticationFailed = errors.New("用户名或密码错误")
	ErrDirectoryUnavailable = errors.New("目录服务不可用")
	ErrTooManyAttempts      = errors.New("登入尝试次数过多")
)

// LoginInput 登入请求
type LoginInput struct {
	Username   string
	Password   string
	RememberMe bool
	Server     string // 可选，覆盖默认目录服务器
	Domain     string // 可选，覆盖默认网域
	Meta       ClientMeta
}

// LoginResult 登入结果
type LoginResult struct {
	Tokens     *TokenPair       `json:"tokens"`
	User       *model.Principal `json:"user"`
	AuthFormat string           `json:"auth_format"`
	Timing     ldapauth.Timing  `json:"timing"`
}

// AuthService 认证编排接口
type AuthService interface {
	// Login 目录认证并签发会话
	Login(ctx context.Context, input LoginInput) (*LoginResult, error)
}

type authService struct {
	directory ldapauth.Authenticator // 可为 nil，表示目录后端未配置
	sessions  SessionManager
	throttle  LoginThrottle
	logger    *zap.Logger
}

// NewAuthService 创建认证服务
// directory 为 nil 时所有登入返回目录服务不可用
func NewAuthService(directory ldapauth.Authenticator, sessions SessionManager, throttle LoginThrottle, logger *zap.Logger) AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &authService{
		directory: directory,
		sessions:  sessions,
		throttle:  throttle,
		logger:    logger,
	}
}

// Login 登入编排
func (s *authService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	if s.throttle != nil {
		allowed, err := s.throttle.Allow(ctx, input.Username, input.Meta.IPAddress)
		if err != nil {
			return nil, fmt.Errorf("检查登入限流: %w", err)
		}
		if !allowed {
			s.logger.Warn("登入被限流",
				zap.String("username", input.Username),
				zap.String("ip", input.Meta.IPAddress))
			return nil, ErrTooManyAttempts
		}
	}

	if s.directory == nil {
		return nil, ErrDirectoryUnavailable
	}

	start := time.Now()
	result, err := s.directory.Authenticate(ctx, input.Username, input.Password, ldapauth.Options{
		Server:            input.Server,
		Domain:            input.Domain,
		FetchManager:      true,
		FetchSubordinates: true,
	})
	if err != nil {
		switch {
		case errors.Is(err, ldapauth.ErrAuthFailed):
			s.recordFailure(ctx, input, "invalid_credentials")
			return nil, ErrAuthenticationFailed
		case errors.Is(err, ldapauth.ErrUnavailable):
			s.logger.Error("目录服务不可达",
				zap.String("username", input.Username),
				zap.Error(err))
			return nil, ErrDirectoryUnavailable
		default:
			return nil, fmt.Errorf("目录认证: %w", err)
		}
	}

	principal := buildPrincipal(input.Username, result)

	if s.throttle != nil {
		if err := s.throttle.Reset(ctx, input.Username, input.Meta.IPAddress); err != nil {
			s.logger.Warn("清除限流计数失败", zap.String("username", input.Username), zap.Error(err))
		}
	}

	tokens, err := s.sessions.Issue(ctx, principal, IssueOptions{
		Meta:       input.Meta,
		RememberMe: input.RememberMe,
		AuthServer: result.Server,
		AuthDomain: result.Domain,
	})
	if err != nil {
		return nil, fmt.Errorf("签发会话: %w", err)
	}

	s.logger.Info("用户登入成功",
		zap.String("username", principal.Username),
		zap.String("auth_format", result.AuthFormat),
		zap.Bool("is_manager", principal.IsManager),
		zap.Int("subordinates", principal.SubordinatesCount),
		zap.Duration("elapsed", time.Since(start)))

	return &LoginResult{
		Tokens:     tokens,
		User:       principal,
		AuthFormat: result.AuthFormat,
		Timing:     result.Timing,
	}, nil
}

// recordFailure 登入失败时同步写审计与限流计数
func (s *authService) recordFailure(ctx context.Context, input LoginInput, reason string) {
	s.sessions.RecordFailedLogin(ctx, input.Username, reason, input.Meta)
	if s.throttle != nil {
		if err := s.throttle.RecordFailure(ctx, input.Username, input.Meta.IPAddress); err != nil {
			s.logger.Warn("记录限流失败计数失败", zap.String("username", input.Username), zap.Error(err))
		}
	}
}

// buildPrincipal 从目录认证结果构造身份快照
// 有直属下属即视为主管，权限集在此一次性计算并随访问令牌下发
func buildPrincipal(username string, result *ldapauth.Result) *model.Principal {
	user := result.User

	isManager := len(result.Subordinates) > 0
	principal := &model.Principal{
		Username:          username,
		UserID:            user.EmployeeID,
		SamAccount:        user.SamAccount,
		DisplayName:       user.DisplayName,
		Email:             user.Email,
		Department:        user.Department,
		Title:             user.Title,
		IsManager:         isManager,
		SubordinatesCount: len(result.Subordinates),
		Subordinates:      result.Subordinates,
		Manager:           result.Manager,
		Permissions:       PermissionsFor(user.Department, isManager),
	}
	if principal.UserID == "" {
		principal.UserID = user.SamAccount
	}
	return principal
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fulinvn/hr-auth/internal/ldapauth"
	"github.com/fulinvn/hr-auth/internal/model"
)

// fakeAuthenticator 可编程的目录认证器
type fakeAuthenticator struct {
	result *ldapauth.Result
	err    error
	calls  int
}

func (a *fakeAuthenticator) Authenticate(_ context.Context, _, _ string, _ ldapauth.Options) (*ldapauth.Result, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return a.result, nil
}

func directoryResult() *ldapauth.Result {
	return &ldapauth.Result{
		User: &model.DirectoryUser{
			SamAccount:  "nguyenvana",
			DisplayName: "Nguyen Van A",
			Email:       "nguyenvana@fulinvn.com",
			Department:  "HR",
			Title:       "HR Supervisor",
			EmployeeID:  "FL12345",
			DN:          "CN=Nguyen Van A,OU=HR,DC=fulinvn,DC=com",
		},
		Subordinates: []model.Subordinate{
			{SamAccount: "tranthib", DisplayName: "Tran Thi B"},
		},
		AuthFormat: "nguyenvana@FULINVN_TN",
		Server:     "192.168.1.245",
		Domain:     "FULINVN_TN",
	}
}

func newAuthFixture(directory ldapauth.Authenticator) (AuthService, *sessionManagerFixture) {
	f := newSessionManagerFixture()
	svc := NewAuthService(directory, f.manager, nil, nil)
	return svc, f
}

// TestAuthService_LoginSuccess 测试登入成功路径
func TestAuthService_LoginSuccess(t *testing.T) {
	svc, f := newAuthFixture(&fakeAuthenticator{result: directoryResult()})

	result, err := svc.Login(context.Background(), LoginInput{
		Username: "nguyenvana",
		Password: "correct-password",
		Meta:     testMeta(),
	})
	if err != nil {
		t.Fatalf("登入失败: %v", err)
	}

	if result.Tokens == nil || result.Tokens.AccessToken == "" {
		t.Fatal("应签发令牌对")
	}
	if result.User.UserID != "FL12345" {
		t.Errorf("员工编号不匹配: %s", result.User.UserID)
	}
	if !result.User.IsManager {
		t.Error("有下属的用户应为主管")
	}
	if result.User.SubordinatesCount != 1 {
		t.Errorf("下属数量不匹配: %d", result.User.SubordinatesCount)
	}
	if !HasAllPermissions(result.User.Permissions, []string{"user:read", "hr:read", "user:write", "subordinates:read"}) {
		t.Errorf("HR 主管权限集不完整: %v", result.User.Permissions)
	}
	if result.AuthFormat != "nguyenvana@FULINVN_TN" {
		t.Errorf("绑定格式不匹配: %s", result.AuthFormat)
	}

	// 签发的访问令牌应携带权限声明
	claims, err := f.manager.Verify(context.Background(), result.Tokens.AccessToken, TokenTypeAccess)
	if err != nil {
		t.Fatalf("访问令牌应有效: %v", err)
	}
	if !claims.IsManager || len(claims.Permissions) == 0 {
		t.Error("访问令牌应携带主管标记与权限集")
	}
}

// TestAuthService_LoginWrongPassword 测试凭据错误
func TestAuthService_LoginWrongPassword(t *testing.T) {
	svc, f := newAuthFixture(&fakeAuthenticator{err: ldapauth.ErrAuthFailed})

	_, err := svc.Login(context.Background(), LoginInput{
		Username: "nguyenvana",
		Password: "wrong-password",
		Meta:     testMeta(),
	})
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("期望 ErrAuthenticationFailed, 实际 %v", err)
	}

	// 失败应记录到审计表
	if len(f.audit.attempts) != 1 {
		t.Fatalf("期望 1 条失败尝试, 实际 %d", len(f.audit.attempts))
	}
	if f.audit.attempts[0].IsSuccessful {
		t.Error("尝试应标记为失败")
	}
	if f.audit.attempts[0].FailureReason != "invalid_credentials" {
		t.Errorf("失败原因不匹配: %s", f.audit.attempts[0].FailureReason)
	}
}

// TestAuthService_LoginDirectoryDown 测试目录服务不可达
func TestAuthService_LoginDirectoryDown(t *testing.T) {
	svc, f := newAuthFixture(&fakeAuthenticator{err: ldapauth.ErrUnavailable})

	_, err := svc.Login(context.Background(), LoginInput{
		Username: "nguyenvana",
		Password: "password",
		Meta:     testMeta(),
	})
	if !errors.Is(err, ErrDirectoryUnavailable) {
		t.Fatalf("期望 ErrDirectoryUnavailable, 实际 %v", err)
	}
	// 服务不可达不算用户的失败尝试
	if len(f.audit.attempts) != 0 {
		t.Errorf("不应记录失败尝试, 实际 %d 条", len(f.audit.attempts))
	}
}

// TestAuthService_LoginNoDirectory 测试目录后端未配置
func TestAuthService_LoginNoDirectory(t *testing.T) {
	svc, _ := newAuthFixture(nil)

	_, err := svc.Login(context.Background(), LoginInput{
		Username: "nguyenvana",
		Password: "password",
		Meta:     testMeta(),
	})
	if !errors.Is(err, ErrDirectoryUnavailable) {
		t.Fatalf("期望 ErrDirectoryUnavailable, 实际 %v", err)
	}
}

// TestAuthService_LoginNonManager 测试无下属用户的权限集
func TestAuthService_LoginNonManager(t *testing.T) {
	result := directoryResult()
	result.Subordinates = nil
	result.User.Department = "IT"
	svc, _ := newAuthFixture(&fakeAuthenticator{result: result})

	out, err := svc.Login(context.Background(), LoginInput{
		Username: "nguyenvana",
		Password: "password",
		Meta:     testMeta(),
	})
	if err != nil {
		t.Fatalf("登入失败: %v", err)
	}
	if out.User.IsManager {
		t.Error("无下属的用户不应为主管")
	}
	if HasAllPermissions(out.User.Permissions, []string{"user:write"}) {
		t.Error("非主管不应有写权限")
	}
	if !HasAllPermissions(out.User.Permissions, []string{"user:read", "it:read", "system:read"}) {
		t.Errorf("IT 部门权限集不完整: %v", out.User.Permissions)
	}
}

// TestAuthService_LoginMissingEmployeeID 测试目录缺员工编号时回退到账号
func TestAuthService_LoginMissingEmployeeID(t *testing.T) {
	result := directoryResult()
	result.User.EmployeeID = ""
	svc, _ := newAuthFixture(&fakeAuthenticator{result: result})

	out, err := svc.Login(context.Background(), LoginInput{
		Username: "nguyenvana",
		Password: "password",
		Meta:     testMeta(),
	})
	if err != nil {
		t.Fatalf("登入失败: %v", err)
	}
	if out.User.UserID != "nguyenvana" {
		t.Errorf("缺员工编号时应回退到账号, 实际 %s", out.User.UserID)
	}
}

// TestAuthService_LoginThrottled 测试失败过多后限流
func TestAuthService_LoginThrottled(t *testing.T) {
	_, client := setupTestRedis(t)
	throttle := NewLoginThrottle(client, 2, 15*time.Minute, nil)

	f := newSessionManagerFixture()
	directory := &fakeAuthenticator{err: ldapauth.ErrAuthFailed}
	svc := NewAuthService(directory, f.manager, throttle, nil)

	input := LoginInput{Username: "nguyenvana", Password: "wrong", Meta: testMeta()}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.Login(ctx, input); !errors.Is(err, ErrAuthenticationFailed) {
			t.Fatalf("期望 ErrAuthenticationFailed, 实际 %v", err)
		}
	}

	_, err := svc.Login(ctx, input)
	if !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("期望 ErrTooManyAttempts, 实际 %v", err)
	}
	// 被限流的请求不应再触达目录服务
	if directory.calls != 2 {
		t.Errorf("目录服务应只被调用 2 次, 实际 %d", directory.calls)
	}
}

package service

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// *For any* 声明组合，生成后解码应得到相同的身份与权限数据
func TestProperty_TokenRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	svc := newTestTokenService()

	nonEmptyGen := gen.AlphaString().Map(func(s string) string {
		if s == "" {
			return "x"
		}
		if len(s) > 30 {
			return s[:30]
		}
		return s
	})

	properties.Property("往返一致", prop.ForAll(
		func(username, userID, department string, isManager bool) bool {
			claims := &TokenClaims{
				Username:    username,
				UserID:      userID,
				SessionID:   "property-session",
				Department:  department,
				IsManager:   isManager,
				Permissions: PermissionsFor(department, isManager),
			}

			token, _, err := svc.GenerateAccessToken(claims, time.Hour)
			if err != nil {
				return false
			}
			decoded, err := svc.Decode(token, true)
			if err != nil {
				return false
			}
			if decoded.Username != username || decoded.UserID != userID {
				return false
			}
			if decoded.Department != department || decoded.IsManager != isManager {
				return false
			}
			return len(decoded.Permissions) == len(claims.Permissions)
		},
		nonEmptyGen, nonEmptyGen, nonEmptyGen, gen.Bool(),
	))

	properties.TestingRun(t)
}

// *For any* 用不同密钥签发的令牌，本服务解码必然失败
func TestProperty_TokenWrongSecretRejected(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	svc := NewTokenService("the-real-secret", "HS256")

	secretGen := gen.AlphaString().Map(func(s string) string {
		return "other-" + s
	})

	properties.Property("异密钥令牌被拒绝", prop.ForAll(
		func(secret, username string) bool {
			other := NewTokenService(secret, "HS256")
			token, _, err := other.GenerateAccessToken(&TokenClaims{
				Username:  username,
				UserID:    "1",
				SessionID: "sid",
			}, time.Hour)
			if err != nil {
				return false
			}
			_, err = svc.Decode(token, true)
			return err == ErrInvalidToken
		},
		secretGen, gen.AlphaString(),
	))

	properties.TestingRun(t)
}

package service

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestPermissionsFor 测试各部门与身份组合的权限集
func TestPermissionsFor(t *testing.T) {
	cases := []struct {
		name       string
		department string
		isManager  bool
		want       []string
	}{
		{
			name:       "普通用户",
			department: "Sales",
			isManager:  false,
			want:       []string{"user:read"},
		},
		{
			name:       "HR 普通员工",
			department: "HR",
			isManager:  false,
			want:       []string{"employee:read", "hr:read", "user:read"},
		},
		{
			name:       "财务普通员工",
			department: "Finance",
			isManager:  false,
			want:       []string{"finance:read", "financial_records:read", "user:read"},
		},
		{
			name:       "IT 普通员工",
			department: "it",
			isManager:  false,
			want:       []string{"it:read", "system:read", "user:read"},
		},
		{
			name:       "非部门主管",
			department: "Sales",
			isManager:  true,
			want: []string{
				"employee:read", "employee:write", "reports:read",
				"subordinates:read", "user:read", "user:write",
			},
		},
		{
			name:       "HR 主管",
			department: "HR",
			isManager:  true,
			want: []string{
				"employee:read", "employee:write", "hr:read", "reports:read",
				"subordinates:read", "user:read", "user:write",
			},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := PermissionsFor(c.department, c.isManager)
			if !reflect.DeepEqual(got, c.want) {
				t.Errorf("权限集不匹配:\n期望 %v\n实际 %v", c.want, got)
			}
		})
	}
}

// TestHasAllPermissions 测试权限覆盖检查
func TestHasAllPermissions(t *testing.T) {
	granted := []string{"user:read", "hr:read", "employee:read"}

	if !HasAllPermissions(granted, []string{"user:read", "hr:read"}) {
		t.Error("已授予的权限应通过检查")
	}
	if HasAllPermissions(granted, []string{"user:write"}) {
		t.Error("未授予的权限不应通过检查")
	}
	if !HasAllPermissions(granted, nil) {
		t.Error("空需求应恒通过")
	}
}

// *For any* 部门与身份组合，权限推导必须是确定且有序的
func TestProperty_PermissionsDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("确定性与有序性", prop.ForAll(
		func(department string, isManager bool) bool {
			first := PermissionsFor(department, isManager)
			second := PermissionsFor(department, isManager)
			if !reflect.DeepEqual(first, second) {
				return false
			}
			// 基础权限恒在
			if !HasAllPermissions(first, []string{PermissionUserRead}) {
				return false
			}
			// 结果有序无重复
			for i := 1; i < len(first); i++ {
				if first[i-1] >= first[i] {
					return false
				}
			}
			return true
		},
		gen.AlphaString(), gen.Bool(),
	))

	// 大小写不敏感
	properties.Property("部门名大小写不敏感", prop.ForAll(
		func(isManager bool) bool {
			upper := PermissionsFor("HR", isManager)
			lower := PermissionsFor("hr", isManager)
			return reflect.DeepEqual(upper, lower)
		},
		gen.Bool(),
	))

	properties.TestingRun(t)
}

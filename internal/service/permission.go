package service

import (
	"sort"
	"strings"
)

// 基础权限，所有登入用户都有
const PermissionUserRead = "user:read"

// departmentPermissions 部门附加权限
var departmentPermissions = map[string][]string{
	"hr":      {"hr:read", "employee:read"},
	"finance": {"finance:read", "financial_records:read"},
	"it":      {"it:read", "system:read"},
}

// managerPermissions 主管附加权限
var managerPermissions = []string{
	"user:write",
	"employee:read", // 主管必须有员工读取权限
	"employee:write",
	"subordinates:read",
	"reports:read",
}

// PermissionsFor 根据部门与主管身份计算权限集
// 纯函数：相同输入恒产出相同的有序结果，登入时计算一次并写入访问令牌
func PermissionsFor(department string, isManager bool) []string {
	set := map[string]struct{}{
		PermissionUserRead: {},
	}

	for _, p := range departmentPermissions[strings.ToLower(department)] {
		set[p] = struct{}{}
	}

	if isManager {
		for _, p := range managerPermissions {
			set[p] = struct{}{}
		}
	}

	permissions := make([]string, 0, len(set))
	for p := range set {
		permissions = append(permissions, p)
	}
	sort.Strings(permissions)
	return permissions
}

// HasAllPermissions 检查 granted 是否覆盖全部 required
func HasAllPermissions(granted, required []string) bool {
	set := make(map[string]struct{}, len(granted))
	for _, p := range granted {
		set[p] = struct{}{}
	}
	for _, p := range required {
		if _, ok := set[p]; !ok {
			return false
		}
	}
	return true
}

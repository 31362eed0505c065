// Package policy 请求授权谓词
//
// 每个谓词是 (HTTP 方法, 调用方, 目标资源) 的纯函数，端点按需组合，
// 不构成层级。职员角色列表通过 Config 显式注入，不依赖进程级全局状态。
package policy

import (
	"net/http"

	"reviews-api/internal/apiserver/auth"
	"reviews-api/internal/shared/model"
)

// Decision 授权判定结果
type Decision int

const (
	// Allow 放行
	Allow Decision = iota
	// Unauthorized 缺少凭证（401）
	Unauthorized
	// Forbidden 凭证有效但权限不足（403）
	Forbidden
)

// Allowed 是否放行
func (d Decision) Allowed() bool {
	return d == Allow
}

// HTTPStatus 判定结果对应的 HTTP 状态码
func (d Decision) HTTPStatus() int {
	switch d {
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	}
	return http.StatusOK
}

// Message 判定结果对应的错误消息
func (d Decision) Message() string {
	switch d {
	case Unauthorized:
		return "authentication required"
	case Forbidden:
		return "permission denied"
	}
	return ""
}

// Config 策略配置
type Config struct {
	// StaffRoles 拥有编辑他人内容权限的角色列表
	StaffRoles []model.Role `yaml:"staff_roles"`
}

// DefaultConfig 返回默认策略配置
func DefaultConfig() Config {
	return Config{StaffRoles: []model.Role{model.RoleAdmin, model.RoleModerator}}
}

// Policy 授权谓词集合
type Policy struct {
	staff map[model.Role]bool
}

// New 创建策略组件
func New(cfg Config) *Policy {
	staff := make(map[model.Role]bool, len(cfg.StaffRoles))
	for _, r := range cfg.StaffRoles {
		staff[r] = true
	}
	return &Policy{staff: staff}
}

// safeMethod 只读方法不做写授权检查
func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// IsStaff 角色是否属于职员（admin/moderator）
func (p *Policy) IsStaff(role model.Role) bool {
	return p.staff[role]
}

// Authenticated 仅要求携带有效凭证
func (p *Policy) Authenticated(caller *auth.AuthUser) Decision {
	if caller == nil {
		return Unauthorized
	}
	return Allow
}

// AdminWrite 读开放、写仅限管理员
func (p *Policy) AdminWrite(method string, caller *auth.AuthUser) Decision {
	if safeMethod(method) {
		return Allow
	}
	if caller == nil {
		return Unauthorized
	}
	if caller.Role == model.RoleAdmin {
		return Allow
	}
	return Forbidden
}

// AdminOnly 所有方法仅限管理员（含读取）
func (p *Policy) AdminOnly(caller *auth.AuthUser) Decision {
	if caller == nil {
		return Unauthorized
	}
	if caller.Role == model.RoleAdmin {
		return Allow
	}
	return Forbidden
}

// AuthorOrStaff 读开放、写仅限资源作者或职员
func (p *Policy) AuthorOrStaff(method string, caller *auth.AuthUser, authorID string) Decision {
	if safeMethod(method) {
		return Allow
	}
	if caller == nil {
		return Unauthorized
	}
	if caller.ID == authorID || p.staff[caller.Role] {
		return Allow
	}
	return Forbidden
}

// SelfOnly 仅允许本人 GET/PATCH 自己的资料，其余一律拒绝
func (p *Policy) SelfOnly(method string, caller *auth.AuthUser, targetUsername string) Decision {
	if caller == nil {
		return Unauthorized
	}
	if (method == http.MethodGet || method == http.MethodPatch) && caller.Username == targetUsername {
		return Allow
	}
	return Forbidden
}

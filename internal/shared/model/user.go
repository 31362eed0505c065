package model

import (
	"fmt"
	"time"
)

// Role 用户角色（封闭枚举）
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// ParseRole 解析角色字符串，非法值返回错误
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleModerator, RoleAdmin:
		return Role(s), nil
	}
	return "", fmt.Errorf("invalid role: %q", s)
}

// User 用户
type User struct {
	ID       string `json:"id" db:"id"`
	Username string `json:"username" db:"username"`
	Email    string `json:"email" db:"email"`
	Bio      string `json:"bio" db:"bio"`
	Role     Role   `json:"role" db:"role"`

	// ConfirmationHash 当前激活确认码的 bcrypt 哈希，重新签发时整体覆盖
	ConfirmationHash string `json:"-" db:"confirmation_hash"` // never expose in JSON

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsAdmin 是否管理员
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsModerator 是否协管员
func (u *User) IsModerator() bool {
	return u.Role == RoleModerator
}

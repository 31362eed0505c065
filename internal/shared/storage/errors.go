// Package storage 定义存储层抽象接口与领域错误
//
// 领域错误隔离业务层与底层存储引擎的错误类型，
// 各驱动实现负责将底层错误（sql.ErrNoRows、唯一约束冲突）转换为这些错误。
package storage

import "errors"

var (
	// ErrNotFound 实体不存在
	// 替代 sql.ErrNoRows
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate 唯一键冲突（用户名/邮箱/slug 重复、同一作者重复评价）
	ErrDuplicate = errors.New("duplicate: entity already exists")
)

package repository

import (
	"context"
	"database/sql"

	"reviews-api/internal/shared/model"
	"reviews-api/internal/shared/storage"
)

const userColumns = `id, username, email, bio, role, confirmation_hash, created_at, updated_at`

func scanUser(row *sql.Row) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Bio, &u.Role,
		&u.ConfirmationHash, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// CreateUser 创建用户；用户名或邮箱重复返回 storage.ErrDuplicate
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO users (id, username, email, bio, role, confirmation_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`),
		user.ID, user.Username, user.Email, user.Bio, user.Role,
		user.ConfirmationHash, user.CreatedAt, user.UpdatedAt,
	)
	if s.dialect.IsUniqueViolation(err) {
		return storage.ErrDuplicate
	}
	return err
}

// GetUserByID 通过 ID 查找用户，不存在返回 (nil, nil)
func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+userColumns+` FROM users WHERE id = $1`), id))
}

// GetUserByUsername 通过用户名查找用户，不存在返回 (nil, nil)
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+userColumns+` FROM users WHERE username = $1`), username))
}

// GetUserByEmail 通过邮箱查找用户，不存在返回 (nil, nil)
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+userColumns+` FROM users WHERE email = $1`), email))
}

// UpdateUser 更新用户资料字段
func (s *Store) UpdateUser(ctx context.Context, user *model.User) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE users SET email = $1, bio = $2, role = $3, updated_at = $4 WHERE id = $5`),
		user.Email, user.Bio, user.Role, user.UpdatedAt, user.ID,
	)
	if s.dialect.IsUniqueViolation(err) {
		return storage.ErrDuplicate
	}
	return err
}

// UpdateUserConfirmation 覆盖确认码哈希，旧确认码随之失效
func (s *Store) UpdateUserConfirmation(ctx context.Context, id, confirmationHash string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE users SET confirmation_hash = $1, updated_at = `+s.dialect.CurrentTimestamp()+` WHERE id = $2`),
		confirmationHash, id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListUsers 列出所有用户
func (s *Store) ListUsers(ctx context.Context) ([]*model.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u := &model.User{}
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Bio, &u.Role,
			&u.ConfirmationHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// DeleteUserByUsername 删除用户；其评价与评论随外键级联删除
func (s *Store) DeleteUserByUsername(ctx context.Context, username string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`DELETE FROM users WHERE username = $1`), username)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

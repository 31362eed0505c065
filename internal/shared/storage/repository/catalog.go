package repository

import (
	"context"
	"database/sql"
	"math"
	"strings"

	"reviews-api/internal/shared/model"
	"reviews-api/internal/shared/storage"
)

// ============================================================================
// Category
// ============================================================================

// CreateCategory 创建分类；slug 重复返回 storage.ErrDuplicate
func (s *Store) CreateCategory(ctx context.Context, c *model.Category) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO categories (id, name, slug) VALUES ($1, $2, $3)`),
		c.ID, c.Name, c.Slug,
	)
	if s.dialect.IsUniqueViolation(err) {
		return storage.ErrDuplicate
	}
	return err
}

// ListCategories 列出所有分类
func (s *Store) ListCategories(ctx context.Context) ([]*model.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, slug FROM categories ORDER BY slug`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []*model.Category
	for rows.Next() {
		c := &model.Category{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// GetCategoryBySlug 通过 slug 查找分类，不存在返回 (nil, nil)
func (s *Store) GetCategoryBySlug(ctx context.Context, slug string) (*model.Category, error) {
	c := &model.Category{}
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, name, slug FROM categories WHERE slug = $1`), slug,
	).Scan(&c.ID, &c.Name, &c.Slug)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// DeleteCategoryBySlug 删除分类；引用它的作品 category 置空（SET NULL），不级联
func (s *Store) DeleteCategoryBySlug(ctx context.Context, slug string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`DELETE FROM categories WHERE slug = $1`), slug)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ============================================================================
// Genre
// ============================================================================

// CreateGenre 创建体裁；slug 重复返回 storage.ErrDuplicate
func (s *Store) CreateGenre(ctx context.Context, g *model.Genre) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO genres (id, name, slug) VALUES ($1, $2, $3)`),
		g.ID, g.Name, g.Slug,
	)
	if s.dialect.IsUniqueViolation(err) {
		return storage.ErrDuplicate
	}
	return err
}

// ListGenres 列出体裁；search 非空时按名称做大小写不敏感的子串过滤
func (s *Store) ListGenres(ctx context.Context, search string) ([]*model.Genre, error) {
	query := `SELECT id, name, slug FROM genres ORDER BY slug`
	var args []interface{}
	if search != "" {
		query = s.rebind(`SELECT id, name, slug FROM genres WHERE LOWER(name) LIKE $1 ORDER BY slug`)
		args = append(args, "%"+strings.ToLower(search)+"%")
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var genres []*model.Genre
	for rows.Next() {
		g := &model.Genre{}
		if err := rows.Scan(&g.ID, &g.Name, &g.Slug); err != nil {
			return nil, err
		}
		genres = append(genres, g)
	}
	return genres, rows.Err()
}

// GetGenreBySlug 通过 slug 查找体裁，不存在返回 (nil, nil)
func (s *Store) GetGenreBySlug(ctx context.Context, slug string) (*model.Genre, error) {
	g := &model.Genre{}
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, name, slug FROM genres WHERE slug = $1`), slug,
	).Scan(&g.ID, &g.Name, &g.Slug)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return g, err
}

// DeleteGenreBySlug 删除体裁及其作品关联
func (s *Store) DeleteGenreBySlug(ctx context.Context, slug string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`DELETE FROM genres WHERE slug = $1`), slug)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ============================================================================
// Title
// ============================================================================

// titleSelect 作品查询：联分类，聚合评分均值
const titleSelect = `
	SELECT t.id, t.name, t.year, t.description, t.created_at, t.updated_at,
	       c.id, c.name, c.slug,
	       AVG(r.score)
	FROM titles t
	LEFT JOIN categories c ON c.id = t.category_id
	LEFT JOIN reviews r ON r.title_id = t.id`

const titleGroup = ` GROUP BY t.id, t.name, t.year, t.description, t.created_at, t.updated_at, c.id, c.name, c.slug`

type titleScanner interface {
	Scan(dest ...interface{}) error
}

func scanTitle(row titleScanner) (*model.Title, error) {
	t := &model.Title{}
	var catID, catName, catSlug sql.NullString
	var rating sql.NullFloat64
	err := row.Scan(&t.ID, &t.Name, &t.Year, &t.Description, &t.CreatedAt, &t.UpdatedAt,
		&catID, &catName, &catSlug, &rating)
	if err != nil {
		return nil, err
	}
	if catID.Valid {
		t.Category = &model.Category{ID: catID.String, Name: catName.String, Slug: catSlug.String}
	}
	if rating.Valid {
		r := int(math.Round(rating.Float64))
		t.Rating = &r
	}
	return t, nil
}

// CreateTitle 创建作品（不含体裁关联，见 SetTitleGenres）
func (s *Store) CreateTitle(ctx context.Context, t *model.Title) error {
	var categoryID sql.NullString
	if t.Category != nil {
		categoryID = sql.NullString{String: t.Category.ID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO titles (id, name, year, description, category_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`),
		t.ID, t.Name, t.Year, t.Description, categoryID, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

// GetTitle 通过 ID 查找作品，附带分类、体裁和评分均值；不存在返回 (nil, nil)
func (s *Store) GetTitle(ctx context.Context, id string) (*model.Title, error) {
	t, err := scanTitle(s.db.QueryRowContext(ctx, s.rebind(
		titleSelect+` WHERE t.id = $1`+titleGroup), id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadTitleGenres(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ListTitles 列出所有作品
func (s *Store) ListTitles(ctx context.Context) ([]*model.Title, error) {
	rows, err := s.db.QueryContext(ctx, titleSelect+titleGroup+` ORDER BY t.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var titles []*model.Title
	for rows.Next() {
		t, err := scanTitle(rows)
		if err != nil {
			return nil, err
		}
		titles = append(titles, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, t := range titles {
		if err := s.loadTitleGenres(ctx, t); err != nil {
			return nil, err
		}
	}
	return titles, nil
}

// UpdateTitle 更新作品字段与分类引用
func (s *Store) UpdateTitle(ctx context.Context, t *model.Title) error {
	var categoryID sql.NullString
	if t.Category != nil {
		categoryID = sql.NullString{String: t.Category.ID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE titles SET name = $1, year = $2, description = $3, category_id = $4, updated_at = $5
		 WHERE id = $6`),
		t.Name, t.Year, t.Description, categoryID, t.UpdatedAt, t.ID,
	)
	return err
}

// DeleteTitle 删除作品；体裁关联与评价（及其评论）级联删除
func (s *Store) DeleteTitle(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`DELETE FROM titles WHERE id = $1`), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SetTitleGenres 整体替换作品的体裁关联（事务内先删后插）
func (s *Store) SetTitleGenres(ctx context.Context, titleID string, genreIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.rebind(
		`DELETE FROM title_genres WHERE title_id = $1`), titleID); err != nil {
		return err
	}
	for _, gid := range genreIDs {
		if _, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO title_genres (title_id, genre_id) VALUES ($1, $2)`), titleID, gid); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// loadTitleGenres 填充作品的体裁列表
func (s *Store) loadTitleGenres(ctx context.Context, t *model.Title) error {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT g.id, g.name, g.slug
		 FROM genres g
		 JOIN title_genres tg ON tg.genre_id = g.id
		 WHERE tg.title_id = $1
		 ORDER BY g.slug`), t.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	t.Genres = []model.Genre{}
	for rows.Next() {
		var g model.Genre
		if err := rows.Scan(&g.ID, &g.Name, &g.Slug); err != nil {
			return err
		}
		t.Genres = append(t.Genres, g)
	}
	return rows.Err()
}

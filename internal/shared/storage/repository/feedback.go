package repository

import (
	"context"
	"database/sql"

	"reviews-api/internal/shared/model"
	"reviews-api/internal/shared/storage"
)

// ============================================================================
// Review
// ============================================================================

const reviewSelect = `
	SELECT r.id, r.text, r.author_id, u.username, r.score, r.title_id, r.pub_date
	FROM reviews r
	JOIN users u ON u.id = r.author_id`

// CreateReview 创建评价
// 同一作者对同一作品的第二条评价触发唯一约束，返回 storage.ErrDuplicate。
// 唯一性由约束而非先查后插保证，避免并发竞态。
func (s *Store) CreateReview(ctx context.Context, rv *model.Review) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO reviews (id, text, author_id, score, title_id, pub_date)
		 VALUES ($1, $2, $3, $4, $5, $6)`),
		rv.ID, rv.Text, rv.AuthorID, rv.Score, rv.TitleID, rv.PubDate,
	)
	if s.dialect.IsUniqueViolation(err) {
		return storage.ErrDuplicate
	}
	return err
}

// GetReview 通过 ID 查找评价，不存在返回 (nil, nil)
func (s *Store) GetReview(ctx context.Context, id string) (*model.Review, error) {
	rv := &model.Review{}
	err := s.db.QueryRowContext(ctx, s.rebind(
		reviewSelect+` WHERE r.id = $1`), id,
	).Scan(&rv.ID, &rv.Text, &rv.AuthorID, &rv.Author, &rv.Score, &rv.TitleID, &rv.PubDate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rv, err
}

// ListReviewsByTitle 列出作品下的所有评价
func (s *Store) ListReviewsByTitle(ctx context.Context, titleID string) ([]*model.Review, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		reviewSelect+` WHERE r.title_id = $1 ORDER BY r.pub_date DESC`), titleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []*model.Review
	for rows.Next() {
		rv := &model.Review{}
		if err := rows.Scan(&rv.ID, &rv.Text, &rv.AuthorID, &rv.Author,
			&rv.Score, &rv.TitleID, &rv.PubDate); err != nil {
			return nil, err
		}
		reviews = append(reviews, rv)
	}
	return reviews, rows.Err()
}

// UpdateReview 更新评价正文与评分
func (s *Store) UpdateReview(ctx context.Context, rv *model.Review) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE reviews SET text = $1, score = $2 WHERE id = $3`),
		rv.Text, rv.Score, rv.ID,
	)
	return err
}

// DeleteReview 删除评价；其评论级联删除
func (s *Store) DeleteReview(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`DELETE FROM reviews WHERE id = $1`), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ============================================================================
// Comment
// ============================================================================

const commentSelect = `
	SELECT c.id, c.text, c.author_id, u.username, c.review_id, c.pub_date
	FROM comments c
	JOIN users u ON u.id = c.author_id`

// CreateComment 创建评论
func (s *Store) CreateComment(ctx context.Context, c *model.Comment) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO comments (id, text, author_id, review_id, pub_date)
		 VALUES ($1, $2, $3, $4, $5)`),
		c.ID, c.Text, c.AuthorID, c.ReviewID, c.PubDate,
	)
	return err
}

// GetComment 通过 ID 查找评论，不存在返回 (nil, nil)
func (s *Store) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	c := &model.Comment{}
	err := s.db.QueryRowContext(ctx, s.rebind(
		commentSelect+` WHERE c.id = $1`), id,
	).Scan(&c.ID, &c.Text, &c.AuthorID, &c.Author, &c.ReviewID, &c.PubDate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// ListCommentsByReview 列出评价下的所有评论
func (s *Store) ListCommentsByReview(ctx context.Context, reviewID string) ([]*model.Comment, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		commentSelect+` WHERE c.review_id = $1 ORDER BY c.pub_date`), reviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []*model.Comment
	for rows.Next() {
		c := &model.Comment{}
		if err := rows.Scan(&c.ID, &c.Text, &c.AuthorID, &c.Author,
			&c.ReviewID, &c.PubDate); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// UpdateComment 更新评论正文
func (s *Store) UpdateComment(ctx context.Context, c *model.Comment) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE comments SET text = $1 WHERE id = $2`),
		c.Text, c.ID,
	)
	return err
}

// DeleteComment 删除评论
func (s *Store) DeleteComment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`DELETE FROM comments WHERE id = $1`), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

package storage

import (
	"context"

	"reviews-api/internal/shared/model"
)

// UserStore 用户目录
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	// UpdateUserConfirmation 覆盖确认码哈希；旧哈希随之失效
	UpdateUserConfirmation(ctx context.Context, id, confirmationHash string) error
	ListUsers(ctx context.Context) ([]*model.User, error)
	DeleteUserByUsername(ctx context.Context, username string) error
}

// CatalogStore 分类、体裁与作品
type CatalogStore interface {
	CreateCategory(ctx context.Context, c *model.Category) error
	ListCategories(ctx context.Context) ([]*model.Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*model.Category, error)
	DeleteCategoryBySlug(ctx context.Context, slug string) error

	CreateGenre(ctx context.Context, g *model.Genre) error
	// ListGenres 列出体裁；search 非空时按名称过滤
	ListGenres(ctx context.Context, search string) ([]*model.Genre, error)
	GetGenreBySlug(ctx context.Context, slug string) (*model.Genre, error)
	DeleteGenreBySlug(ctx context.Context, slug string) error

	CreateTitle(ctx context.Context, t *model.Title) error
	GetTitle(ctx context.Context, id string) (*model.Title, error)
	ListTitles(ctx context.Context) ([]*model.Title, error)
	UpdateTitle(ctx context.Context, t *model.Title) error
	DeleteTitle(ctx context.Context, id string) error
	// SetTitleGenres 整体替换作品的体裁关联
	SetTitleGenres(ctx context.Context, titleID string, genreIDs []string) error
}

// FeedbackStore 评价与评论
type FeedbackStore interface {
	CreateReview(ctx context.Context, rv *model.Review) error
	GetReview(ctx context.Context, id string) (*model.Review, error)
	ListReviewsByTitle(ctx context.Context, titleID string) ([]*model.Review, error)
	UpdateReview(ctx context.Context, rv *model.Review) error
	DeleteReview(ctx context.Context, id string) error

	CreateComment(ctx context.Context, c *model.Comment) error
	GetComment(ctx context.Context, id string) (*model.Comment, error)
	ListCommentsByReview(ctx context.Context, reviewID string) ([]*model.Comment, error)
	UpdateComment(ctx context.Context, c *model.Comment) error
	DeleteComment(ctx context.Context, id string) error
}

// PersistentStore 持久化存储层完整接口
//
// 设计原则：依赖倒置 (DIP)
//   - 调用方只依赖接口，不知道具体实现
//   - 具体实现在 repository 包，驱动差异由 dbutil.Dialect 屏蔽
type PersistentStore interface {
	UserStore
	CatalogStore
	FeedbackStore

	Close() error
}

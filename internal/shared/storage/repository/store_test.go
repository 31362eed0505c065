// Package repository SQLite 集成测试
//
// 使用 SQLite 内存数据库验证 repository 层所有存储接口的正确性。
// 无需外部数据库依赖，可在任何环境下运行。
package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"reviews-api/internal/shared/model"
	"reviews-api/internal/shared/storage"
	"reviews-api/internal/shared/storage/dbutil"
	sqlitedriver "reviews-api/internal/shared/storage/driver/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore 创建用于测试的 SQLite 内存数据库 Store
func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sqlitedriver.Open(":memory:")
	require.NoError(t, err)
	dialect := sqlitedriver.NewDialect()
	require.NoError(t, dialect.AutoMigrate(db))
	store := NewStore(db, dialect)
	t.Cleanup(func() { store.Close() })
	return store
}

func mustCreateUser(t *testing.T, s *Store, username string) *model.User {
	t.Helper()
	now := time.Now().Truncate(time.Second)
	u := &model.User{
		ID:        "usr-" + username,
		Username:  username,
		Email:     username + "@example.com",
		Role:      model.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func mustCreateTitle(t *testing.T, s *Store, id, name string) *model.Title {
	t.Helper()
	now := time.Now().Truncate(time.Second)
	title := &model.Title{
		ID:        id,
		Name:      name,
		Year:      2020,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateTitle(context.Background(), title))
	return title
}

// ============================================================================
// Dialect 基础测试
// ============================================================================

func TestDialectTypes(t *testing.T) {
	d := sqlitedriver.NewDialect()
	assert.Equal(t, dbutil.DriverSQLite, d.DriverType())
}

func TestRebind(t *testing.T) {
	d := sqlitedriver.NewDialect()
	assert.Equal(t, "SELECT * FROM t WHERE id = ? AND name = ?",
		d.Rebind("SELECT * FROM t WHERE id = $1 AND name = $2"))
}

// ============================================================================
// User 测试
// ============================================================================

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := mustCreateUser(t, s, "alice")

	// Get by ID
	got, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, model.RoleUser, got.Role)

	// Get by username / email
	got, err = s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got)

	got, err = s.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)

	// Get not found
	got, err = s.GetUserByUsername(ctx, "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Update
	u.Bio = "updated bio"
	u.Role = model.RoleModerator
	require.NoError(t, s.UpdateUser(ctx, u))
	got, _ = s.GetUserByUsername(ctx, "alice")
	assert.Equal(t, "updated bio", got.Bio)
	assert.Equal(t, model.RoleModerator, got.Role)

	// List
	mustCreateUser(t, s, "bob")
	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	// Delete
	require.NoError(t, s.DeleteUserByUsername(ctx, "alice"))
	got, _ = s.GetUserByUsername(ctx, "alice")
	assert.Nil(t, got)

	// Delete not found
	err = s.DeleteUserByUsername(ctx, "alice")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUserUniqueness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	mustCreateUser(t, s, "alice")

	// 用户名冲突
	err := s.CreateUser(ctx, &model.User{
		ID: "usr-x", Username: "alice", Email: "other@example.com",
		Role: model.RoleUser, CreatedAt: now, UpdatedAt: now,
	})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	// 邮箱冲突
	err = s.CreateUser(ctx, &model.User{
		ID: "usr-y", Username: "carol", Email: "alice@example.com",
		Role: model.RoleUser, CreatedAt: now, UpdatedAt: now,
	})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	// 更新撞上他人邮箱
	bob := mustCreateUser(t, s, "bob")
	bob.Email = "alice@example.com"
	err = s.UpdateUser(ctx, bob)
	assert.ErrorIs(t, err, storage.ErrDuplicate)
}

func TestUpdateUserConfirmation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := mustCreateUser(t, s, "alice")
	require.NoError(t, s.UpdateUserConfirmation(ctx, u.ID, "hash-1"))

	got, _ := s.GetUserByID(ctx, u.ID)
	assert.Equal(t, "hash-1", got.ConfirmationHash)

	// 覆盖旧哈希
	require.NoError(t, s.UpdateUserConfirmation(ctx, u.ID, "hash-2"))
	got, _ = s.GetUserByID(ctx, u.ID)
	assert.Equal(t, "hash-2", got.ConfirmationHash)

	// 不存在的用户
	err := s.UpdateUserConfirmation(ctx, "usr-nope", "hash")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

// ============================================================================
// Catalog 测试
// ============================================================================

func TestCategoryCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &model.Category{ID: "cat-1", Name: "Books", Slug: "books"}
	require.NoError(t, s.CreateCategory(ctx, c))

	// slug 冲突
	err := s.CreateCategory(ctx, &model.Category{ID: "cat-2", Name: "Other", Slug: "books"})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	got, err := s.GetCategoryBySlug(ctx, "books")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Books", got.Name)

	cats, err := s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 1)

	require.NoError(t, s.DeleteCategoryBySlug(ctx, "books"))
	err = s.DeleteCategoryBySlug(ctx, "books")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGenreCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	g := &model.Genre{ID: "gen-1", Name: "Drama", Slug: "drama"}
	require.NoError(t, s.CreateGenre(ctx, g))

	err := s.CreateGenre(ctx, &model.Genre{ID: "gen-2", Name: "Drama 2", Slug: "drama"})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	got, err := s.GetGenreBySlug(ctx, "drama")
	require.NoError(t, err)
	require.NotNil(t, got)

	genres, err := s.ListGenres(ctx, "")
	require.NoError(t, err)
	assert.Len(t, genres, 1)

	require.NoError(t, s.DeleteGenreBySlug(ctx, "drama"))
	err = s.DeleteGenreBySlug(ctx, "drama")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListGenresSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateGenre(ctx, &model.Genre{ID: "gen-1", Name: "Drama", Slug: "drama"}))
	require.NoError(t, s.CreateGenre(ctx, &model.Genre{ID: "gen-2", Name: "Dark Comedy", Slug: "dark-comedy"}))
	require.NoError(t, s.CreateGenre(ctx, &model.Genre{ID: "gen-3", Name: "Horror", Slug: "horror"}))

	// 大小写不敏感的子串匹配
	genres, err := s.ListGenres(ctx, "dRa")
	require.NoError(t, err)
	require.Len(t, genres, 1)
	assert.Equal(t, "drama", genres[0].Slug)

	genres, err = s.ListGenres(ctx, "d")
	require.NoError(t, err)
	assert.Len(t, genres, 2)

	genres, err = s.ListGenres(ctx, "western")
	require.NoError(t, err)
	assert.Empty(t, genres)

	// 空串不过滤
	genres, err = s.ListGenres(ctx, "")
	require.NoError(t, err)
	assert.Len(t, genres, 3)
}

func TestTitleCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	cat := &model.Category{ID: "cat-1", Name: "Movies", Slug: "movies"}
	require.NoError(t, s.CreateCategory(ctx, cat))

	title := &model.Title{
		ID:          "ttl-1",
		Name:        "Test Movie",
		Year:        1999,
		Description: "A movie",
		Category:    cat,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, s.CreateTitle(ctx, title))

	got, err := s.GetTitle(ctx, "ttl-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Test Movie", got.Name)
	assert.Equal(t, 1999, got.Year)
	require.NotNil(t, got.Category)
	assert.Equal(t, "movies", got.Category.Slug)
	assert.Nil(t, got.Rating)

	// 更新
	got.Name = "Renamed"
	got.Category = nil
	require.NoError(t, s.UpdateTitle(ctx, got))
	got, _ = s.GetTitle(ctx, "ttl-1")
	assert.Equal(t, "Renamed", got.Name)
	assert.Nil(t, got.Category)

	// 列表
	mustCreateTitle(t, s, "ttl-2", "Another")
	titles, err := s.ListTitles(ctx)
	require.NoError(t, err)
	assert.Len(t, titles, 2)

	// 删除
	require.NoError(t, s.DeleteTitle(ctx, "ttl-1"))
	got, _ = s.GetTitle(ctx, "ttl-1")
	assert.Nil(t, got)
	err = s.DeleteTitle(ctx, "ttl-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCategoryDeleteKeepsTitles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	cat := &model.Category{ID: "cat-1", Name: "Movies", Slug: "movies"}
	require.NoError(t, s.CreateCategory(ctx, cat))
	require.NoError(t, s.CreateTitle(ctx, &model.Title{
		ID: "ttl-1", Name: "Orphan", Year: 2000, Category: cat,
		CreatedAt: now, UpdatedAt: now,
	}))

	// 删除分类后作品保留，分类字段置空
	require.NoError(t, s.DeleteCategoryBySlug(ctx, "movies"))
	got, err := s.GetTitle(ctx, "ttl-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.Category)
}

func TestSetTitleGenres(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateGenre(ctx, &model.Genre{ID: "gen-1", Name: "Drama", Slug: "drama"}))
	require.NoError(t, s.CreateGenre(ctx, &model.Genre{ID: "gen-2", Name: "Comedy", Slug: "comedy"}))
	mustCreateTitle(t, s, "ttl-1", "Movie")

	require.NoError(t, s.SetTitleGenres(ctx, "ttl-1", []string{"gen-1", "gen-2"}))
	got, err := s.GetTitle(ctx, "ttl-1")
	require.NoError(t, err)
	assert.Len(t, got.Genres, 2)

	// 整体替换
	require.NoError(t, s.SetTitleGenres(ctx, "ttl-1", []string{"gen-2"}))
	got, _ = s.GetTitle(ctx, "ttl-1")
	require.Len(t, got.Genres, 1)
	assert.Equal(t, "comedy", got.Genres[0].Slug)

	// 清空
	require.NoError(t, s.SetTitleGenres(ctx, "ttl-1", nil))
	got, _ = s.GetTitle(ctx, "ttl-1")
	assert.Len(t, got.Genres, 0)
}

// ============================================================================
// Feedback 测试
// ============================================================================

func TestReviewCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	alice := mustCreateUser(t, s, "alice")
	mustCreateTitle(t, s, "ttl-1", "Movie")

	rv := &model.Review{
		ID:       "rev-1",
		Text:     "Great movie",
		AuthorID: alice.ID,
		Score:    9,
		TitleID:  "ttl-1",
		PubDate:  now,
	}
	require.NoError(t, s.CreateReview(ctx, rv))

	got, err := s.GetReview(ctx, "rev-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.Author)
	assert.Equal(t, 9, got.Score)

	// 同一作者同一作品的第二条评价被唯一约束拒绝
	err = s.CreateReview(ctx, &model.Review{
		ID: "rev-2", Text: "Again", AuthorID: alice.ID, Score: 5,
		TitleID: "ttl-1", PubDate: now,
	})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	// 其他作者可以评价
	bob := mustCreateUser(t, s, "bob")
	require.NoError(t, s.CreateReview(ctx, &model.Review{
		ID: "rev-3", Text: "Meh", AuthorID: bob.ID, Score: 4,
		TitleID: "ttl-1", PubDate: now,
	}))

	reviews, err := s.ListReviewsByTitle(ctx, "ttl-1")
	require.NoError(t, err)
	assert.Len(t, reviews, 2)

	// 更新
	got.Text = "Edited"
	got.Score = 10
	require.NoError(t, s.UpdateReview(ctx, got))
	got, _ = s.GetReview(ctx, "rev-1")
	assert.Equal(t, "Edited", got.Text)
	assert.Equal(t, 10, got.Score)

	// 删除
	require.NoError(t, s.DeleteReview(ctx, "rev-1"))
	got, _ = s.GetReview(ctx, "rev-1")
	assert.Nil(t, got)
}

func TestTitleRatingAggregate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	alice := mustCreateUser(t, s, "alice")
	bob := mustCreateUser(t, s, "bob")
	mustCreateTitle(t, s, "ttl-1", "Movie")

	// 无评价时 rating 为空
	got, _ := s.GetTitle(ctx, "ttl-1")
	assert.Nil(t, got.Rating)

	require.NoError(t, s.CreateReview(ctx, &model.Review{
		ID: "rev-1", Text: "a", AuthorID: alice.ID, Score: 7, TitleID: "ttl-1", PubDate: now,
	}))
	require.NoError(t, s.CreateReview(ctx, &model.Review{
		ID: "rev-2", Text: "b", AuthorID: bob.ID, Score: 10, TitleID: "ttl-1", PubDate: now,
	}))

	// (7+10)/2 = 8.5，四舍五入为 9
	got, _ = s.GetTitle(ctx, "ttl-1")
	require.NotNil(t, got.Rating)
	assert.Equal(t, 9, *got.Rating)

	// 列表同样携带评分
	titles, err := s.ListTitles(ctx)
	require.NoError(t, err)
	require.Len(t, titles, 1)
	require.NotNil(t, titles[0].Rating)
	assert.Equal(t, 9, *titles[0].Rating)
}

func TestCommentCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	alice := mustCreateUser(t, s, "alice")
	mustCreateTitle(t, s, "ttl-1", "Movie")
	require.NoError(t, s.CreateReview(ctx, &model.Review{
		ID: "rev-1", Text: "review", AuthorID: alice.ID, Score: 8, TitleID: "ttl-1", PubDate: now,
	}))

	c := &model.Comment{
		ID:       "cmt-1",
		Text:     "I agree",
		AuthorID: alice.ID,
		ReviewID: "rev-1",
		PubDate:  now,
	}
	require.NoError(t, s.CreateComment(ctx, c))

	got, err := s.GetComment(ctx, "cmt-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.Author)

	comments, err := s.ListCommentsByReview(ctx, "rev-1")
	require.NoError(t, err)
	assert.Len(t, comments, 1)

	got.Text = "Edited comment"
	require.NoError(t, s.UpdateComment(ctx, got))
	got, _ = s.GetComment(ctx, "cmt-1")
	assert.Equal(t, "Edited comment", got.Text)

	require.NoError(t, s.DeleteComment(ctx, "cmt-1"))
	got, _ = s.GetComment(ctx, "cmt-1")
	assert.Nil(t, got)
}

func TestCascadeDeletes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	alice := mustCreateUser(t, s, "alice")
	mustCreateTitle(t, s, "ttl-1", "Movie")
	require.NoError(t, s.CreateReview(ctx, &model.Review{
		ID: "rev-1", Text: "review", AuthorID: alice.ID, Score: 8, TitleID: "ttl-1", PubDate: now,
	}))
	require.NoError(t, s.CreateComment(ctx, &model.Comment{
		ID: "cmt-1", Text: "comment", AuthorID: alice.ID, ReviewID: "rev-1", PubDate: now,
	}))

	// 删除作品级联删除评价和评论
	require.NoError(t, s.DeleteTitle(ctx, "ttl-1"))
	rv, _ := s.GetReview(ctx, "rev-1")
	assert.Nil(t, rv)
	cmt, _ := s.GetComment(ctx, "cmt-1")
	assert.Nil(t, cmt)
}

func TestDeleteReviewCascadesComments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	alice := mustCreateUser(t, s, "alice")
	mustCreateTitle(t, s, "ttl-1", "Movie")
	require.NoError(t, s.CreateReview(ctx, &model.Review{
		ID: "rev-1", Text: "review", AuthorID: alice.ID, Score: 8, TitleID: "ttl-1", PubDate: now,
	}))
	require.NoError(t, s.CreateComment(ctx, &model.Comment{
		ID: "cmt-1", Text: "comment", AuthorID: alice.ID, ReviewID: "rev-1", PubDate: now,
	}))

	require.NoError(t, s.DeleteReview(ctx, "rev-1"))
	cmt, _ := s.GetComment(ctx, "cmt-1")
	assert.Nil(t, cmt)
}

// TestCascadeOnFreshConnection 验证外键开关对连接池新建的连接同样生效。
// pragma 编码在 DSN 里而不是打开时 Exec 一次，否则丢弃空闲连接后
// 级联删除会静默失效。
func TestCascadeOnFreshConnection(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "reviews.db")
	db, err := sqlitedriver.Open(dsn)
	require.NoError(t, err)
	dialect := sqlitedriver.NewDialect()
	require.NoError(t, dialect.AutoMigrate(db))
	s := NewStore(db, dialect)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	now := time.Now()

	alice := mustCreateUser(t, s, "alice")
	mustCreateTitle(t, s, "ttl-1", "Movie")
	require.NoError(t, s.CreateReview(ctx, &model.Review{
		ID: "rev-1", Text: "review", AuthorID: alice.ID, Score: 8, TitleID: "ttl-1", PubDate: now,
	}))

	// 丢弃空闲连接，后续操作强制走池里新建的连接
	db.SetMaxIdleConns(0)

	require.NoError(t, s.DeleteTitle(ctx, "ttl-1"))
	rv, err := s.GetReview(ctx, "rev-1")
	require.NoError(t, err)
	assert.Nil(t, rv)
}

func TestDeleteUserCascadesFeedback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	alice := mustCreateUser(t, s, "alice")
	mustCreateTitle(t, s, "ttl-1", "Movie")
	require.NoError(t, s.CreateReview(ctx, &model.Review{
		ID: "rev-1", Text: "review", AuthorID: alice.ID, Score: 8, TitleID: "ttl-1", PubDate: now,
	}))

	require.NoError(t, s.DeleteUserByUsername(ctx, "alice"))
	rv, _ := s.GetReview(ctx, "rev-1")
	assert.Nil(t, rv)
}

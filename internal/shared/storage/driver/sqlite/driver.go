// Package sqlite SQLite 数据库驱动
//
// 提供 SQLite 连接管理、方言实现和自动 Schema 迁移。
// 适用于开发、测试和轻量级部署场景。
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"reviews-api/internal/shared/storage/dbutil"

	_ "modernc.org/sqlite"
)

// Dialect SQLite 方言实现
type Dialect struct{}

var _ dbutil.Dialect = (*Dialect)(nil)

func (d *Dialect) DriverType() dbutil.DriverType {
	return dbutil.DriverSQLite
}

func (d *Dialect) Rebind(query string) string {
	return dbutil.RebindToQuestion(query)
}

func (d *Dialect) CurrentTimestamp() string {
	return "datetime('now')"
}

// IsUniqueViolation modernc.org/sqlite 不导出约束错误类型，按错误文本判断
func (d *Dialect) IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (d *Dialect) AutoMigrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// Open 创建 SQLite 数据库连接
// dsn 示例: "file:reviews.db" 或 ":memory:"
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", connString(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// 内存库的每个新连接都是一个独立的空库，必须限制为单连接
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	return db, nil
}

// connString 把 pragma 编码进 DSN
//
// foreign_keys 等 pragma 是连接级别的：对 *sql.DB 执行一次 Exec 只会
// 作用于当时取到的那个连接，连接池之后新建的连接全都不带外键开关，
// 级联删除和 ON DELETE SET NULL 会悄悄失效。modernc.org/sqlite 支持
// _pragma 查询参数，在池中每个新连接上自动执行。
func connString(dsn string) string {
	const pragmas = "_pragma=foreign_keys(1)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)"

	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + pragmas
	}
	return dsn + "?" + pragmas
}

// NewDialect 创建 SQLite 方言
func NewDialect() *Dialect {
	return &Dialect{}
}

// schema SQLite 完整建表语句（与 PostgreSQL schema 等价）
const schema = `
-- users
CREATE TABLE IF NOT EXISTS users (
    id VARCHAR(64) PRIMARY KEY,
    username VARCHAR(150) NOT NULL UNIQUE,
    email VARCHAR(254) NOT NULL UNIQUE,
    bio TEXT DEFAULT '',
    role VARCHAR(16) NOT NULL DEFAULT 'user',
    confirmation_hash VARCHAR(100) DEFAULT '',
    created_at DATETIME DEFAULT (datetime('now')),
    updated_at DATETIME DEFAULT (datetime('now'))
);

-- categories
CREATE TABLE IF NOT EXISTS categories (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(256) NOT NULL,
    slug VARCHAR(50) NOT NULL UNIQUE
);

-- genres
CREATE TABLE IF NOT EXISTS genres (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(256) NOT NULL,
    slug VARCHAR(50) NOT NULL UNIQUE
);

-- titles
CREATE TABLE IF NOT EXISTS titles (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(250) NOT NULL,
    year INTEGER NOT NULL,
    description TEXT DEFAULT '',
    category_id VARCHAR(64) REFERENCES categories(id) ON DELETE SET NULL,
    created_at DATETIME DEFAULT (datetime('now')),
    updated_at DATETIME DEFAULT (datetime('now'))
);

-- title_genres
CREATE TABLE IF NOT EXISTS title_genres (
    title_id VARCHAR(64) NOT NULL REFERENCES titles(id) ON DELETE CASCADE,
    genre_id VARCHAR(64) NOT NULL REFERENCES genres(id) ON DELETE CASCADE,
    UNIQUE (title_id, genre_id)
);

-- reviews
CREATE TABLE IF NOT EXISTS reviews (
    id VARCHAR(64) PRIMARY KEY,
    text TEXT NOT NULL,
    author_id VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    score INTEGER NOT NULL,
    title_id VARCHAR(64) NOT NULL REFERENCES titles(id) ON DELETE CASCADE,
    pub_date DATETIME DEFAULT (datetime('now')),
    UNIQUE (author_id, title_id)
);

-- comments
CREATE TABLE IF NOT EXISTS comments (
    id VARCHAR(64) PRIMARY KEY,
    text TEXT NOT NULL,
    author_id VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    review_id VARCHAR(64) NOT NULL REFERENCES reviews(id) ON DELETE CASCADE,
    pub_date DATETIME DEFAULT (datetime('now'))
);
`

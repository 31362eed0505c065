// Package model 定义业务实体
package model

import "time"

// Category 作品分类（电影、书籍、音乐等），slug 为稳定的备用主键
type Category struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
	Slug string `json:"slug" db:"slug"`
}

// Genre 作品体裁，slug 语义同 Category
type Genre struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
	Slug string `json:"slug" db:"slug"`
}

// Title 作品
//
// Rating 为读取侧聚合值（评分均值四舍五入），没有评价时为 null，从不落库。
// Category 可为空；分类被删除时引用置空而非级联删除。
type Title struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Year        int       `json:"year" db:"year"`
	Rating      *int      `json:"rating"`
	Description string    `json:"description" db:"description"`
	Genres      []Genre   `json:"genre"`
	Category    *Category `json:"category"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

package model

import "time"

// 评分允许范围
const (
	MinScore = 1
	MaxScore = 10
)

// Review 作品评价
//
// 每个 (作者, 作品) 组合至多一条评价，由数据库唯一约束保证。
// Author 为作者用户名（查询时联表填充），AuthorID 为外键。
type Review struct {
	ID       string    `json:"id" db:"id"`
	Text     string    `json:"text" db:"text"`
	Author   string    `json:"author"`
	AuthorID string    `json:"-" db:"author_id"`
	Score    int       `json:"score" db:"score"`
	TitleID  string    `json:"title_id" db:"title_id"`
	PubDate  time.Time `json:"pub_date" db:"pub_date"`
}

// ValidScore 评分是否在允许范围内
func ValidScore(score int) bool {
	return score >= MinScore && score <= MaxScore
}

// Comment 评价下的评论，随评价级联删除
type Comment struct {
	ID       string    `json:"id" db:"id"`
	Text     string    `json:"text" db:"text"`
	Author   string    `json:"author"`
	AuthorID string    `json:"-" db:"author_id"`
	ReviewID string    `json:"review_id" db:"review_id"`
	PubDate  time.Time `json:"pub_date" db:"pub_date"`
}

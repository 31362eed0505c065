// Package review 反馈领域 - 评价与评论的 HTTP 处理
//
// 两类资源都挂在 /titles/{title_id} 之下，父资源不存在时一律 404：
// 评论还要求 review 确实属于路径中的 title。
//
// 文件组织：
//   - handler.go: Handler 定义、路由注册、父资源解析和通用工具函数
//   - review.go: 评价接口
//   - comment.go: 评论接口
package review

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"

	"reviews-api/internal/apiserver/policy"
	"reviews-api/internal/shared/model"
	"reviews-api/internal/shared/storage"
)

// Store 反馈领域依赖的存储接口
type Store interface {
	storage.FeedbackStore
	GetTitle(ctx context.Context, id string) (*model.Title, error)
}

// Metrics 反馈领域的业务指标接口，由 server 包的 Prometheus 实现注入
type Metrics interface {
	RecordReview()
	RecordComment()
}

// Handler 反馈领域 HTTP 处理器
type Handler struct {
	store   Store
	policy  *policy.Policy
	metrics Metrics
}

// NewHandler 创建反馈处理器
func NewHandler(store Store, p *policy.Policy) *Handler {
	return &Handler{store: store, policy: p}
}

// SetMetrics 注入业务指标，未注入时不记录
func (h *Handler) SetMetrics(m Metrics) {
	h.metrics = m
}

// RegisterRoutes 注册评价与评论路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/titles/{title_id}/reviews", h.ListReviews)
	mux.HandleFunc("POST /api/v1/titles/{title_id}/reviews", h.CreateReview)
	mux.HandleFunc("GET /api/v1/titles/{title_id}/reviews/{id}", h.GetReview)
	mux.HandleFunc("PATCH /api/v1/titles/{title_id}/reviews/{id}", h.UpdateReview)
	mux.HandleFunc("DELETE /api/v1/titles/{title_id}/reviews/{id}", h.DeleteReview)

	mux.HandleFunc("GET /api/v1/titles/{title_id}/reviews/{review_id}/comments", h.ListComments)
	mux.HandleFunc("POST /api/v1/titles/{title_id}/reviews/{review_id}/comments", h.CreateComment)
	mux.HandleFunc("GET /api/v1/titles/{title_id}/reviews/{review_id}/comments/{id}", h.GetComment)
	mux.HandleFunc("PATCH /api/v1/titles/{title_id}/reviews/{review_id}/comments/{id}", h.UpdateComment)
	mux.HandleFunc("DELETE /api/v1/titles/{title_id}/reviews/{review_id}/comments/{id}", h.DeleteComment)
}

// ============================================================================
// 父资源解析
// ============================================================================

// resolveTitle 解析路径中的作品；不存在时写出 404 并返回 nil
func (h *Handler) resolveTitle(w http.ResponseWriter, r *http.Request) *model.Title {
	title, err := h.store.GetTitle(r.Context(), r.PathValue("title_id"))
	if err != nil {
		log.Printf("[review] GetTitle error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to get title")
		return nil
	}
	if title == nil {
		writeError(w, http.StatusNotFound, "title not found")
		return nil
	}
	return title
}

// resolveReview 解析路径中的评价并校验其属于路径中的作品
func (h *Handler) resolveReview(w http.ResponseWriter, r *http.Request, title *model.Title, reviewID string) *model.Review {
	rv, err := h.store.GetReview(r.Context(), reviewID)
	if err != nil {
		log.Printf("[review] GetReview error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to get review")
		return nil
	}
	if rv == nil || rv.TitleID != title.ID {
		writeError(w, http.StatusNotFound, "review not found")
		return nil
	}
	return rv
}

// ============================================================================
// 工具函数
// ============================================================================

func generateID(prefix string) string {
	b := make([]byte, 6)
	rand.Read(b)
	return prefix + "-" + hex.EncodeToString(b)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

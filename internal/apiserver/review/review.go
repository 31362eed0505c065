package review

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"reviews-api/internal/apiserver/auth"
	"reviews-api/internal/shared/model"
	"reviews-api/internal/shared/storage"
)

// ListReviews 列出作品下的评价
func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	title := h.resolveTitle(w, r)
	if title == nil {
		return
	}

	reviews, err := h.store.ListReviewsByTitle(r.Context(), title.ID)
	if err != nil {
		log.Printf("[review] ListReviewsByTitle error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list reviews")
		return
	}
	if reviews == nil {
		reviews = []*model.Review{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"reviews": reviews})
}

// GetReview 获取评价详情
func (h *Handler) GetReview(w http.ResponseWriter, r *http.Request) {
	title := h.resolveTitle(w, r)
	if title == nil {
		return
	}
	rv := h.resolveReview(w, r, title, r.PathValue("id"))
	if rv == nil {
		return
	}
	writeJSON(w, http.StatusOK, rv)
}

// CreateReview 创建评价（需认证）
// 同一作者对同一作品只能有一条评价，由数据库唯一约束把关。
func (h *Handler) CreateReview(w http.ResponseWriter, r *http.Request) {
	caller := auth.GetAuthUser(r.Context())
	if d := h.policy.Authenticated(caller); !d.Allowed() {
		writeError(w, d.HTTPStatus(), d.Message())
		return
	}

	title := h.resolveTitle(w, r)
	if title == nil {
		return
	}

	var req struct {
		Text  string `json:"text"`
		Score int    `json:"score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if !model.ValidScore(req.Score) {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("score must be between %d and %d", model.MinScore, model.MaxScore))
		return
	}

	rv := &model.Review{
		ID:       generateID("rev"),
		Text:     req.Text,
		Author:   caller.Username,
		AuthorID: caller.ID,
		Score:    req.Score,
		TitleID:  title.ID,
		PubDate:  time.Now(),
	}
	if err := h.store.CreateReview(r.Context(), rv); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			writeError(w, http.StatusConflict, "review already exists for this title")
			return
		}
		log.Printf("[review] CreateReview error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create review")
		return
	}

	if h.metrics != nil {
		h.metrics.RecordReview()
	}
	log.Printf("[review] Review created: %s by %s", rv.ID, caller.Username)
	writeJSON(w, http.StatusCreated, rv)
}

// UpdateReview 更新评价（作者或职员）
func (h *Handler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	title := h.resolveTitle(w, r)
	if title == nil {
		return
	}
	rv := h.resolveReview(w, r, title, r.PathValue("id"))
	if rv == nil {
		return
	}

	caller := auth.GetAuthUser(r.Context())
	if d := h.policy.AuthorOrStaff(r.Method, caller, rv.AuthorID); !d.Allowed() {
		writeError(w, d.HTTPStatus(), d.Message())
		return
	}

	var req struct {
		Text  *string `json:"text,omitempty"`
		Score *int    `json:"score,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text != nil {
		if *req.Text == "" {
			writeError(w, http.StatusBadRequest, "text must not be empty")
			return
		}
		rv.Text = *req.Text
	}
	if req.Score != nil {
		if !model.ValidScore(*req.Score) {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("score must be between %d and %d", model.MinScore, model.MaxScore))
			return
		}
		rv.Score = *req.Score
	}

	if err := h.store.UpdateReview(r.Context(), rv); err != nil {
		log.Printf("[review] UpdateReview error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to update review")
		return
	}

	log.Printf("[review] Review updated: %s", rv.ID)
	writeJSON(w, http.StatusOK, rv)
}

// DeleteReview 删除评价及其评论（作者或职员）
func (h *Handler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	title := h.resolveTitle(w, r)
	if title == nil {
		return
	}
	rv := h.resolveReview(w, r, title, r.PathValue("id"))
	if rv == nil {
		return
	}

	caller := auth.GetAuthUser(r.Context())
	if d := h.policy.AuthorOrStaff(r.Method, caller, rv.AuthorID); !d.Allowed() {
		writeError(w, d.HTTPStatus(), d.Message())
		return
	}

	if err := h.store.DeleteReview(r.Context(), rv.ID); err != nil {
		log.Printf("[review] DeleteReview error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to delete review")
		return
	}

	log.Printf("[review] Review deleted: %s", rv.ID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "review deleted"})
}

package review

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"reviews-api/internal/apiserver/auth"
	"reviews-api/internal/shared/model"
)

// resolveComment 解析路径中的评论并校验其属于路径中的评价
func (h *Handler) resolveComment(w http.ResponseWriter, r *http.Request, rv *model.Review) *model.Comment {
	c, err := h.store.GetComment(r.Context(), r.PathValue("id"))
	if err != nil {
		log.Printf("[review] GetComment error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to get comment")
		return nil
	}
	if c == nil || c.ReviewID != rv.ID {
		writeError(w, http.StatusNotFound, "comment not found")
		return nil
	}
	return c
}

// resolveCommentParents 解析 title → review 链
func (h *Handler) resolveCommentParents(w http.ResponseWriter, r *http.Request) *model.Review {
	title := h.resolveTitle(w, r)
	if title == nil {
		return nil
	}
	return h.resolveReview(w, r, title, r.PathValue("review_id"))
}

// ListComments 列出评价下的评论
func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	rv := h.resolveCommentParents(w, r)
	if rv == nil {
		return
	}

	comments, err := h.store.ListCommentsByReview(r.Context(), rv.ID)
	if err != nil {
		log.Printf("[review] ListCommentsByReview error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list comments")
		return
	}
	if comments == nil {
		comments = []*model.Comment{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"comments": comments})
}

// GetComment 获取评论详情
func (h *Handler) GetComment(w http.ResponseWriter, r *http.Request) {
	rv := h.resolveCommentParents(w, r)
	if rv == nil {
		return
	}
	c := h.resolveComment(w, r, rv)
	if c == nil {
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// CreateComment 创建评论（需认证）
func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	caller := auth.GetAuthUser(r.Context())
	if d := h.policy.Authenticated(caller); !d.Allowed() {
		writeError(w, d.HTTPStatus(), d.Message())
		return
	}

	rv := h.resolveCommentParents(w, r)
	if rv == nil {
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	c := &model.Comment{
		ID:       generateID("cmt"),
		Text:     req.Text,
		Author:   caller.Username,
		AuthorID: caller.ID,
		ReviewID: rv.ID,
		PubDate:  time.Now(),
	}
	if err := h.store.CreateComment(r.Context(), c); err != nil {
		log.Printf("[review] CreateComment error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create comment")
		return
	}

	if h.metrics != nil {
		h.metrics.RecordComment()
	}
	log.Printf("[review] Comment created: %s by %s", c.ID, caller.Username)
	writeJSON(w, http.StatusCreated, c)
}

// UpdateComment 更新评论（作者或职员）
func (h *Handler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	rv := h.resolveCommentParents(w, r)
	if rv == nil {
		return
	}
	c := h.resolveComment(w, r, rv)
	if c == nil {
		return
	}

	caller := auth.GetAuthUser(r.Context())
	if d := h.policy.AuthorOrStaff(r.Method, caller, c.AuthorID); !d.Allowed() {
		writeError(w, d.HTTPStatus(), d.Message())
		return
	}

	var req struct {
		Text *string `json:"text,omitempty"`
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
		c.Text = *req.Text
	}

	if err := h.store.UpdateComment(r.Context(), c); err != nil {
		log.Printf("[review] UpdateComment error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to update comment")
		return
	}

	log.Printf("[review] Comment updated: %s", c.ID)
	writeJSON(w, http.StatusOK, c)
}

// DeleteComment 删除评论（作者或职员）
func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	rv := h.resolveCommentParents(w, r)
	if rv == nil {
		return
	}
	c := h.resolveComment(w, r, rv)
	if c == nil {
		return
	}

	caller := auth.GetAuthUser(r.Context())
	if d := h.policy.AuthorOrStaff(r.Method, caller, c.AuthorID); !d.Allowed() {
		writeError(w, d.HTTPStatus(), d.Message())
		return
	}

	if err := h.store.DeleteComment(r.Context(), c.ID); err != nil {
		log.Printf("[review] DeleteComment error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to delete comment")
		return
	}

	log.Printf("[review] Comment deleted: %s", c.ID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "comment deleted"})
}

package catalog

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"reviews-api/internal/apiserver/auth"
	"reviews-api/internal/shared/model"
	"reviews-api/internal/shared/storage"
)

// ListCategories 获取分类列表
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		log.Printf("[catalog] ListCategories error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}
	if categories == nil {
		categories = []*model.Category{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"categories": categories})
}

// CreateCategory 创建分类（仅管理员）
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	caller := auth.GetAuthUser(r.Context())
	if d := h.policy.AdminWrite(r.Method, caller); !d.Allowed() {
		writeError(w, d.HTTPStatus(), d.Message())
		return
	}

	var req struct {
		Name string `json:"name"`
		Slug string `json:"slug"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Slug == "" {
		writeError(w, http.StatusBadRequest, "name and slug are required")
		return
	}
	if !isValidSlug(req.Slug) {
		writeError(w, http.StatusBadRequest, "invalid slug format")
		return
	}

	category := &model.Category{
		ID:   generateID("cat"),
		Name: req.Name,
		Slug: req.Slug,
	}
	if err := h.store.CreateCategory(r.Context(), category); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			writeError(w, http.StatusConflict, "category slug already exists")
			return
		}
		log.Printf("[catalog] CreateCategory error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create category")
		return
	}

	log.Printf("[catalog] Category created: %s (%s)", category.Slug, category.ID)
	writeJSON(w, http.StatusCreated, category)
}

// DeleteCategory 按 slug 删除分类（仅管理员）
// 引用该分类的作品 category 置空，不级联删除。
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	caller := auth.GetAuthUser(r.Context())
	if d := h.policy.AdminWrite(r.Method, caller); !d.Allowed() {
		writeError(w, d.HTTPStatus(), d.Message())
		return
	}

	slug := r.PathValue("slug")
	if err := h.store.DeleteCategoryBySlug(r.Context(), slug); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "category not found")
			return
		}
		log.Printf("[catalog] DeleteCategory error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to delete category")
		return
	}

	log.Printf("[catalog] Category deleted: %s", slug)
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "category deleted"})
}

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

// ListGenres 获取体裁列表，支持 ?search= 按名称过滤
func (h *Handler) ListGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := h.store.ListGenres(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		log.Printf("[catalog] ListGenres error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list genres")
		return
	}
	if genres == nil {
		genres = []*model.Genre{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"genres": genres})
}

// CreateGenre 创建体裁（仅管理员）
func (h *Handler) CreateGenre(w http.ResponseWriter, r *http.Request) {
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

	genre := &model.Genre{
		ID:   generateID("gen"),
		Name: req.Name,
		Slug: req.Slug,
	}
	if err := h.store.CreateGenre(r.Context(), genre); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			writeError(w, http.StatusConflict, "genre slug already exists")
			return
		}
		log.Printf("[catalog] CreateGenre error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create genre")
		return
	}

	log.Printf("[catalog] Genre created: %s (%s)", genre.Slug, genre.ID)
	writeJSON(w, http.StatusCreated, genre)
}

// DeleteGenre 按 slug 删除体裁（仅管理员）
func (h *Handler) DeleteGenre(w http.ResponseWriter, r *http.Request) {
	caller := auth.GetAuthUser(r.Context())
	if d := h.policy.AdminWrite(r.Method, caller); !d.Allowed() {
		writeError(w, d.HTTPStatus(), d.Message())
		return
	}

	slug := r.PathValue("slug")
	if err := h.store.DeleteGenreBySlug(r.Context(), slug); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "genre not found")
			return
		}
		log.Printf("[catalog] DeleteGenre error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to delete genre")
		return
	}

	log.Printf("[catalog] Genre deleted: %s", slug)
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "genre deleted"})
}

package catalog

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"reviews-api/internal/apiserver/auth"
	"reviews-api/internal/shared/model"
	"reviews-api/internal/shared/storage"
)

// ListTitles 获取作品列表
func (h *Handler) ListTitles(w http.ResponseWriter, r *http.Request) {
	titles, err := h.store.ListTitles(r.Context())
	if err != nil {
		log.Printf("[catalog] ListTitles error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list titles")
		return
	}
	if titles == nil {
		titles = []*model.Title{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"titles": titles})
}

// GetTitle 获取作品详情
func (h *Handler) GetTitle(w http.ResponseWriter, r *http.Request) {
	title, err := h.store.GetTitle(r.Context(), r.PathValue("id"))
	if err != nil {
		log.Printf("[catalog] GetTitle error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to get title")
		return
	}
	if title == nil {
		writeError(w, http.StatusNotFound, "title not found")
		return
	}
	writeJSON(w, http.StatusOK, title)
}

// CreateTitle 创建作品（仅管理员）
// 分类与体裁均按 slug 引用，未解析的 slug 返回 404；年份不得晚于当前年。
func (h *Handler) CreateTitle(w http.ResponseWriter, r *http.Request) {
	caller := auth.GetAuthUser(r.Context())
	if d := h.policy.AdminWrite(r.Method, caller); !d.Allowed() {
		writeError(w, d.HTTPStatus(), d.Message())
		return
	}

	var req struct {
		Name        string   `json:"name"`
		Year        int      `json:"year"`
		Description string   `json:"description"`
		Genre       []string `json:"genre"`
		Category    string   `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Year > time.Now().Year() {
		writeError(w, http.StatusBadRequest, "year must not be in the future")
		return
	}

	title := &model.Title{
		ID:          generateID("ttl"),
		Name:        req.Name,
		Year:        req.Year,
		Description: req.Description,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if req.Category != "" {
		category, err := h.store.GetCategoryBySlug(r.Context(), req.Category)
		if err != nil {
			log.Printf("[catalog] GetCategoryBySlug error: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to resolve category")
			return
		}
		if category == nil {
			writeError(w, http.StatusNotFound, "category not found: "+req.Category)
			return
		}
		title.Category = category
	}

	genreIDs, ok := h.resolveGenres(w, r, req.Genre)
	if !ok {
		return
	}

	if err := h.store.CreateTitle(r.Context(), title); err != nil {
		log.Printf("[catalog] CreateTitle error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create title")
		return
	}
	if len(genreIDs) > 0 {
		if err := h.store.SetTitleGenres(r.Context(), title.ID, genreIDs); err != nil {
			log.Printf("[catalog] SetTitleGenres error: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to attach genres")
			return
		}
	}

	created, err := h.store.GetTitle(r.Context(), title.ID)
	if err != nil || created == nil {
		log.Printf("[catalog] reload created title error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load title")
		return
	}

	log.Printf("[catalog] Title created: %s (%s)", created.Name, created.ID)
	writeJSON(w, http.StatusCreated, created)
}

// UpdateTitle 更新作品（仅管理员）
// 部分更新：缺省字段保持不变；genre 出现时整体替换体裁关联。
func (h *Handler) UpdateTitle(w http.ResponseWriter, r *http.Request) {
	caller := auth.GetAuthUser(r.Context())
	if d := h.policy.AdminWrite(r.Method, caller); !d.Allowed() {
		writeError(w, d.HTTPStatus(), d.Message())
		return
	}

	title, err := h.store.GetTitle(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get title")
		return
	}
	if title == nil {
		writeError(w, http.StatusNotFound, "title not found")
		return
	}

	var req struct {
		Name        *string   `json:"name,omitempty"`
		Year        *int      `json:"year,omitempty"`
		Description *string   `json:"description,omitempty"`
		Genre       *[]string `json:"genre,omitempty"`
		Category    *string   `json:"category,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			writeError(w, http.StatusBadRequest, "name must not be empty")
			return
		}
		title.Name = *req.Name
	}
	if req.Year != nil {
		if *req.Year > time.Now().Year() {
			writeError(w, http.StatusBadRequest, "year must not be in the future")
			return
		}
		title.Year = *req.Year
	}
	if req.Description != nil {
		title.Description = *req.Description
	}
	if req.Category != nil {
		if *req.Category == "" {
			title.Category = nil
		} else {
			category, err := h.store.GetCategoryBySlug(r.Context(), *req.Category)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to resolve category")
				return
			}
			if category == nil {
				writeError(w, http.StatusNotFound, "category not found: "+*req.Category)
				return
			}
			title.Category = category
		}
	}
	title.UpdatedAt = time.Now()

	if err := h.store.UpdateTitle(r.Context(), title); err != nil {
		log.Printf("[catalog] UpdateTitle error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to update title")
		return
	}

	if req.Genre != nil {
		genreIDs, ok := h.resolveGenres(w, r, *req.Genre)
		if !ok {
			return
		}
		if err := h.store.SetTitleGenres(r.Context(), title.ID, genreIDs); err != nil {
			log.Printf("[catalog] SetTitleGenres error: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to update genres")
			return
		}
	}

	updated, err := h.store.GetTitle(r.Context(), title.ID)
	if err != nil || updated == nil {
		writeError(w, http.StatusInternalServerError, "failed to load title")
		return
	}

	log.Printf("[catalog] Title updated: %s", updated.ID)
	writeJSON(w, http.StatusOK, updated)
}

// DeleteTitle 删除作品及其评价（仅管理员）
func (h *Handler) DeleteTitle(w http.ResponseWriter, r *http.Request) {
	caller := auth.GetAuthUser(r.Context())
	if d := h.policy.AdminWrite(r.Method, caller); !d.Allowed() {
		writeError(w, d.HTTPStatus(), d.Message())
		return
	}

	id := r.PathValue("id")
	if err := h.store.DeleteTitle(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "title not found")
			return
		}
		log.Printf("[catalog] DeleteTitle error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to delete title")
		return
	}

	log.Printf("[catalog] Title deleted: %s", id)
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "title deleted"})
}

// resolveGenres 将体裁 slug 列表解析为 ID 列表；任一 slug 未解析则写出 404 并返回 ok=false
func (h *Handler) resolveGenres(w http.ResponseWriter, r *http.Request, slugs []string) ([]string, bool) {
	genreIDs := make([]string, 0, len(slugs))
	for _, slug := range slugs {
		genre, err := h.store.GetGenreBySlug(r.Context(), slug)
		if err != nil {
			log.Printf("[catalog] GetGenreBySlug error: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to resolve genre")
			return nil, false
		}
		if genre == nil {
			writeError(w, http.StatusNotFound, "genre not found: "+slug)
			return nil, false
		}
		genreIDs = append(genreIDs, genre.ID)
	}
	return genreIDs, true
}

// Package catalog 目录领域 - 分类、体裁与作品的 HTTP 处理
//
// 文件组织：
//   - handler.go: Handler 定义、路由注册和通用工具函数
//   - category.go: 分类接口
//   - genre.go: 体裁接口
//   - title.go: 作品接口
package catalog

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"regexp"

	"reviews-api/internal/apiserver/policy"
	"reviews-api/internal/shared/storage"
)

// Handler 目录领域 HTTP 处理器
type Handler struct {
	store  storage.CatalogStore
	policy *policy.Policy
}

// NewHandler 创建目录处理器
func NewHandler(store storage.CatalogStore, p *policy.Policy) *Handler {
	return &Handler{store: store, policy: p}
}

// RegisterRoutes 注册目录相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/categories", h.ListCategories)
	mux.HandleFunc("POST /api/v1/categories", h.CreateCategory)
	mux.HandleFunc("DELETE /api/v1/categories/{slug}", h.DeleteCategory)

	mux.HandleFunc("GET /api/v1/genres", h.ListGenres)
	mux.HandleFunc("POST /api/v1/genres", h.CreateGenre)
	mux.HandleFunc("DELETE /api/v1/genres/{slug}", h.DeleteGenre)

	mux.HandleFunc("GET /api/v1/titles", h.ListTitles)
	mux.HandleFunc("POST /api/v1/titles", h.CreateTitle)
	mux.HandleFunc("GET /api/v1/titles/{id}", h.GetTitle)
	mux.HandleFunc("PATCH /api/v1/titles/{id}", h.UpdateTitle)
	mux.HandleFunc("DELETE /api/v1/titles/{id}", h.DeleteTitle)
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

var slugRegex = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

func isValidSlug(slug string) bool {
	return len(slug) <= 50 && slugRegex.MatchString(slug)
}

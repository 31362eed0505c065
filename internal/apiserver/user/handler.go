// Package user 用户目录 - 管理接口与个人资料
//
// /users 下的全部操作（含读取）仅限管理员；
// /users/me 允许本人 GET/PATCH 自己的资料，但不能改自己的角色。
package user

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"time"

	"reviews-api/internal/apiserver/auth"
	"reviews-api/internal/apiserver/policy"
	"reviews-api/internal/shared/model"
	"reviews-api/internal/shared/storage"
)

// Handler 用户目录 HTTP 处理器
type Handler struct {
	store  storage.UserStore
	policy *policy.Policy
}

// NewHandler 创建用户处理器
func NewHandler(store storage.UserStore, p *policy.Policy) *Handler {
	return &Handler{store: store, policy: p}
}

// RegisterRoutes 注册用户相关路由
// "me" 字面量比 {username} 通配更具体，ServeMux 会优先匹配。
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/users", h.List)
	mux.HandleFunc("POST /api/v1/users", h.Create)
	mux.HandleFunc("GET /api/v1/users/me", h.GetMe)
	mux.HandleFunc("PATCH /api/v1/users/me", h.UpdateMe)
	mux.HandleFunc("GET /api/v1/users/{username}", h.Get)
	mux.HandleFunc("PATCH /api/v1/users/{username}", h.Update)
	mux.HandleFunc("DELETE /api/v1/users/{username}", h.Delete)
}

// ============================================================================
// 管理接口（仅管理员）
// ============================================================================

// List 列出所有用户
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	caller := auth.GetAuthUser(r.Context())
	if d := h.policy.AdminOnly(caller); !d.Allowed() {
		writeError(w, d.HTTPStatus(), d.Message())
		return
	}

	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		log.Printf("[user] ListUsers error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []*model.User{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

// Create 管理员直接创建用户（不签发确认码，用户可随后走 signup 重发流程）
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	caller := auth.GetAuthUser(r.Context())
	if d := h.policy.AdminOnly(caller); !d.Allowed() {
		writeError(w, d.HTTPStatus(), d.Message())
		return
	}

	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Bio      string `json:"bio"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "username and email are required")
		return
	}
	if req.Username == "me" {
		writeError(w, http.StatusBadRequest, `username "me" is reserved`)
		return
	}
	if !isValidEmail(req.Email) {
		writeError(w, http.StatusBadRequest, "invalid email format")
		return
	}

	role := model.RoleUser
	if req.Role != "" {
		parsed, err := model.ParseRole(req.Role)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		role = parsed
	}

	now := time.Now()
	u := &model.User{
		ID:        generateID(),
		Username:  req.Username,
		Email:     req.Email,
		Bio:       req.Bio,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.store.CreateUser(r.Context(), u); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			writeError(w, http.StatusConflict, "username or email already registered")
			return
		}
		log.Printf("[user] CreateUser error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	log.Printf("[user] User created by admin: %s (%s)", u.Username, u.ID)
	writeJSON(w, http.StatusCreated, u)
}

// Get 获取用户详情
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	caller := auth.GetAuthUser(r.Context())
	if d := h.policy.AdminOnly(caller); !d.Allowed() {
		writeError(w, d.HTTPStatus(), d.Message())
		return
	}

	u, err := h.store.GetUserByUsername(r.Context(), r.PathValue("username"))
	if err != nil {
		log.Printf("[user] GetUserByUsername error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Update 管理员更新用户资料与角色
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	caller := auth.GetAuthUser(r.Context())
	if d := h.policy.AdminOnly(caller); !d.Allowed() {
		writeError(w, d.HTTPStatus(), d.Message())
		return
	}

	u, err := h.store.GetUserByUsername(r.Context(), r.PathValue("username"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	var req struct {
		Email *string `json:"email,omitempty"`
		Bio   *string `json:"bio,omitempty"`
		Role  *string `json:"role,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if ok := h.applyProfilePatch(w, u, req.Email, req.Bio); !ok {
		return
	}
	if req.Role != nil {
		role, err := model.ParseRole(*req.Role)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		u.Role = role
	}
	u.UpdatedAt = time.Now()

	if err := h.store.UpdateUser(r.Context(), u); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		log.Printf("[user] UpdateUser error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to update user")
		return
	}

	log.Printf("[user] User updated: %s", u.Username)
	writeJSON(w, http.StatusOK, u)
}

// Delete 删除用户；其评价与评论级联删除
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	caller := auth.GetAuthUser(r.Context())
	if d := h.policy.AdminOnly(caller); !d.Allowed() {
		writeError(w, d.HTTPStatus(), d.Message())
		return
	}

	username := r.PathValue("username")
	if err := h.store.DeleteUserByUsername(r.Context(), username); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Printf("[user] DeleteUser error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}

	log.Printf("[user] User deleted: %s", username)
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "user deleted"})
}

// ============================================================================
// 个人资料
// ============================================================================

// GetMe 获取当前用户资料
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	caller := auth.GetAuthUser(r.Context())
	if caller == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if d := h.policy.SelfOnly(r.Method, caller, caller.Username); !d.Allowed() {
		writeError(w, d.HTTPStatus(), d.Message())
		return
	}

	u, err := h.store.GetUserByUsername(r.Context(), caller.Username)
	if err != nil || u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// UpdateMe 更新当前用户资料；角色字段不可自改
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	caller := auth.GetAuthUser(r.Context())
	if caller == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if d := h.policy.SelfOnly(r.Method, caller, caller.Username); !d.Allowed() {
		writeError(w, d.HTTPStatus(), d.Message())
		return
	}

	u, err := h.store.GetUserByUsername(r.Context(), caller.Username)
	if err != nil || u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	var req struct {
		Email *string `json:"email,omitempty"`
		Bio   *string `json:"bio,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if ok := h.applyProfilePatch(w, u, req.Email, req.Bio); !ok {
		return
	}
	u.UpdatedAt = time.Now()

	if err := h.store.UpdateUser(r.Context(), u); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		log.Printf("[user] UpdateMe error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	log.Printf("[user] Profile updated: %s", u.Username)
	writeJSON(w, http.StatusOK, u)
}

// applyProfilePatch 应用共享的资料字段更新；校验失败时写出错误并返回 false
func (h *Handler) applyProfilePatch(w http.ResponseWriter, u *model.User, email, bio *string) bool {
	if email != nil {
		if !isValidEmail(*email) {
			writeError(w, http.StatusBadRequest, "invalid email format")
			return false
		}
		u.Email = *email
	}
	if bio != nil {
		u.Bio = *bio
	}
	return true
}

// ============================================================================
// 工具函数
// ============================================================================

func generateID() string {
	b := make([]byte, 6)
	rand.Read(b)
	return "usr-" + hex.EncodeToString(b)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func isValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

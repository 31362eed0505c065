package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"time"

	"reviews-api/internal/shared/mail"
	"reviews-api/internal/shared/model"
	"reviews-api/internal/shared/storage"
)

// UserStore 用户存储接口
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	UpdateUserConfirmation(ctx context.Context, id, confirmationHash string) error
}

// Metrics 认证流程的业务指标接口，由 server 包的 Prometheus 实现注入
type Metrics interface {
	RecordSignup()
	RecordTokenIssued()
	RecordMail(err error)
}

// Handler 认证 HTTP 处理器
type Handler struct {
	store   UserStore
	mailer  mail.Mailer
	cfg     Config
	metrics Metrics
}

// NewHandler 创建认证处理器
func NewHandler(store UserStore, mailer mail.Mailer, cfg Config) *Handler {
	return &Handler{store: store, mailer: mailer, cfg: cfg}
}

// SetMetrics 注入业务指标，未注入时不记录
func (h *Handler) SetMetrics(m Metrics) {
	h.metrics = m
}

// RegisterRoutes 注册认证相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/auth/signup", h.Signup)
	mux.HandleFunc("POST /api/v1/auth/token", h.Token)
}

// ============================================================================
// 请求/响应类型
// ============================================================================

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type tokenRequest struct {
	Username         string `json:"username"`
	ConfirmationCode string `json:"confirmation_code"`
}

// ============================================================================
// Handlers
// ============================================================================

// Signup 注册或重发确认码
//
// 同名同邮箱的重复注册视为重发：生成新确认码并覆盖旧哈希（单一激活码）。
// 确认码先落库再投递；投递失败只记日志，不回滚、不报错。
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "username and email are required")
		return
	}
	if req.Username == reservedUsername {
		writeError(w, http.StatusBadRequest, `username "me" is reserved`)
		return
	}
	if !isValidUsername(req.Username) {
		writeError(w, http.StatusBadRequest, "invalid username format")
		return
	}
	if !isValidEmail(req.Email) {
		writeError(w, http.StatusBadRequest, "invalid email format")
		return
	}

	byUsername, err := h.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		log.Printf("[auth.signup] GetUserByUsername error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// 已有账号重发确认码
	if byUsername != nil {
		if byUsername.Email != req.Email {
			writeError(w, http.StatusConflict, "username already registered")
			return
		}
		if err := h.issueCode(r.Context(), byUsername); err != nil {
			log.Printf("[auth.signup] reissue error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		log.Printf("[auth] Confirmation code reissued: %s", byUsername.Username)
		writeJSON(w, http.StatusOK, signupRequest{Username: req.Username, Email: req.Email})
		return
	}

	byEmail, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		log.Printf("[auth.signup] GetUserByEmail error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if byEmail != nil {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}

	now := time.Now()
	user := &model.User{
		ID:        generateID(),
		Username:  req.Username,
		Email:     req.Email,
		Role:      model.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			writeError(w, http.StatusConflict, "username or email already registered")
			return
		}
		log.Printf("[auth.signup] CreateUser error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	if err := h.issueCode(r.Context(), user); err != nil {
		log.Printf("[auth.signup] issueCode error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	log.Printf("[auth] User signed up: %s (%s)", user.Username, user.ID)
	writeJSON(w, http.StatusOK, signupRequest{Username: req.Username, Email: req.Email})
}

// issueCode 生成确认码、落库哈希，然后尽力投递到用户邮箱
func (h *Handler) issueCode(ctx context.Context, user *model.User) error {
	code, err := NewConfirmationCode()
	if err != nil {
		return err
	}
	hash, err := HashConfirmationCode(code)
	if err != nil {
		return err
	}
	if err := h.store.UpdateUserConfirmation(ctx, user.ID, hash); err != nil {
		return err
	}
	if h.metrics != nil {
		h.metrics.RecordSignup()
	}

	// 落库已提交，投递与请求解耦
	email := user.Email
	go func() {
		body := fmt.Sprintf("Use this code to obtain your token: %s", code)
		err := h.mailer.Send(context.Background(), email, "Confirmation code", body)
		if err != nil {
			log.Printf("[auth] confirmation mail to %s failed: %v", email, err)
		}
		if h.metrics != nil {
			h.metrics.RecordMail(err)
		}
	}()
	return nil
}

// Token 用确认码换取访问令牌
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username == "" || req.ConfirmationCode == "" {
		writeError(w, http.StatusBadRequest, "username and confirmation_code are required")
		return
	}

	user, err := h.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		log.Printf("[auth.token] GetUserByUsername error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	if user.ConfirmationHash == "" || !CheckConfirmationCode(req.ConfirmationCode, user.ConfirmationHash) {
		writeError(w, http.StatusBadRequest, "invalid confirmation code")
		return
	}

	token, err := GenerateToken(h.cfg, user)
	if err != nil {
		log.Printf("[auth.token] GenerateToken error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if h.metrics != nil {
		h.metrics.RecordTokenIssued()
	}
	log.Printf("[auth] Token issued: %s", user.Username)
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// ============================================================================
// Admin Bootstrap
// ============================================================================

// EnsureAdmin 确保管理员账号存在（启动时调用）
// 管理员随后通过普通 signup 流程重发确认码并换取令牌。
func EnsureAdmin(store UserStore, username, email string) error {
	if username == "" || email == "" {
		return nil
	}

	ctx := context.Background()
	existing, err := store.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("check admin user: %w", err)
	}
	if existing != nil {
		if existing.Role != model.RoleAdmin {
			log.Printf("[auth] Upgrading user %s to admin role", username)
			existing.Role = model.RoleAdmin
			existing.UpdatedAt = time.Now()
			return store.UpdateUser(ctx, existing)
		}
		log.Printf("[auth] Admin user already exists: %s (%s)", username, existing.ID)
		return nil
	}

	now := time.Now()
	user := &model.User{
		ID:        generateID(),
		Username:  username,
		Email:     email,
		Role:      model.RoleAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	log.Printf("[auth] Created admin user: %s (%s)", username, user.ID)
	return nil
}

// ============================================================================
// 工具函数
// ============================================================================

// reservedUsername 与 /users/me 路径冲突，任何情况下拒绝注册
const reservedUsername = "me"

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

var usernameRegex = regexp.MustCompile(`^[\w.@+-]+$`)

func isValidUsername(username string) bool {
	return len(username) <= 150 && usernameRegex.MatchString(username)
}

func generateID() string {
	b := make([]byte, 6)
	rand.Read(b)
	return "usr-" + hex.EncodeToString(b)
}

package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"reviews-api/internal/shared/mail"
	"reviews-api/internal/shared/model"
	"reviews-api/internal/shared/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore 内存 UserStore 实现
type memStore struct {
	users map[string]*model.User // by ID
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]*model.User)}
}

func (s *memStore) CreateUser(_ context.Context, user *model.User) error {
	for _, u := range s.users {
		if u.Username == user.Username || u.Email == user.Email {
			return storage.ErrDuplicate
		}
	}
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *memStore) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range s.users {
		if u.Username == username {
			clone := *u
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *memStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *memStore) UpdateUser(_ context.Context, user *model.User) error {
	if _, ok := s.users[user.ID]; !ok {
		return storage.ErrNotFound
	}
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *memStore) UpdateUserConfirmation(_ context.Context, id, hash string) error {
	u, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.ConfirmationHash = hash
	return nil
}

func newTestHandler(t *testing.T) (*Handler, *memStore, *mail.Mock) {
	t.Helper()
	store := newMemStore()
	mock := mail.NewMock()
	h := NewHandler(store, mock, testConfig())
	return h, store, mock
}

func doJSON(t *testing.T, h http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(b))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

// awaitCode 等待异步投递完成并从邮件正文提取确认码
func awaitCode(t *testing.T, mock *mail.Mock, wantCount int) string {
	t.Helper()
	require.Eventually(t, func() bool {
		return mock.Count() >= wantCount
	}, time.Second, 5*time.Millisecond)

	msg := mock.Last()
	require.NotNil(t, msg)
	idx := strings.LastIndex(msg.Body, ": ")
	require.Greater(t, idx, 0)
	return msg.Body[idx+2:]
}

// ============================================================================
// Signup 测试
// ============================================================================

func TestSignup(t *testing.T) {
	h, store, mock := newTestHandler(t)

	rec := doJSON(t, h.Signup, signupRequest{Username: "alice", Email: "alice@example.com"})
	assert.Equal(t, http.StatusOK, rec.Code)

	u, err := store.GetUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, model.RoleUser, u.Role)

	code := awaitCode(t, mock, 1)
	assert.Equal(t, "alice@example.com", mock.Last().To)
	assert.True(t, CheckConfirmationCode(code, store.users[u.ID].ConfirmationHash))
}

func TestSignupValidation(t *testing.T) {
	h, _, _ := newTestHandler(t)

	tests := []struct {
		name string
		req  signupRequest
	}{
		{"missing username", signupRequest{Email: "a@example.com"}},
		{"missing email", signupRequest{Username: "alice"}},
		{"reserved me", signupRequest{Username: "me", Email: "a@example.com"}},
		{"bad username", signupRequest{Username: "has spaces", Email: "a@example.com"}},
		{"bad email", signupRequest{Username: "alice", Email: "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h.Signup, tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestSignupReissue(t *testing.T) {
	h, store, mock := newTestHandler(t)

	rec := doJSON(t, h.Signup, signupRequest{Username: "alice", Email: "alice@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	firstCode := awaitCode(t, mock, 1)

	// 同名同邮箱重复注册发新码，旧码随之失效
	rec = doJSON(t, h.Signup, signupRequest{Username: "alice", Email: "alice@example.com"})
	assert.Equal(t, http.StatusOK, rec.Code)
	secondCode := awaitCode(t, mock, 2)
	assert.NotEqual(t, firstCode, secondCode)

	u, _ := store.GetUserByUsername(context.Background(), "alice")
	assert.False(t, CheckConfirmationCode(firstCode, u.ConfirmationHash))
	assert.True(t, CheckConfirmationCode(secondCode, u.ConfirmationHash))
}

func TestSignupConflicts(t *testing.T) {
	h, _, mock := newTestHandler(t)

	rec := doJSON(t, h.Signup, signupRequest{Username: "alice", Email: "alice@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	awaitCode(t, mock, 1)

	// 同名不同邮箱
	rec = doJSON(t, h.Signup, signupRequest{Username: "alice", Email: "other@example.com"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// 不同名同邮箱
	rec = doJSON(t, h.Signup, signupRequest{Username: "bob", Email: "alice@example.com"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSignupMailFailureStillSucceeds(t *testing.T) {
	h, store, mock := newTestHandler(t)
	mock.FailWith = assert.AnError

	// 投递失败不影响注册结果，确认码已落库
	rec := doJSON(t, h.Signup, signupRequest{Username: "alice", Email: "alice@example.com"})
	assert.Equal(t, http.StatusOK, rec.Code)

	u, _ := store.GetUserByUsername(context.Background(), "alice")
	require.NotNil(t, u)
	require.Eventually(t, func() bool {
		return store.users[u.ID].ConfirmationHash != ""
	}, time.Second, 5*time.Millisecond)
}

// ============================================================================
// Token 测试
// ============================================================================

func TestToken(t *testing.T) {
	h, _, mock := newTestHandler(t)

	rec := doJSON(t, h.Signup, signupRequest{Username: "alice", Email: "alice@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	code := awaitCode(t, mock, 1)

	rec = doJSON(t, h.Token, tokenRequest{Username: "alice", ConfirmationCode: code})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["token"])

	claims, err := ParseToken(testConfig(), resp["token"])
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "user", claims.Role)
}

func TestTokenErrors(t *testing.T) {
	h, _, mock := newTestHandler(t)

	rec := doJSON(t, h.Signup, signupRequest{Username: "alice", Email: "alice@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	awaitCode(t, mock, 1)

	// 未知用户是 404，不是 400
	rec = doJSON(t, h.Token, tokenRequest{Username: "ghost", ConfirmationCode: "whatever"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// 错误确认码
	rec = doJSON(t, h.Token, tokenRequest{Username: "alice", ConfirmationCode: "wrong-code"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 缺字段
	rec = doJSON(t, h.Token, tokenRequest{Username: "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTokenStaleCodeAfterReissue(t *testing.T) {
	h, _, mock := newTestHandler(t)

	rec := doJSON(t, h.Signup, signupRequest{Username: "alice", Email: "alice@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	firstCode := awaitCode(t, mock, 1)

	rec = doJSON(t, h.Signup, signupRequest{Username: "alice", Email: "alice@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	secondCode := awaitCode(t, mock, 2)

	// 旧码被拒
	rec = doJSON(t, h.Token, tokenRequest{Username: "alice", ConfirmationCode: firstCode})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 新码可用
	rec = doJSON(t, h.Token, tokenRequest{Username: "alice", ConfirmationCode: secondCode})
	assert.Equal(t, http.StatusOK, rec.Code)
}

// ============================================================================
// EnsureAdmin 测试
// ============================================================================

func TestEnsureAdmin(t *testing.T) {
	store := newMemStore()

	require.NoError(t, EnsureAdmin(store, "admin", "admin@example.com"))
	u, _ := store.GetUserByUsername(context.Background(), "admin")
	require.NotNil(t, u)
	assert.Equal(t, model.RoleAdmin, u.Role)

	// 幂等
	require.NoError(t, EnsureAdmin(store, "admin", "admin@example.com"))

	// 已存在的普通用户被提升
	require.NoError(t, store.CreateUser(context.Background(), &model.User{
		ID: "usr-bob", Username: "bob", Email: "bob@example.com", Role: model.RoleUser,
	}))
	require.NoError(t, EnsureAdmin(store, "bob", "bob@example.com"))
	u, _ = store.GetUserByUsername(context.Background(), "bob")
	assert.Equal(t, model.RoleAdmin, u.Role)

	// 空参数为 no-op
	require.NoError(t, EnsureAdmin(store, "", ""))
}

// ============================================================================
// 业务指标测试
// ============================================================================

// countingMetrics 记录各指标的调用次数；RecordMail 在投递协程中调用，需加锁
type countingMetrics struct {
	mu      sync.Mutex
	signups int
	tokens  int
	mailOK  int
	mailErr int
}

func (m *countingMetrics) RecordSignup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signups++
}

func (m *countingMetrics) RecordTokenIssued() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens++
}

func (m *countingMetrics) RecordMail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.mailErr++
	} else {
		m.mailOK++
	}
}

func (m *countingMetrics) snapshot() (signups, tokens, mailOK, mailErr int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signups, m.tokens, m.mailOK, m.mailErr
}

func TestMetricsRecorded(t *testing.T) {
	h, _, mock := newTestHandler(t)
	metrics := &countingMetrics{}
	h.SetMetrics(metrics)

	// 注册与重发各记一次 signup
	rec := doJSON(t, h.Signup, signupRequest{Username: "alice", Email: "alice@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, h.Signup, signupRequest{Username: "alice", Email: "alice@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	code := awaitCode(t, mock, 2)

	rec = doJSON(t, h.Token, tokenRequest{Username: "alice", ConfirmationCode: code})
	require.Equal(t, http.StatusOK, rec.Code)

	require.Eventually(t, func() bool {
		_, _, mailOK, _ := metrics.snapshot()
		return mailOK == 2
	}, time.Second, 5*time.Millisecond)

	signups, tokens, mailOK, mailErr := metrics.snapshot()
	assert.Equal(t, 2, signups)
	assert.Equal(t, 1, tokens)
	assert.Equal(t, 2, mailOK)
	assert.Equal(t, 0, mailErr)

	// 投递失败记入 error 结果，signup 照常计数
	mock.FailWith = assert.AnError
	rec = doJSON(t, h.Signup, signupRequest{Username: "alice", Email: "alice@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)

	require.Eventually(t, func() bool {
		_, _, _, mailErr := metrics.snapshot()
		return mailErr == 1
	}, time.Second, 5*time.Millisecond)
	signups, _, _, _ = metrics.snapshot()
	assert.Equal(t, 3, signups)
}

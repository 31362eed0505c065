package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"reviews-api/internal/shared/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{JWTSecret: "test-secret", TokenTTL: time.Hour}
}

func TestConfirmationCode(t *testing.T) {
	code, err := NewConfirmationCode()
	require.NoError(t, err)
	assert.Len(t, code, confirmationCodeBytes*2)

	// 每次生成都不同
	code2, err := NewConfirmationCode()
	require.NoError(t, err)
	assert.NotEqual(t, code, code2)

	hash, err := HashConfirmationCode(code)
	require.NoError(t, err)
	assert.NotEqual(t, code, hash)

	assert.True(t, CheckConfirmationCode(code, hash))
	assert.False(t, CheckConfirmationCode(code2, hash))
	assert.False(t, CheckConfirmationCode(code, "not-a-hash"))
}

func TestGenerateAndParseToken(t *testing.T) {
	cfg := testConfig()
	user := &model.User{ID: "usr-1", Username: "alice", Role: model.RoleModerator}

	token, err := GenerateToken(cfg, user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, "usr-1", claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "moderator", claims.Role)
}

func TestParseTokenWrongSecret(t *testing.T) {
	user := &model.User{ID: "usr-1", Username: "alice", Role: model.RoleUser}
	token, err := GenerateToken(testConfig(), user)
	require.NoError(t, err)

	_, err = ParseToken(Config{JWTSecret: "other-secret", TokenTTL: time.Hour}, token)
	assert.Error(t, err)
}

func TestParseTokenExpired(t *testing.T) {
	cfg := Config{JWTSecret: "test-secret", TokenTTL: -time.Hour}
	user := &model.User{ID: "usr-1", Username: "alice", Role: model.RoleUser}
	token, err := GenerateToken(cfg, user)
	require.NoError(t, err)

	_, err = ParseToken(testConfig(), token)
	assert.Error(t, err)
}

func TestValidators(t *testing.T) {
	assert.True(t, isValidEmail("user@example.com"))
	assert.False(t, isValidEmail("not-an-email"))
	assert.False(t, isValidEmail("user@"))

	assert.True(t, isValidUsername("alice"))
	assert.True(t, isValidUsername("a.b+c@d-e_f"))
	assert.False(t, isValidUsername("has spaces"))
	assert.False(t, isValidUsername("emoji☃"))
}

// ============================================================================
// Middleware 测试
// ============================================================================

func echoAuthUser(t *testing.T) (http.Handler, *[]*AuthUser) {
	t.Helper()
	var seen []*AuthUser
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, GetAuthUser(r.Context()))
		w.WriteHeader(http.StatusOK)
	})
	return h, &seen
}

func TestMiddlewareAnonymous(t *testing.T) {
	next, seen := echoAuthUser(t)
	handler := Middleware(testConfig())(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/titles", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, *seen, 1)
	assert.Nil(t, (*seen)[0])
}

func TestMiddlewareValidToken(t *testing.T) {
	cfg := testConfig()
	user := &model.User{ID: "usr-1", Username: "alice", Role: model.RoleAdmin}
	token, err := GenerateToken(cfg, user)
	require.NoError(t, err)

	next, seen := echoAuthUser(t)
	handler := Middleware(cfg)(next)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/titles", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, *seen, 1)
	caller := (*seen)[0]
	require.NotNil(t, caller)
	assert.Equal(t, "usr-1", caller.ID)
	assert.Equal(t, "alice", caller.Username)
	assert.Equal(t, model.RoleAdmin, caller.Role)
}

func TestMiddlewareBadToken(t *testing.T) {
	next, seen := echoAuthUser(t)
	handler := Middleware(testConfig())(next)

	tests := []struct {
		name   string
		header string
	}{
		{"malformed header", "NotBearer"},
		{"wrong scheme", "Basic abc123"},
		{"garbage token", "Bearer not.a.jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/titles", nil)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
	// 凭证非法时绝不落到业务处理器
	assert.Len(t, *seen, 0)
}

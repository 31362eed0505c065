package auth

import (
	"log"
	"net/http"
	"strings"

	"reviews-api/internal/shared/model"
)

// Middleware 创建 JWT 认证中间件
//
// 读接口对匿名开放，因此中间件只做"可选认证"：
//   - 无 Authorization 头：匿名放行，由各端点的授权谓词决定是否拒绝
//   - 有 Authorization 头：必须是合法 Bearer JWT，否则 401
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				http.Error(w, `{"error":"invalid authorization header"}`, http.StatusUnauthorized)
				return
			}

			claims, err := ParseToken(cfg, parts[1])
			if err != nil {
				log.Printf("[auth] token parse error: %v", err)
				http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
				return
			}

			role, err := model.ParseRole(claims.Role)
			if err != nil {
				http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
				return
			}

			user := &AuthUser{
				ID:       claims.Subject,
				Username: claims.Username,
				Role:     role,
			}
			next.ServeHTTP(w, r.WithContext(WithAuthUser(r.Context(), user)))
		})
	}
}

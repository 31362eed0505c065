// Package server 路由装配
package server

import (
	"net/http"

	"reviews-api/internal/apiserver/auth"
	"reviews-api/internal/apiserver/catalog"
	"reviews-api/internal/apiserver/review"
	"reviews-api/internal/apiserver/user"
)

// Router 返回配置好的 HTTP 路由
//
// 路由规则：
//
// 健康检查:
//   - GET /health - 服务健康检查
//
// 认证 (Auth):
//   - POST /api/v1/auth/signup - 注册并发送确认码
//   - POST /api/v1/auth/token  - 用确认码换取访问令牌
//
// 用户目录 (User):
//   - GET    /api/v1/users            - 列出用户（管理员）
//   - POST   /api/v1/users            - 创建用户（管理员）
//   - GET    /api/v1/users/me         - 当前用户资料
//   - PATCH  /api/v1/users/me         - 更新当前用户资料
//   - GET    /api/v1/users/{username} - 用户详情（管理员）
//   - PATCH  /api/v1/users/{username} - 更新用户（管理员）
//   - DELETE /api/v1/users/{username} - 删除用户（管理员）
//
// 目录 (Catalog):
//   - GET|POST   /api/v1/categories          - 分类列表/创建
//   - DELETE     /api/v1/categories/{slug}   - 删除分类
//   - GET|POST   /api/v1/genres              - 体裁列表/创建
//   - DELETE     /api/v1/genres/{slug}       - 删除体裁
//   - GET|POST   /api/v1/titles              - 作品列表/创建
//   - GET|PATCH|DELETE /api/v1/titles/{id}   - 作品详情/更新/删除
//
// 反馈 (Feedback):
//   - GET|POST /api/v1/titles/{title_id}/reviews - 评价列表/创建
//   - GET|PATCH|DELETE /api/v1/titles/{title_id}/reviews/{id}
//   - GET|POST /api/v1/titles/{title_id}/reviews/{review_id}/comments
//   - GET|PATCH|DELETE /api/v1/titles/{title_id}/reviews/{review_id}/comments/{id}
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("GET /health", h.Health)

	// Prometheus 指标端点
	mux.Handle("GET /metrics", MetricsHandler())

	// Auth 接口
	authHandler := auth.NewHandler(h.store, h.mailer, h.authConfig)
	authHandler.SetMetrics(h.metrics)
	authHandler.RegisterRoutes(mux)

	// User 接口
	userHandler := user.NewHandler(h.store, h.policy)
	userHandler.RegisterRoutes(mux)

	// Catalog 接口
	catalogHandler := catalog.NewHandler(h.store, h.policy)
	catalogHandler.RegisterRoutes(mux)

	// Review/Comment 接口
	reviewHandler := review.NewHandler(h.store, h.policy)
	reviewHandler.SetMetrics(h.metrics)
	reviewHandler.RegisterRoutes(mux)

	// 中间件链：请求 ID -> 访问日志 -> 指标 -> 认证 -> CORS
	var handler http.Handler = mux
	handler = auth.Middleware(h.authConfig)(handler)
	handler = h.metrics.MetricsMiddleware(handler)
	handler = AccessLogMiddleware(h.logger)(handler)
	handler = RequestIDMiddleware(handler)
	handler = corsMiddleware(handler)

	return handler
}

// corsMiddleware 添加 CORS 头支持跨域请求
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Package server 路由配置与核心基础设施
//
// 本包实现评价目录系统的 RESTful API 入口，包括：
//   - 路由装配（各领域独立包注册到同一 ServeMux）
//   - 认证/指标/访问日志中间件链
//   - 健康检查接口
//
// 文件组织：
//   - common.go: Handler 定义和通用工具函数
//   - handler.go: 路由装配
//   - middleware.go: 访问日志与请求 ID 中间件
//   - metrics.go: Prometheus 指标
package server

import (
	"encoding/json"
	"net/http"

	"reviews-api/internal/apiserver/auth"
	"reviews-api/internal/apiserver/policy"
	"reviews-api/internal/shared/mail"
	"reviews-api/internal/shared/storage"
	"reviews-api/pkg/logging"
)

// Handler API 处理器
//
// Handler 是所有 HTTP API 的入口，负责：
//   - 路由请求到各领域处理器
//   - 管理存储层连接
//   - 持有认证配置、授权策略与邮件发送器
type Handler struct {
	store  storage.PersistentStore // 持久化存储层
	mailer mail.Mailer             // 确认码邮件发送器

	authConfig auth.Config    // JWT 签发配置
	policy     *policy.Policy // 授权策略

	metrics *Metrics        // Prometheus 指标
	logger  *logging.Logger // 结构化日志器
}

// NewHandler 创建 Handler 实例
func NewHandler(store storage.PersistentStore, mailer mail.Mailer, authCfg auth.Config, p *policy.Policy) *Handler {
	return &Handler{
		store:      store,
		mailer:     mailer,
		authConfig: authCfg,
		policy:     p,
		metrics:    NewMetrics("api"),
		logger:     logging.Default("api-server"),
	}
}

// GetMetrics 返回指标实例
func (h *Handler) GetMetrics() *Metrics {
	return h.metrics
}

// SetLogger 替换默认日志器
func (h *Handler) SetLogger(logger *logging.Logger) {
	h.logger = logger
}

// writeJSON 将数据以 JSON 格式写入 HTTP 响应
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Health 健康检查接口
//
// 路由: GET /health
//
// 用于负载均衡器和监控系统检查服务状态。
// 返回 {"status": "ok"} 表示服务正常运行。
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Package server Prometheus 指标导出
package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 包含所有 API Server 指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// 业务指标
	SignupsTotal      prometheus.Counter
	TokensIssuedTotal prometheus.Counter
	ReviewsCreated    prometheus.Counter
	CommentsCreated   prometheus.Counter

	// 邮件指标
	MailSentTotal *prometheus.CounterVec
}

// NewMetrics 创建指标实例
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		SignupsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signups_total",
				Help:      "Total signup requests that issued a confirmation code",
			},
		),
		TokensIssuedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_issued_total",
				Help:      "Total access tokens issued",
			},
		),
		ReviewsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reviews_created_total",
				Help:      "Total reviews created",
			},
		),
		CommentsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "comments_created_total",
				Help:      "Total comments created",
			},
		),
		MailSentTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mail_sent_total",
				Help:      "Total confirmation mails by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// MetricsMiddleware 创建 HTTP 指标中间件
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		// 包装 ResponseWriter 以捕获状态码
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)
		status := strconv.Itoa(wrapped.statusCode)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter 包装 http.ResponseWriter 以捕获状态码
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath 规范化路径，将标识符替换为占位符，避免高基数
//
// 例如 /api/v1/titles/ttl-123/reviews/rev-456 ->
//
//	/api/v1/titles/{id}/reviews/{id}
func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/api/v1/") {
		return path
	}
	parts := strings.Split(path[len("/api/v1/"):], "/")
	for i := 1; i < len(parts); i += 2 {
		switch parts[i] {
		// 固定子路径，不是标识符
		case "", "signup", "token", "me":
		default:
			parts[i] = "{id}"
		}
	}
	return "/api/v1/" + strings.Join(parts, "/")
}

// MetricsHandler 返回 Prometheus HTTP Handler
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordSignup 记录一次发出确认码的注册请求
func (m *Metrics) RecordSignup() {
	m.SignupsTotal.Inc()
}

// RecordTokenIssued 记录一次令牌签发
func (m *Metrics) RecordTokenIssued() {
	m.TokensIssuedTotal.Inc()
}

// RecordReview 记录一次评价创建
func (m *Metrics) RecordReview() {
	m.ReviewsCreated.Inc()
}

// RecordComment 记录一次评论创建
func (m *Metrics) RecordComment() {
	m.CommentsCreated.Inc()
}

// RecordMail 记录确认码邮件发送结果
func (m *Metrics) RecordMail(err error) {
	if err != nil {
		m.MailSentTotal.WithLabelValues("error").Inc()
		return
	}
	m.MailSentTotal.WithLabelValues("ok").Inc()
}

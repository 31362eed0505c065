// Package server 访问日志与请求 ID 中间件
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"reviews-api/pkg/logging"
)

// requestIDHeader 请求 ID 响应头
const requestIDHeader = "X-Request-ID"

// RequestIDMiddleware 为每个请求分配 UUID 请求 ID
//
// 客户端传入的 X-Request-ID 会被透传，否则生成新的。
// 请求 ID 写入响应头和请求上下文，供访问日志关联。
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), logging.RequestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AccessLogMiddleware 记录每个请求的访问日志
func AccessLogMiddleware(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			logger.WithContext(r.Context()).HTTPRequestLog(
				r.Method,
				r.URL.Path,
				wrapped.statusCode,
				time.Since(start),
				clientIP(r),
			)
		})
	}
}

// clientIP 提取客户端地址，优先使用反向代理头
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Package main API Server 入口
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reviews-api/internal/apiserver/auth"
	"reviews-api/internal/apiserver/policy"
	"reviews-api/internal/apiserver/server"
	"reviews-api/internal/config"
	"reviews-api/internal/shared/mail"
	"reviews-api/internal/shared/model"
	"reviews-api/internal/shared/storage/repository"
	"reviews-api/pkg/logging"
)

func main() {
	// 加载配置（自动加载 .env，根据 APP_ENV 切换数据库）
	cfg := config.Load()

	log.Printf("Starting API Server... [env=%s]", cfg.Env)
	log.Printf("Config: %s", cfg.String())

	// 初始化存储层（SQLite 或 PostgreSQL，自动迁移建表）
	store, err := repository.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()
	log.Printf("Connected to database [driver=%s]", cfg.DBDriver)

	// 初始化邮件发送器；未配置 SMTP 时退化为日志输出
	mailCfg := mail.Config{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		From:     cfg.Mail.From,
		Username: cfg.MailUsername,
		Password: cfg.MailPassword,
	}
	var mailer mail.Mailer
	if mailCfg.Enabled() {
		mailer = mail.NewSMTPMailer(mailCfg)
		log.Printf("SMTP mailer enabled [host=%s]", mailCfg.Host)
	} else {
		mailer = mail.NewLogMailer()
		log.Println("SMTP not configured, confirmation codes are logged")
	}

	// 引导管理员账号
	if cfg.Admin.Username != "" && cfg.Admin.Email != "" {
		if err := auth.EnsureAdmin(store, cfg.Admin.Username, cfg.Admin.Email); err != nil {
			log.Fatalf("Failed to ensure admin account: %v", err)
		}
		log.Printf("Admin account ensured: %s", cfg.Admin.Username)
	}

	authCfg := auth.Config{
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.TokenTTL,
	}
	staffRoles := make([]model.Role, 0, len(cfg.StaffRoles))
	for _, name := range cfg.StaffRoles {
		role, err := model.ParseRole(name)
		if err != nil {
			log.Fatalf("Invalid staff role %q: %v", name, err)
		}
		staffRoles = append(staffRoles, role)
	}
	p := policy.New(policy.Config{StaffRoles: staffRoles})

	h := server.NewHandler(store, mailer, authCfg, p)
	h.SetLogger(logging.New(cfg.Log))

	srv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 优雅关闭
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("API Server listening on :%s", cfg.APIPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	fmt.Println("Server stopped")
}

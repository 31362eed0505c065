// Package config 统一配置管理
//
// 配置加载策略：
//  1. 从 .env 加载敏感信息（JWT 密钥、SMTP 密码）和 APP_ENV
//  2. 根据 APP_ENV 加载对应的 configs/{env}.yaml 配置文件
//  3. 环境变量可覆盖 YAML 配置
//
// 使用方式：
//   - 开发环境: APP_ENV=dev (默认)
//   - 测试环境: APP_ENV=test
//   - 生产环境: APP_ENV=prod
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"reviews-api/internal/shared/storage/dbutil"
	"reviews-api/pkg/logging"
)

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// YAMLConfig YAML 配置文件结构
type YAMLConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Mail     MailConfig     `yaml:"mail"`
	Roles    RolesConfig    `yaml:"roles"`
	Admin    AdminConfig    `yaml:"admin"`
	Log      logging.Config `yaml:"log"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

// DatabaseConfig 数据库配置
//
// driver 为 sqlite 时使用 path，为 postgres 时使用其余字段。
type DatabaseConfig struct {
	Driver  string `yaml:"driver"`
	Path    string `yaml:"path"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	User    string `yaml:"user"`
	Name    string `yaml:"name"`
	SSLMode string `yaml:"sslmode"`
}

// AuthConfig 认证配置；JWT 密钥只从环境变量读取
type AuthConfig struct {
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// MailConfig SMTP 配置；账号密码只从环境变量读取
type MailConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	From string `yaml:"from"`
}

// RolesConfig 授权角色配置
type RolesConfig struct {
	Staff []string `yaml:"staff"`
}

// AdminConfig 启动时引导的管理员账号
type AdminConfig struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env          Environment
	APIPort      string
	DBDriver     dbutil.DriverType
	DatabaseDSN  string
	JWTSecret    string
	TokenTTL     time.Duration
	Mail         MailConfig
	MailUsername string
	MailPassword string
	StaffRoles   []string
	Admin        AdminConfig
	Log          logging.Config
}

var configPaths = []string{
	"configs",
	"../configs",
	"../../configs",
	"../../../configs",
}

var envPaths = []string{
	".env",
	"../.env",
	"../../.env",
	"../../../.env",
}

// Load 加载配置
// 1. 加载 .env（敏感信息 + APP_ENV）
// 2. 根据 APP_ENV 加载 configs/{env}.yaml
// 3. 构建最终配置
func Load() *Config {
	// 加载 .env
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	// 解析环境
	env := parseEnv(getEnv("APP_ENV", "dev"))

	// 加载 YAML 配置
	yamlCfg := loadYAMLConfig(env)

	// 环境变量覆盖
	port := getEnv("API_PORT", yamlCfg.Server.Port)
	driver := getEnv("DB_DRIVER", yamlCfg.Database.Driver)

	cfg := &Config{
		Env:          env,
		APIPort:      port,
		DBDriver:     parseDriver(driver),
		JWTSecret:    getEnv("JWT_SECRET", "dev-secret-change-me"),
		TokenTTL:     yamlCfg.Auth.TokenTTL,
		Mail:         yamlCfg.Mail,
		MailUsername: os.Getenv("SMTP_USERNAME"),
		MailPassword: os.Getenv("SMTP_PASSWORD"),
		StaffRoles:   yamlCfg.Roles.Staff,
		Admin:        yamlCfg.Admin,
		Log:          yamlCfg.Log,
	}
	cfg.DatabaseDSN = buildDSN(cfg.DBDriver, yamlCfg.Database)
	cfg.validate()

	return cfg
}

// loadYAMLConfig 加载 YAML 配置文件
// 加载顺序：默认值 → common.yaml → {env}.yaml
func loadYAMLConfig(env Environment) *YAMLConfig {
	// 1. 初始化默认值
	cfg := &YAMLConfig{
		Server:   ServerConfig{Port: "8080"},
		Database: DatabaseConfig{Driver: "sqlite", Path: "reviews.db", Host: "localhost", Port: 5432, User: "reviews", Name: "reviews_api", SSLMode: "disable"},
		Auth:     AuthConfig{TokenTTL: 24 * time.Hour},
		Mail:     MailConfig{From: "noreply@reviews.local"},
		Roles:    RolesConfig{Staff: []string{"moderator", "admin"}},
		Log:      logging.Config{Level: "info", Format: "text", Output: "stdout", Component: "api-server"},
	}

	// 2. 加载 common.yaml（公共配置）
	for _, base := range configPaths {
		path := filepath.Join(base, "common.yaml")
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	// 3. 加载 {env}.yaml（环境特定配置，覆盖公共配置）
	filename := fmt.Sprintf("%s.yaml", env)
	for _, base := range configPaths {
		path := filepath.Join(base, filename)
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	return cfg
}

// buildDSN 构建数据库连接字符串
func buildDSN(driver dbutil.DriverType, db DatabaseConfig) string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	if driver == dbutil.DriverSQLite {
		return getEnv("DB_PATH", db.Path)
	}
	password := getEnv("DB_PASSWORD", "reviews_dev_password")
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		db.User, password, db.Host, db.Port, db.Name, db.SSLMode)
}

func parseDriver(driver string) dbutil.DriverType {
	if strings.EqualFold(driver, "postgres") {
		return dbutil.DriverPostgres
	}
	return dbutil.DriverSQLite
}

func parseEnv(env string) Environment {
	switch strings.ToLower(env) {
	case "test":
		return EnvTest
	case "prod", "production":
		return EnvProduction
	default:
		return EnvDevelopment
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsTest 是否为测试环境
func (c *Config) IsTest() bool {
	return c.Env == EnvTest
}

// String 返回配置摘要（隐藏密码）
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, Driver: %s, DB: %s}",
		c.Env, c.DBDriver, maskPassword(c.DatabaseDSN))
}

// maskPassword 隐藏连接串中的密码
func maskPassword(url string) string {
	re := regexp.MustCompile(`(://[^:]+:)([^@]+)(@)`)
	return re.ReplaceAllString(url, "${1}***${3}")
}

// validate 验证并填充默认值
func (c *Config) validate() {
	if c.APIPort == "" {
		c.APIPort = "8080"
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = 24 * time.Hour
	}
	if len(c.StaffRoles) == 0 {
		c.StaffRoles = []string{"moderator", "admin"}
	}
	if c.Mail.Port == 0 {
		c.Mail.Port = 587
	}
	if c.Mail.From == "" {
		c.Mail.From = "noreply@reviews.local"
	}
}

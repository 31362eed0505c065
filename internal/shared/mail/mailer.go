// Package mail 邮件发送抽象
//
// 确认码投递是尽力而为的旁路通道：发送失败只记录日志，
// 不重试、不回滚、不作为 API 错误暴露给调用方。
package mail

import "context"

// Mailer 邮件发送接口
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Config SMTP 配置
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	From     string `yaml:"from"`
	Username string `yaml:"-"` // 从环境变量读取
	Password string `yaml:"-"`
}

// Enabled 是否配置了 SMTP 出口
func (c Config) Enabled() bool {
	return c.Host != ""
}

package mail

import (
	"context"
	"log"
	"sync"
)

// Message 已发送邮件记录
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mock 内存实现，供测试断言投递内容
type Mock struct {
	mu       sync.Mutex
	Messages []Message
	// FailWith 非 nil 时 Send 返回该错误，用于模拟投递失败
	FailWith error
}

var _ Mailer = (*Mock)(nil)

// NewMock 创建 Mock 发送器
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.Messages = append(m.Messages, Message{To: to, Subject: subject, Body: body})
	return nil
}

// Count 返回已投递邮件数
func (m *Mock) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Messages)
}

// Last 返回最近一封邮件，没有则返回 nil
func (m *Mock) Last() *Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Messages) == 0 {
		return nil
	}
	msg := m.Messages[len(m.Messages)-1]
	return &msg
}

// LogMailer 未配置 SMTP 时的开发环境实现，只打日志
type LogMailer struct{}

var _ Mailer = (*LogMailer)(nil)

// NewLogMailer 创建日志发送器
func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

func (l *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	log.Printf("[mail] (smtp disabled) to=%s subject=%q body=%q", to, subject, body)
	return nil
}

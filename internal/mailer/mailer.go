// Package mailer 定义邮件投递接口。
// 产品当前不接真实 SMTP，默认实现只把邮件写进应用日志，
// 验证码在开发与测试环境直接从日志可见。
package mailer

import "github.com/habityfy/internal/logger"

// Mailer 抽象一次邮件投递
type Mailer interface {
	Send(to, subject, body string) error
}

// LogMailer 把邮件记录到日志而不真正发送
type LogMailer struct{}

// NewLogMailer 构造 LogMailer
func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

// Send 记录一封“已发送”的邮件
func (m *LogMailer) Send(to, subject, body string) error {
	logger.L().Info("mock email delivered", "to", to, "subject", subject, "body", body)
	return nil
}

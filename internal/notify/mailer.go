package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"printlink-be/internal/logger"

	"go.uber.org/zap"
)

type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type SMTPConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
}

type smtpMailer struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer returns an SMTP mailer, or a mailer that only logs when no host
// is configured.
func NewMailer(cfg SMTPConfig) Mailer {
	if cfg.Host == "" {
		logger.L().Warn("SMTP_HOST not set, emails will only be logged")
		return logMailer{}
	}
	return &smtpMailer{cfg: cfg, send: smtp.SendMail}
}

func (m *smtpMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return fmt.Errorf("header injection in recipient or subject")
	}

	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}

	msg := buildMessage(m.cfg.From, to, subject, htmlBody)
	addr := net.JoinHostPort(m.cfg.Host, m.cfg.Port)
	if err := m.send(addr, auth, m.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

func buildMessage(from, to, subject, htmlBody string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}

type logMailer struct{}

func (logMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	logger.FromCtx(ctx).Info("email (not sent, no SMTP configured)",
		zap.String("to", to),
		zap.String("subject", subject),
	)
	return nil
}

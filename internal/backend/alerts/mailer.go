package alerts

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"SilentFail/internal/config"
	"SilentFail/internal/shared/constants"
)

var ErrSMTPNotConfigured = errors.New("SMTP configuration incomplete")

// SMTPMailer отправляет HTML письма через SMTP сервер
type SMTPMailer struct {
	cfg    config.SMTPConfig
	logger *slog.Logger
}

func NewSMTPMailer(cfg config.SMTPConfig, logger *slog.Logger) *SMTPMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPMailer{cfg: cfg, logger: logger}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	host := strings.TrimSpace(m.cfg.Host)
	if host == "" || to == "" {
		return ErrSMTPNotConfigured
	}

	from := m.cfg.From
	if from == "" {
		from = m.cfg.User
	}

	msg := buildMessage(from, to, subject, htmlBody)
	addr := fmt.Sprintf("%s:%d", host, m.cfg.Port)

	ctx, cancel := context.WithTimeout(ctx, constants.SMTPTimeout)
	defer cancel()

	c, err := dialSMTP(ctx, addr, host, m.cfg.Port, m.cfg.SkipVerify)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("AUTH"); ok && m.cfg.User != "" {
		auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Password, host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("SMTP auth failed: %w", err)
		}
	}

	if err := c.Mail(from); err != nil {
		return fmt.Errorf("SMTP MAIL FROM failed: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("SMTP RCPT TO failed: %w", err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA failed: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write email body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish email: %w", err)
	}

	if err := c.Quit(); err != nil {
		m.logger.Debug("SMTP QUIT failed", "error", err)
	}

	m.logger.Info("email sent", "to", to, "subject", subject)
	return nil
}

// buildMessage заголовки в фиксированном порядке и тело письма
func buildMessage(from, to, subject, htmlBody string) string {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return b.String()
}

func dialSMTP(ctx context.Context, addr, host string, port int, skipVerify bool) (*smtp.Client, error) {
	tlsConfig := &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: skipVerify,
	}

	dialer := &net.Dialer{Timeout: constants.SMTPTimeout}

	var conn net.Conn
	var err error
	// 465 неявный TLS, остальные порты STARTTLS если сервер умеет
	if port == 465 {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: tlsConfig}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(constants.SMTPTimeout))
	}

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if port != 465 {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(tlsConfig); err != nil {
				_ = c.Close()
				return nil, err
			}
		}
	}

	return c, nil
}

// LogMailer пишет письма в лог, когда SMTP не настроен
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	m.logger.Warn("SMTP not configured, alert email logged only",
		"to", to,
		"subject", subject,
		"body_length", len(htmlBody),
	)
	return nil
}

package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/openpledge/sponsorships/pkg/logger"
)

// Dispatcher delivers a rendered message to a recipient. Implementations are
// collaborators of the extension workflow: delivery failure must be reported
// to the caller but never aborts the operation that triggered it.
type Dispatcher interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SMTPConfig holds the settings for the SMTP dispatcher.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// SMTPDispatcher sends HTML mail through an authenticated SMTP relay using
// STARTTLS when the server offers it.
type SMTPDispatcher struct {
	cfg SMTPConfig
	log *logger.Logger
}

// NewSMTPDispatcher validates the configuration and returns a dispatcher.
func NewSMTPDispatcher(cfg SMTPConfig, log *logger.Logger) (*SMTPDispatcher, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if log == nil {
		log = logger.NewDefault("notify")
	}
	return &SMTPDispatcher{cfg: cfg, log: log}, nil
}

// Send delivers one HTML message. The context governs cancellation of the
// blocking SMTP exchange.
func (d *SMTPDispatcher) Send(ctx context.Context, to, subject, htmlBody string) error {
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("recipient address is required")
	}

	msg := buildMessage(d.cfg.From, to, subject, htmlBody)
	addr := fmt.Sprintf("%s:%d", d.cfg.Host, d.cfg.Port)

	var auth smtp.Auth
	if d.cfg.Username != "" {
		auth = smtp.PlainAuth("", d.cfg.Username, d.cfg.Password, d.cfg.Host)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- smtp.SendMail(addr, auth, d.cfg.From, []string{to}, msg)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("send mail to %s: %w", to, err)
		}
		d.log.WithField("to", to).WithField("subject", subject).Info("notification sent")
		return nil
	}
}

func buildMessage(from, to, subject, htmlBody string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}

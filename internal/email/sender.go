// Package email provides email sending capabilities.
//
// Two transports are available: an SMTP Sender, which accepts per-request
// credentials, and a GmailSender, which uses a stored OAuth token.
package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	"github.com/kaiassist/kai/internal/core"
	"github.com/kaiassist/kai/internal/logging"
)

// Message represents an email message
type Message struct {
	To      []string
	Subject string
	Body    string
	Headers map[string]string
}

// Validate checks the message has a parseable recipient
func (m *Message) Validate() error {
	if len(m.To) == 0 {
		return fmt.Errorf("%w: recipient", core.ErrMissingRequired)
	}
	for _, addr := range m.To {
		if _, err := mail.ParseAddress(addr); err != nil {
			return fmt.Errorf("%w: recipient %q: %v", core.ErrInvalidInput, addr, err)
		}
	}
	return nil
}

// ParseDetails splits "to,subject,body". The body may contain commas.
func ParseDetails(details string) (*Message, error) {
	parts := strings.SplitN(details, ",", 3)
	if len(parts) != 3 {
		return nil, &core.FormatError{
			Hint: "Format error for email. Use: to,subject,body",
			Err:  fmt.Errorf("%w: want to,subject,body", core.ErrInvalidInput),
		}
	}
	return &Message{
		To:      []string{strings.TrimSpace(parts[0])},
		Subject: strings.TrimSpace(parts[1]),
		Body:    strings.TrimSpace(parts[2]),
	}, nil
}

// Config configures the SMTP sender
type Config struct {
	SMTPHost    string
	SMTPPort    int
	Username    string
	Password    string
	FromEmail   string
	FromName    string
	UseTLS      bool // Implicit TLS, e.g. port 465
	UseStartTLS bool // Upgrade a plain connection when offered
	Timeout     time.Duration
}

// DefaultConfig returns Gmail SMTP over implicit TLS
func DefaultConfig() Config {
	return Config{
		SMTPHost: "smtp.gmail.com",
		SMTPPort: 465,
		FromName: "Kai",
		UseTLS:   true,
		Timeout:  30 * time.Second,
	}
}

// Sender delivers mail over SMTP
type Sender struct {
	config Config
}

// NewSender creates a new email sender
func NewSender(cfg Config) *Sender {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Sender{config: cfg}
}

// IsConfigured checks if the sender can reach a server
func (s *Sender) IsConfigured() bool {
	return s.config.SMTPHost != "" && s.config.SMTPPort > 0
}

// effective merges per-request credentials over the configured ones.
// Request credentials also become the From address.
func (s *Sender) effective(creds core.Credentials) Config {
	cfg := s.config
	if creds.Complete() {
		cfg.Username = creds.Username
		cfg.Password = creds.Password
		cfg.FromEmail = creds.Username
	}
	if cfg.FromEmail == "" {
		cfg.FromEmail = cfg.Username
	}
	return cfg
}

// SendMail implements the router's mail collaborator
func (s *Sender) SendMail(ctx context.Context, to, subject, body string, creds core.Credentials) error {
	return s.Send(ctx, &Message{To: []string{to}, Subject: subject, Body: body}, creds)
}

// Send sends an email message
func (s *Sender) Send(ctx context.Context, msg *Message, creds core.Credentials) error {
	if !s.IsConfigured() {
		return core.ErrMailNotConfigured
	}
	cfg := s.effective(creds)
	if cfg.FromEmail == "" {
		return fmt.Errorf("%w: no sender address", core.ErrMailNotConfigured)
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	if err := s.deliver(ctx, cfg, msg); err != nil {
		logging.WithField("smtp_host", cfg.SMTPHost).Warn("mail delivery failed: %v", err)
		return fmt.Errorf("%w: %v", core.ErrMailFailed, err)
	}
	return nil
}

func (s *Sender) dial(ctx context.Context, cfg Config) (*smtp.Client, error) {
	addr := net.JoinHostPort(cfg.SMTPHost, fmt.Sprint(cfg.SMTPPort))
	dialer := &net.Dialer{Timeout: cfg.Timeout}

	var conn net.Conn
	var err error
	if cfg.UseTLS {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: cfg.SMTPHost}}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(cfg.Timeout))
	}

	client, err := smtp.NewClient(conn, cfg.SMTPHost)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}
	return client, nil
}

func (s *Sender) deliver(ctx context.Context, cfg Config, msg *Message) error {
	client, err := s.dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	if cfg.UseStartTLS && !cfg.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: cfg.SMTPHost}); err != nil {
				return fmt.Errorf("STARTTLS failed: %w", err)
			}
		}
	}

	if cfg.Username != "" && cfg.Password != "" {
		auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
	}

	if err := client.Mail(cfg.FromEmail); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	for _, rcpt := range msg.To {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("RCPT TO failed for %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := w.Write(buildEmail(cfg.FromName, cfg.FromEmail, msg)); err != nil {
		return fmt.Errorf("failed to write email data: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	return client.Quit()
}

// TestConnection dials the server and says hello without sending mail
func (s *Sender) TestConnection(ctx context.Context) error {
	if !s.IsConfigured() {
		return core.ErrMailNotConfigured
	}

	client, err := s.dial(ctx, s.config)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Hello("kai"); err != nil {
		return fmt.Errorf("HELO failed: %w", err)
	}
	return client.Quit()
}

// buildEmail constructs the raw plain-text email
func buildEmail(fromName, fromEmail string, msg *Message) []byte {
	var buf bytes.Buffer

	from := (&mail.Address{Name: fromName, Address: fromEmail}).String()
	buf.WriteString(fmt.Sprintf("From: %s\r\n", from))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(msg.To, ", ")))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject)))
	buf.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	buf.WriteString("MIME-Version: 1.0\r\n")
	for key, value := range msg.Headers {
		buf.WriteString(fmt.Sprintf("%s: %s\r\n", key, value))
	}
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	buf.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))

	return buf.Bytes()
}

package verification

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"press/internal/config"
	"press/internal/middleware"
	"press/internal/models"
)

// Message is a plain-text e-mail.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the application log instead of sending them.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, msg Message) error {
	middleware.Logger.InfoContext(ctx, "mail not sent, logging instead",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Body),
	)
	return nil
}

// SMTPMailer sends through an SMTP relay with PLAIN auth when credentials are set.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
}

func (m SMTPMailer) Send(_ context.Context, msg Message) error {
	addr := net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}
	if err := smtp.SendMail(addr, auth, msg.From, []string{msg.To}, encode(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}

func encode(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

// NewMailer picks SMTP when a host is configured and the log mailer otherwise.
func NewMailer(cfg *config.Config) Mailer {
	if cfg.SMTPHost == "" {
		return LogMailer{}
	}
	return SMTPMailer{Host: cfg.SMTPHost, Port: cfg.SMTPPort, Username: cfg.SMTPUsername, Password: cfg.SMTPPassword}
}

// Sender mails verification links to new users.
type Sender struct {
	Tokens  *Tokens
	Mailer  Mailer
	Domain  string
	From    string
	Subject string
}

func NewSender(cfg *config.Config, mailer Mailer) *Sender {
	return &Sender{
		Tokens:  NewTokens(cfg.JWTSecret, cfg.EmailTokenLife()),
		Mailer:  mailer,
		Domain:  cfg.EmailPageDomain,
		From:    cfg.EmailFromAddress,
		Subject: cfg.EmailSubject,
	}
}

// SendVerification mails user a link that activates their account.
func (s *Sender) SendVerification(ctx context.Context, user *models.User) error {
	token, err := s.Tokens.Issue(user.Email)
	if err != nil {
		return err
	}
	link, err := Link(s.Domain, token)
	if err != nil {
		return err
	}
	return s.Mailer.Send(ctx, Message{
		From:    s.From,
		To:      user.Email,
		Subject: s.Subject,
		Body: fmt.Sprintf("Hi %s,\n\nPlease confirm your e-mail address by opening the link below:\n\n%s\n\n"+
			"If you did not sign up, you can ignore this message.\n", user.Username, link),
	})
}

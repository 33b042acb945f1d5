// internal/service/email/service.go
package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config holds the SMTP account invitations are sent from.
type Config struct {
	Host      string
	Port      string
	Username  string
	Password  string
	FromName  string
	Secure    bool
	InviteURL string
}

// Sender delivers invitation emails over SMTP.
type Sender struct {
	cfg    Config
	logger *zap.Logger
	send   func(ctx context.Context, to string, msg []byte) error
}

func NewSender(cfg Config, logger *zap.Logger) *Sender {
	s := &Sender{cfg: cfg, logger: logger}
	s.send = s.deliver
	return s
}

// Enabled reports whether an SMTP host is configured.
func (s *Sender) Enabled() bool {
	return s.cfg.Host != ""
}

// SendInvitation mails the registration link carrying token to email.
func (s *Sender) SendInvitation(ctx context.Context, email, token string, expiresAt time.Time) error {
	if !s.Enabled() {
		s.logger.Info("smtp not configured, invitation not mailed", zap.String("email", email))
		return nil
	}

	body, err := invitationBody(s.registrationLink(email, token), expiresAt)
	if err != nil {
		return err
	}
	if err := s.Send(ctx, email, "You have been invited as an administrator", body); err != nil {
		return err
	}
	s.logger.Info("invitation mailed", zap.String("email", email))
	return nil
}

// Send sends an HTML email.
func (s *Sender) Send(ctx context.Context, to, subject, bodyHTML string) error {
	from := fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.Username)
	msg := []byte(
		fmt.Sprintf("From: %s\r\n", from) +
			fmt.Sprintf("To: %s\r\n", to) +
			fmt.Sprintf("Subject: %s\r\n", subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=\"utf-8\"\r\n" +
			"\r\n" +
			buildHTMLTemplate(bodyHTML),
	)
	return s.send(ctx, to, msg)
}

func (s *Sender) registrationLink(email, token string) string {
	base := s.cfg.InviteURL
	if base == "" {
		base = "ordering://admin/register"
	}
	q := url.Values{}
	q.Set("email", email)
	q.Set("token", token)
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + q.Encode()
}

func (s *Sender) deliver(ctx context.Context, to string, msg []byte) error {
	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)

	if !s.cfg.Secure {
		// STARTTLS on 587
		if err := smtp.SendMail(addr, auth, s.cfg.Username, []string{to}, msg); err != nil {
			return fmt.Errorf("send mail failed: %w", err)
		}
		return nil
	}

	// implicit TLS on 465
	dialer := &tls.Dialer{Config: &tls.Config{ServerName: s.cfg.Host}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("tls dial failed: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp client failed: %w", err)
	}
	defer client.Quit()

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("auth failed: %w", err)
	}
	return s.sendMail(client, to, msg)
}

func (s *Sender) sendMail(client *smtp.Client, to string, msg []byte) error {
	if err := client.Mail(s.cfg.Username); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO failed: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA failed: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close failed: %w", err)
	}
	return nil
}

var invitationTmpl = template.Must(template.New("invitation").Parse(`
<p>You have been invited to manage the store as an administrator.</p>
<p><a class="button" href="{{.Link}}">Complete registration</a></p>
<p>This invitation expires on {{.Expires}}. If you were not expecting it, ignore this email.</p>
`))

func invitationBody(link string, expiresAt time.Time) (string, error) {
	var b strings.Builder
	err := invitationTmpl.Execute(&b, struct {
		Link    template.URL
		Expires string
	}{Link: template.URL(link), Expires: expiresAt.UTC().Format("2 Jan 2006 15:04 MST")})
	if err != nil {
		return "", fmt.Errorf("render invitation: %w", err)
	}
	return b.String(), nil
}

// buildHTMLTemplate wraps a body into the store's email layout.
func buildHTMLTemplate(content string) string {
	header := `
	<!DOCTYPE html>
	<html>
	<head>
		<meta charset="utf-8" />
		<title>Ordering</title>
		<style>
			body { font-family: Arial, sans-serif; background-color: #f6f8fa; padding: 30px; }
			.container { max-width: 600px; margin: auto; background: #fff; border-radius: 10px; overflow: hidden; }
			.header { background: #1f6f43; color: white; text-align: center; padding: 20px; font-size: 22px; font-weight: bold; }
			.body { padding: 25px; color: #333; line-height: 1.6; }
			a.button { display: inline-block; background: #1f6f43; color: white; padding: 10px 20px; border-radius: 5px; text-decoration: none; }
		</style>
	</head>
	<body>
	<div class="container">
		<div class="header">Ordering</div>
		<div class="body">
	`

	footer := `
		</div>
	</div>
	</body>
	</html>
	`

	return header + strings.TrimSpace(content) + footer
}

package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/workdeck/workdeck/internal/logging"
	"github.com/workdeck/workdeck/internal/server/config"
	"github.com/workdeck/workdeck/internal/server/models"
)

// SMTPNotifier sends account notifications over SMTP using the embedded
// HTML templates.
type SMTPNotifier struct {
	cfg       *config.Config
	log       logging.Logger
	templates *template.Template

	// sendMail is a seam for tests; defaults to smtp.SendMail.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPNotifier(cfg *config.Config, log logging.Logger) (*SMTPNotifier, error) {
	tmpl, err := template.New("emails").Parse(emailTemplates)
	if err != nil {
		return nil, fmt.Errorf("parsing email templates: %w", err)
	}

	return &SMTPNotifier{
		cfg:       cfg,
		log:       log.With("module", "smtp_notifier"),
		templates: tmpl,
		sendMail:  smtp.SendMail,
	}, nil
}

// NotifyCreatedAccount renders the created-account template and sends it
// to the new user's address. The plaintext password is included so the
// user can log in for the first time.
func (n *SMTPNotifier) NotifyCreatedAccount(ctx context.Context, user *models.User, password string) error {
	body, err := n.render("created_account", createdAccountData{
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Password:    password,
		AppName:     n.cfg.SMTPFromName,
	})
	if err != nil {
		return fmt.Errorf("rendering created account template: %w", err)
	}

	subject := "Your account has been created"

	n.log.Info(ctx, "sending created-account notification", "to", user.Email)
	return n.send(user.Email, subject, body)
}

func (n *SMTPNotifier) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := n.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (n *SMTPNotifier) send(to, subject, body string) error {
	from := n.cfg.SMTPFrom
	if n.cfg.SMTPFromName != "" {
		from = fmt.Sprintf("%s <%s>", n.cfg.SMTPFromName, n.cfg.SMTPFrom)
	}

	headers := map[string]string{
		"From":         from,
		"To":           to,
		"Subject":      subject,
		"MIME-Version": "1.0",
		"Content-Type": "text/html; charset=UTF-8",
	}

	var msg strings.Builder
	for k, v := range headers {
		fmt.Fprintf(&msg, "%s: %s\r\n", k, v)
	}
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", n.cfg.SMTPHost, n.cfg.SMTPPort)

	var a smtp.Auth
	if n.cfg.SMTPUsername != "" {
		a = smtp.PlainAuth("", n.cfg.SMTPUsername, n.cfg.SMTPPassword, n.cfg.SMTPHost)
	}

	return n.sendMail(addr, a, n.cfg.SMTPFrom, []string{to}, []byte(msg.String()))
}

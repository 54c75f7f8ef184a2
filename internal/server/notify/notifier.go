// Package notify delivers account-lifecycle messages. The directory
// service calls it when a new account is created; delivery failures are
// surfaced to the caller, never retried here.
package notify

import (
	"context"

	"github.com/workdeck/workdeck/internal/logging"
	"github.com/workdeck/workdeck/internal/server/config"
	"github.com/workdeck/workdeck/internal/server/models"
)

// Notifier sends account notifications. NotifyCreatedAccount carries the
// plaintext password so the recipient can perform a first login.
type Notifier interface {
	NotifyCreatedAccount(ctx context.Context, user *models.User, password string) error
}

// DummyNotifier drops every notification. Used when email notification is
// deactivated and in tests.
type DummyNotifier struct {
	log logging.Logger
}

func NewDummyNotifier(log logging.Logger) *DummyNotifier {
	return &DummyNotifier{log: log}
}

func (n *DummyNotifier) NotifyCreatedAccount(ctx context.Context, user *models.User, password string) error {
	n.log.Debug(ctx, "notification dropped (email notification deactivated)", "email", user.Email)
	return nil
}

// NewNotifier selects the notifier implementation from configuration:
// the SMTP mailer when email notification is activated, the dummy one
// otherwise.
func NewNotifier(cfg *config.Config, log logging.Logger) (Notifier, error) {
	if cfg.EmailNotificationActivated {
		return NewSMTPNotifier(cfg, log)
	}
	return NewDummyNotifier(log), nil
}

package notificator

import (
	"fmt"
	"runtime/debug"

	"github.com/vme50/paygate/internal/models"
	"github.com/vme50/paygate/pkg/logger"
)

// Notificator forwards accepted paid submissions to the creator. Forwarding
// is best-effort: the submission is already persisted and paid for, so a
// delivery failure is logged and never surfaced to the sender.
type Notificator struct {
	logger *logger.Logger

	TelegramNotificator *TelegramNotificator
	EmailNotificator    *EmailNotificator
}

func NewNotificator(logger *logger.Logger, telNotif *TelegramNotificator, emailNotif *EmailNotificator) *Notificator {
	return &Notificator{logger: logger, TelegramNotificator: telNotif, EmailNotificator: emailNotif}
}

// safeCall runs a function with panic recovery (synchronous, no goroutine spawning)
func (n *Notificator) safeCall(fn func(), context string) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Function panicked",
				"context", context,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

// ForwardSubmission delivers a newly recorded submission to the owner of the
// paywall it was sent through.
func (n *Notificator) ForwardSubmission(paywall *models.Paywall, submission *models.Submission) {
	message := formatSubmission(paywall, submission)

	if n.EmailNotificator != nil && paywall.Email != "" {
		email := paywall.Email
		n.safeCall(func() { n.EmailNotificator.SendNotification(email, message) }, "emailForward")
	}
	if n.TelegramNotificator != nil {
		n.safeCall(func() { n.TelegramNotificator.SendNotification(message) }, "telegramForward")
	}
}

func formatSubmission(paywall *models.Paywall, submission *models.Submission) string {
	title := paywall.Title
	if title == "" {
		title = paywall.ID
	}
	sender := submission.Name
	if sender == "" {
		sender = "Anonymous"
	}
	return fmt.Sprintf(
		"New paid message via %s\nFrom: %s (%s)\nPaid: %s %s (tx %s)\n\n%s",
		title, sender, submission.Contact, paywall.Price, paywall.Currency, submission.TxHash, submission.Message,
	)
}

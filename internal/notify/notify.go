// Package notify delivers qualification outcomes to staff and clients.
//
// The Dispatcher combines the email channel with the optional SMS channel.
// Delivery failures are logged and reported as a bool; they never propagate
// into the qualification flow.
package notify

import (
	"context"
	"log/slog"

	"github.com/dreampastry/qualibot/internal/models"
)

// Dispatcher fans outcome notifications out to the configured channels.
type Dispatcher struct {
	email *EmailSender
	sms   *SMSSender // nil when the SMS channel is not configured
}

// NewDispatcher creates a dispatcher. The SMS sender may be nil.
func NewDispatcher(email *EmailSender, sms *SMSSender) *Dispatcher {
	slog.Debug("Dispatcher.NewDispatcher: creating dispatcher", "hasEmail", email != nil, "hasSMS", sms != nil)
	return &Dispatcher{email: email, sms: sms}
}

// NotifyStaff emails the outcome to the team inbox.
func (d *Dispatcher) NotifyStaff(ctx context.Context, profile models.ClientProfile, details string) bool {
	if d.email == nil {
		slog.Warn("Dispatcher.NotifyStaff: no email channel configured")
		return false
	}
	if err := d.email.SendStaffEmail(profile, details); err != nil {
		slog.Error("Dispatcher.NotifyStaff: send failed", "error", err, "client", profile.FullName())
		return false
	}
	slog.Info("Dispatcher.NotifyStaff: staff notified", "client", profile.FullName())
	return true
}

// NotifyClient emails the prospect their outcome and, when the SMS channel is
// configured, texts a short summary as well. The returned bool reports the
// email delivery; the SMS is best effort.
func (d *Dispatcher) NotifyClient(ctx context.Context, profile models.ClientProfile, status models.QualificationStatus, details string) bool {
	if d.sms != nil {
		if err := d.sms.SendOutcomeSMS(profile, status); err != nil {
			slog.Warn("Dispatcher.NotifyClient: SMS send failed", "error", err, "client", profile.FullName())
		}
	}
	if d.email == nil {
		slog.Warn("Dispatcher.NotifyClient: no email channel configured")
		return false
	}
	if err := d.email.SendClientEmail(profile, status, details); err != nil {
		slog.Error("Dispatcher.NotifyClient: send failed", "error", err, "client", profile.FullName(), "status", status)
		return false
	}
	slog.Info("Dispatcher.NotifyClient: client notified", "client", profile.FullName(), "status", status)
	return true
}

package notify

import (
	"context"
	"log/slog"
)

// Notification represents a notification message.
type Notification struct {
	Subject string
	Body    string
}

// Notifier is the interface for sending notifications.
type Notifier interface {
	// Send sends a notification.
	Send(ctx context.Context, notification Notification) error
}

// LogNotifier writes notifications to the log. Used when no handle is
// configured to receive them.
type LogNotifier struct{}

// Send logs the notification.
func (LogNotifier) Send(ctx context.Context, notification Notification) error {
	slog.Warn("notification",
		"subject", notification.Subject,
		"body", notification.Body,
	)
	return nil
}

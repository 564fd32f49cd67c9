package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mattn/go-mastodon"
)

// MastodonNotifier sends notifications as direct statuses mentioning the
// operator's handle.
type MastodonNotifier struct {
	client   *mastodon.Client
	toHandle string
}

// MastodonConfig holds configuration for Mastodon notifications.
type MastodonConfig struct {
	Server      string
	AccessToken string
	ToHandle    string // e.g. "admin@col.social", with or without the leading @
}

// NewMastodonNotifier creates a new Mastodon notifier.
func NewMastodonNotifier(cfg MastodonConfig) *MastodonNotifier {
	client := mastodon.NewClient(&mastodon.Config{
		Server:      strings.TrimRight(cfg.Server, "/"),
		AccessToken: cfg.AccessToken,
	})
	client.Timeout = 30 * time.Second

	return &MastodonNotifier{
		client:   client,
		toHandle: "@" + strings.TrimPrefix(cfg.ToHandle, "@"),
	}
}

// Send posts a direct-visibility status to the configured handle.
func (m *MastodonNotifier) Send(ctx context.Context, notification Notification) error {
	status, err := m.client.PostStatus(ctx, &mastodon.Toot{
		Status:     m.format(notification),
		Visibility: "direct",
	})
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}

	slog.Info("notification sent",
		"to", m.toHandle,
		"subject", notification.Subject,
		"id", status.ID,
	)
	return nil
}

func (m *MastodonNotifier) format(n Notification) string {
	return fmt.Sprintf("%s %s\n\n%s", m.toHandle, n.Subject, n.Body)
}

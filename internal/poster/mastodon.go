package poster

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mattn/go-mastodon"
)

const (
	mastodonVisibility = "public"
	mastodonLanguage   = "es"
	defaultTimeout     = 30 * time.Second
)

// MastodonPoster posts statuses to a Mastodon instance.
type MastodonPoster struct {
	client   *mastodon.Client
	server   string
	maxChars int
}

// MastodonConfig holds configuration for the Mastodon poster.
type MastodonConfig struct {
	Server      string
	AccessToken string
	MaxChars    int
	Timeout     time.Duration
}

// NewMastodonPoster creates a new Mastodon poster.
func NewMastodonPoster(cfg MastodonConfig) *MastodonPoster {
	client := mastodon.NewClient(&mastodon.Config{
		Server:      strings.TrimRight(cfg.Server, "/"),
		AccessToken: cfg.AccessToken,
	})

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client.Timeout = timeout

	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = MastodonMaxLength
	}

	return &MastodonPoster{
		client:   client,
		server:   cfg.Server,
		maxChars: maxChars,
	}
}

// Platform returns the platform name.
func (m *MastodonPoster) Platform() string {
	return "mastodon"
}

// ValidateCredentials checks the access token against the instance.
func (m *MastodonPoster) ValidateCredentials(ctx context.Context) error {
	account, err := m.client.GetAccountCurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("verify credentials: %w", classifyError(err))
	}

	slog.Debug("authenticated with Mastodon",
		"server", m.server,
		"account", account.Acct,
	)
	return nil
}

// Post publishes a public status. Text over the limit is refused before any
// request is made.
func (m *MastodonPoster) Post(ctx context.Context, content PostContent) (*PostResult, error) {
	if strings.TrimSpace(content.Text) == "" {
		return nil, fmt.Errorf("post status: %w", ErrEmptyBody)
	}
	if !FitsInLimit(content.Text, m.maxChars) {
		return nil, &BudgetError{MaxTotal: m.maxChars, Total: len([]rune(content.Text))}
	}

	status, err := m.client.PostStatus(ctx, &mastodon.Toot{
		Status:     content.Text,
		Visibility: mastodonVisibility,
		Language:   mastodonLanguage,
	})
	if err != nil {
		return nil, fmt.Errorf("post status: %w", classifyError(err))
	}

	slog.Info("posted to Mastodon",
		"id", status.ID,
		"url", status.URL,
		"poem_id", content.PoemID,
	)

	return &PostResult{
		PostID:  string(status.ID),
		PostURL: status.URL,
	}, nil
}

// classifyError maps the HTTP status embedded in client errors onto the
// package sentinels.
func classifyError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "401"), strings.Contains(msg, "403"):
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	case strings.Contains(msg, "422"):
		return fmt.Errorf("%w: %w", ErrRejected, err)
	default:
		return err
	}
}

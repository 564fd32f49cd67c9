package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/abdulachik/sonetobot/internal/config"
	"github.com/abdulachik/sonetobot/internal/db"
	"github.com/abdulachik/sonetobot/internal/extractor"
	"github.com/abdulachik/sonetobot/internal/notify"
	"github.com/abdulachik/sonetobot/internal/poster"
	"github.com/abdulachik/sonetobot/internal/scraper"
)

// App is the main application container holding all dependencies.
type App struct {
	Config   *config.Config
	Store    *db.Store
	Scraper  *scraper.Scraper
	Composer *poster.Composer
	Poster   poster.Poster
	Notifier notify.Notifier

	fetcher scraper.PageFetcher
	now     func() time.Time
}

// Option customizes an App.
type Option func(*App)

// WithPoster replaces the Mastodon poster.
func WithPoster(p poster.Poster) Option {
	return func(a *App) { a.Poster = p }
}

// WithNotifier replaces the notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(a *App) { a.Notifier = n }
}

// WithFetcher replaces the HTTP page fetcher used for scraping.
func WithFetcher(f scraper.PageFetcher) Option {
	return func(a *App) { a.fetcher = f }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// New opens and migrates the database and wires up every component.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	store, err := db.NewStore(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	status, err := store.Migrate(ctx)
	if err != nil {
		store.Close()
		return nil, err
	}
	if len(status.Pending) > 0 {
		slog.Info("database schema updated", "applied", status.Pending)
	}

	a, err := NewWithStore(cfg, store, opts...)
	if err != nil {
		store.Close()
		return nil, err
	}
	return a, nil
}

// NewWithStore wires the application around an already migrated store.
func NewWithStore(cfg *config.Config, store *db.Store, opts ...Option) (*App, error) {
	a := &App{
		Config:   cfg,
		Store:    store,
		Composer: poster.NewComposer(cfg.Hashtags),
		Poster: poster.NewMastodonPoster(poster.MastodonConfig{
			Server:      cfg.MastodonAPIURL,
			AccessToken: cfg.MastodonAccessToken,
			MaxChars:    cfg.MaxPostChars,
		}),
		Notifier: newNotifier(cfg),
		fetcher: scraper.NewFetcher(scraper.FetcherConfig{
			UserAgent:     cfg.UserAgent,
			Timeout:       cfg.RequestTimeout,
			RespectRobots: cfg.RespectRobots,
		}),
		now: time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	rules := extractor.ListingRules{
		DetailMarker: cfg.SourceDetailMarker,
		AuthorClass:  cfg.SourceAuthorClass,
		AuthorParam:  cfg.SourceAuthorParam,
		MoreGlyphs:   extractor.DefaultListingRules().MoreGlyphs,
		BaseURL:      cfg.SourceListingURL,
	}
	discoverer, err := extractor.NewDiscoverer(rules)
	if err != nil {
		return nil, fmt.Errorf("create discoverer: %w", err)
	}

	a.Scraper = scraper.New(a.fetcher, discoverer, scraper.Config{
		ListingURL:   cfg.SourceListingURL,
		BodySelector: cfg.SourceBodySelector,
		Delay:        cfg.RequestDelay,
		Attribution:  extractor.DefaultAttributionRules().WithPrefixes(cfg.AttributionPrefixes...),
	})

	return a, nil
}

func newNotifier(cfg *config.Config) notify.Notifier {
	if cfg.NotifyHandle == "" || cfg.MastodonAccessToken == "" {
		return notify.LogNotifier{}
	}
	return notify.NewMastodonNotifier(notify.MastodonConfig{
		Server:      cfg.MastodonAPIURL,
		AccessToken: cfg.MastodonAccessToken,
		ToHandle:    cfg.NotifyHandle,
	})
}

// Close closes all resources.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

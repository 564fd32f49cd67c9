package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/abdulachik/sonetobot/internal/db"
)

// Stats is a snapshot of the poem store.
type Stats struct {
	Total        int64         `json:"total"`
	Posted       int64         `json:"posted"`
	Unposted     int64         `json:"unposted"`
	PostsToday   int64         `json:"posts_today"`
	LastPostedAt *time.Time    `json:"last_posted_at,omitempty"`
	LastScrape   *db.ScrapeRun `json:"-"`
}

// Stats collects store counters.
func (a *App) Stats(ctx context.Context) (*Stats, error) {
	var (
		s   Stats
		err error
	)

	if s.Total, err = a.Store.CountPoems(ctx); err != nil {
		return nil, fmt.Errorf("count poems: %w", err)
	}
	if s.Posted, err = a.Store.CountPostedPoems(ctx); err != nil {
		return nil, fmt.Errorf("count posted poems: %w", err)
	}
	if s.Unposted, err = a.Store.CountUnpostedPoems(ctx); err != nil {
		return nil, fmt.Errorf("count unposted poems: %w", err)
	}
	if s.PostsToday, err = a.PostsToday(ctx); err != nil {
		return nil, err
	}

	last, err := a.Store.GetLastPostedAt(ctx)
	if err != nil {
		return nil, fmt.Errorf("get last post date: %w", err)
	}
	if last.Valid {
		s.LastPostedAt = &last.Time
	}

	run, err := a.Store.GetLastScrapeRun(ctx)
	switch {
	case err == nil:
		s.LastScrape = &run
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, fmt.Errorf("get last scrape run: %w", err)
	}

	return &s, nil
}

// PostsToday counts posts since midnight UTC.
func (a *App) PostsToday(ctx context.Context) (int64, error) {
	now := a.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	n, err := a.Store.CountPostsSince(ctx, midnight)
	if err != nil {
		return 0, fmt.Errorf("count today's posts: %w", err)
	}
	return n, nil
}

// Purge deletes every poem that has not been posted yet.
func (a *App) Purge(ctx context.Context) (int64, error) {
	n, err := a.Store.DeleteUnpostedPoems(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete unposted poems: %w", err)
	}
	slog.Info("purged unposted poems", "deleted", n)
	return n, nil
}

// RandomPoem returns any stored poem.
func (a *App) RandomPoem(ctx context.Context) (db.Poem, error) {
	poem, err := a.Store.GetRandomPoem(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return db.Poem{}, ErrNoPoems
	}
	if err != nil {
		return db.Poem{}, fmt.Errorf("get random poem: %w", err)
	}
	return poem, nil
}

// RecentPosts lists the latest posts, newest first.
func (a *App) RecentPosts(ctx context.Context, limit int) ([]db.ListRecentPostsRow, error) {
	posts, err := a.Store.ListRecentPosts(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list recent posts: %w", err)
	}
	return posts, nil
}

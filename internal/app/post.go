package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/abdulachik/sonetobot/internal/db"
	"github.com/abdulachik/sonetobot/internal/metrics"
	"github.com/abdulachik/sonetobot/internal/notify"
	"github.com/abdulachik/sonetobot/internal/poster"
)

// ErrNoPoems is returned when there is nothing left to post.
var ErrNoPoems = errors.New("no poems available")

// PostOptions tune a single post.
type PostOptions struct {
	// DryRun composes and logs the status without publishing or recording it.
	DryRun bool
	// AllowRepost picks any stored poem once every poem has been posted.
	AllowRepost bool
}

// PostOutcome describes a published (or dry-run) status.
type PostOutcome struct {
	Poem      db.Poem
	Text      string
	Truncated bool
	Platform  string
	Result    *poster.PostResult
	Remaining int64
	DryRun    bool
}

// PostPoem publishes one random unposted poem. Composition errors are
// returned as is; nothing oversized is ever sent.
func (a *App) PostPoem(ctx context.Context, opts PostOptions) (*PostOutcome, error) {
	poem, err := a.pickPoem(ctx, opts.AllowRepost)
	if err != nil {
		return nil, err
	}

	composed, err := a.Composer.Compose(poem.Title, poem.Author, poem.Body, a.Config.MaxPostChars)
	if err != nil {
		metrics.PostFailures.WithLabelValues("compose").Inc()
		return nil, fmt.Errorf("compose post for poem %d: %w", poem.ID, err)
	}

	p := a.Poster
	if opts.DryRun {
		p = poster.NewDryRunPoster()
	}

	result, err := p.Post(ctx, poster.PostContent{
		Text:   composed.Text,
		PoemID: poem.ID,
		Title:  poem.Title,
		Author: poem.Author,
	})
	if err != nil {
		metrics.PostFailures.WithLabelValues("publish").Inc()
		return nil, fmt.Errorf("publish poem %d: %w", poem.ID, err)
	}

	outcome := &PostOutcome{
		Poem:      poem,
		Text:      composed.Text,
		Truncated: composed.Truncated,
		Platform:  p.Platform(),
		Result:    result,
		DryRun:    opts.DryRun,
	}
	if opts.DryRun {
		return outcome, nil
	}

	if err := a.recordPost(ctx, outcome); err != nil {
		metrics.PostFailures.WithLabelValues("record").Inc()
		slog.Error("status published but not recorded", "poem_id", poem.ID, "post_id", result.PostID, "error", err)
		return outcome, err
	}
	metrics.PostsPublished.WithLabelValues(outcome.Platform).Inc()

	remaining, err := a.Store.CountUnpostedPoems(ctx)
	if err != nil {
		slog.Warn("failed to count unposted poems", "error", err)
		return outcome, nil
	}
	outcome.Remaining = remaining
	a.checkStock(ctx, remaining)

	return outcome, nil
}

func (a *App) pickPoem(ctx context.Context, allowRepost bool) (db.Poem, error) {
	poem, err := a.Store.GetRandomUnpostedPoem(ctx)
	if errors.Is(err, sql.ErrNoRows) && allowRepost {
		slog.Info("every poem has been posted, picking a repost")
		poem, err = a.Store.GetRandomPoem(ctx)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return db.Poem{}, ErrNoPoems
	}
	if err != nil {
		return db.Poem{}, fmt.Errorf("get poem: %w", err)
	}
	return poem, nil
}

// recordPost stores the post and marks its poem as posted in one transaction.
func (a *App) recordPost(ctx context.Context, outcome *PostOutcome) error {
	now := a.now().UTC()

	tx, err := a.Store.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := a.Store.Queries.WithTx(tx)

	_, err = q.CreatePost(ctx, db.CreatePostParams{
		PoemID:         outcome.Poem.ID,
		Platform:       outcome.Platform,
		PlatformPostID: sql.NullString{String: outcome.Result.PostID, Valid: outcome.Result.PostID != ""},
		PostUrl:        sql.NullString{String: outcome.Result.PostURL, Valid: outcome.Result.PostURL != ""},
		PostText:       outcome.Text,
		Truncated:      outcome.Truncated,
		PostedAt:       now,
	})
	if err != nil {
		return fmt.Errorf("record post: %w", err)
	}

	if err := q.MarkPoemPosted(ctx, db.MarkPoemPostedParams{ID: outcome.Poem.ID, PostedAt: now}); err != nil {
		return fmt.Errorf("mark poem posted: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit post: %w", err)
	}
	outcome.Poem.PostedAt = sql.NullTime{Time: now, Valid: true}
	return nil
}

func (a *App) checkStock(ctx context.Context, remaining int64) {
	if remaining >= int64(a.Config.LowStockThreshold) {
		return
	}

	err := a.Notifier.Send(ctx, notify.Notification{
		Subject: "SonetoBot: pocos poemas",
		Body:    fmt.Sprintf("Quedan %d poemas sin publicar. Lanza un scrape para reponer.", remaining),
	})
	if err != nil {
		slog.Warn("failed to send low stock notification", "error", err)
	}
}

// PreviewRequest selects what to preview: a stored poem by ID, or raw fields.
type PreviewRequest struct {
	PoemID int64  `json:"poem_id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Body   string `json:"body"`
}

// Preview composes a status without posting it.
func (a *App) Preview(ctx context.Context, req PreviewRequest) (poster.Composed, error) {
	if req.PoemID > 0 {
		poem, err := a.Store.GetPoem(ctx, req.PoemID)
		if errors.Is(err, sql.ErrNoRows) {
			return poster.Composed{}, ErrNoPoems
		}
		if err != nil {
			return poster.Composed{}, fmt.Errorf("get poem: %w", err)
		}
		req.Title, req.Author, req.Body = poem.Title, poem.Author, poem.Body
	}

	return a.Composer.Compose(req.Title, req.Author, req.Body, a.Config.MaxPostChars)
}

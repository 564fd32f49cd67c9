package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/abdulachik/sonetobot/internal/app"
	"github.com/abdulachik/sonetobot/internal/db"
	"github.com/abdulachik/sonetobot/internal/poster"
	"github.com/abdulachik/sonetobot/internal/scraper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBot struct {
	mu         sync.Mutex
	postsToday int64
	needScrape bool
	postErr    error
	scrapeErr  error
	posts      int
	scrapes    int
	lastPost   app.PostOptions
}

func (b *fakeBot) PostPoem(ctx context.Context, opts app.PostOptions) (*app.PostOutcome, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastPost = opts
	if b.postErr != nil {
		return nil, b.postErr
	}
	b.posts++
	b.postsToday++
	return &app.PostOutcome{
		Poem:   db.Poem{ID: 1, Title: "Caminante"},
		Result: &poster.PostResult{PostID: "1", PostURL: "https://col.social/@bot/1"},
	}, nil
}

func (b *fakeBot) Scrape(ctx context.Context, opts app.ScrapeOptions) (*app.ScrapeOutcome, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.scrapeErr != nil {
		return nil, b.scrapeErr
	}
	b.scrapes++
	return &app.ScrapeOutcome{Report: &scraper.Report{}}, nil
}

func (b *fakeBot) NeedsScrape(ctx context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.needScrape, nil
}

func (b *fakeBot) PostsToday(ctx context.Context) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.postsToday, nil
}

type fakeCredentials struct{ err error }

func (c fakeCredentials) ValidateCredentials(ctx context.Context) error { return c.err }

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New(Config{Bot: &fakeBot{}, PostSchedule: "every hour"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "post schedule")

	_, err = New(Config{Bot: &fakeBot{}, ScrapeSchedule: "* * *"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scrape schedule")

	// Six-field expressions are not accepted.
	_, err = New(Config{Bot: &fakeBot{}, PostSchedule: "0 0 */6 * * *"})
	assert.Error(t, err)
}

func TestScheduler_PostCycle(t *testing.T) {
	ctx := context.Background()

	t.Run("posts until the daily limit", func(t *testing.T) {
		bot := &fakeBot{}
		s, err := New(Config{Bot: bot, MaxPostsPerDay: 2, AllowRepost: true})
		require.NoError(t, err)

		_, err = s.PostCycle(ctx)
		require.NoError(t, err)
		_, err = s.PostCycle(ctx)
		require.NoError(t, err)
		_, err = s.PostCycle(ctx)
		assert.ErrorIs(t, err, ErrDailyLimit)

		assert.Equal(t, 2, bot.posts)
		assert.True(t, bot.lastPost.AllowRepost)

		status, ok := s.Health().Status(ComponentPost)
		require.True(t, ok)
		assert.True(t, status.Healthy)
	})

	t.Run("zero limit means unlimited", func(t *testing.T) {
		bot := &fakeBot{postsToday: 100}
		s, err := New(Config{Bot: bot})
		require.NoError(t, err)

		_, err = s.PostCycle(ctx)
		assert.NoError(t, err)
	})

	t.Run("failure is reported", func(t *testing.T) {
		bot := &fakeBot{postErr: app.ErrNoPoems}
		s, err := New(Config{Bot: bot, MaxPostsPerDay: 4})
		require.NoError(t, err)

		_, err = s.PostCycle(ctx)
		assert.ErrorIs(t, err, app.ErrNoPoems)

		status, ok := s.Health().Status(ComponentPost)
		require.True(t, ok)
		assert.False(t, status.Healthy)
		assert.Equal(t, 1, status.Failures)
		assert.False(t, s.Health().IsOverallHealthy())
	})
}

func TestScheduler_ScrapeCycle(t *testing.T) {
	ctx := context.Background()

	t.Run("skips when stock is enough", func(t *testing.T) {
		bot := &fakeBot{}
		s, err := New(Config{Bot: bot})
		require.NoError(t, err)

		s.ScrapeCycle(ctx)
		assert.Zero(t, bot.scrapes)
		_, ok := s.Health().Status(ComponentScrape)
		assert.False(t, ok)
	})

	t.Run("scrapes when low", func(t *testing.T) {
		bot := &fakeBot{needScrape: true}
		s, err := New(Config{Bot: bot})
		require.NoError(t, err)

		s.ScrapeCycle(ctx)
		assert.Equal(t, 1, bot.scrapes)
		status, ok := s.Health().Status(ComponentScrape)
		require.True(t, ok)
		assert.Equal(t, "scraped 0, saved 0", status.Message)
	})

	t.Run("failure is reported", func(t *testing.T) {
		bot := &fakeBot{needScrape: true, scrapeErr: errors.New("site down")}
		s, err := New(Config{Bot: bot})
		require.NoError(t, err)

		s.ScrapeCycle(ctx)
		status, ok := s.Health().Status(ComponentScrape)
		require.True(t, ok)
		assert.False(t, status.Healthy)
		assert.Equal(t, "site down", status.Message)
	})
}

func TestScheduler_Run(t *testing.T) {
	bot := &fakeBot{needScrape: true}
	s, err := New(Config{
		Bot:            bot,
		Credentials:    fakeCredentials{err: poster.ErrUnauthorized},
		PostSchedule:   "0 */6 * * *",
		ScrapeSchedule: "30 3 * * *",
		ScrapeOnStart:  true,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = s.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, bot.scrapes)

	status, ok := s.Health().Status(ComponentMastodon)
	require.True(t, ok)
	assert.False(t, status.Healthy)
}

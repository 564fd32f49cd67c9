package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/abdulachik/sonetobot/internal/app"
)

// ErrDailyLimit is returned when the day's post quota is already used.
var ErrDailyLimit = errors.New("daily post limit reached")

// Health component names.
const (
	ComponentMastodon = "mastodon"
	ComponentPost     = "post"
	ComponentScrape   = "scrape"
)

// Bot is the set of application operations the scheduler drives.
type Bot interface {
	PostPoem(ctx context.Context, opts app.PostOptions) (*app.PostOutcome, error)
	Scrape(ctx context.Context, opts app.ScrapeOptions) (*app.ScrapeOutcome, error)
	NeedsScrape(ctx context.Context) (bool, error)
	PostsToday(ctx context.Context) (int64, error)
}

// CredentialChecker validates the posting account at startup.
type CredentialChecker interface {
	ValidateCredentials(ctx context.Context) error
}

// Config holds scheduler configuration.
type Config struct {
	Bot         Bot
	Credentials CredentialChecker

	// PostSchedule and ScrapeSchedule are five-field cron expressions.
	// An empty schedule disables the job.
	PostSchedule   string
	ScrapeSchedule string

	MaxPostsPerDay int
	AllowRepost    bool
	ScrapeOnStart  bool
}

// Scheduler runs the post and scrape jobs on their cron schedules.
type Scheduler struct {
	cfg    Config
	cron   *cron.Cron
	health *Health

	// postMu serializes post cycles from cron and from the HTTP trigger.
	postMu sync.Mutex
}

// New parses the schedules and registers the jobs. Jobs start with Run.
func New(cfg Config) (*Scheduler, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	logger := cron.VerbosePrintfLogger(slogPrintf{})

	s := &Scheduler{
		cfg: cfg,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		health: NewHealth(),
	}

	if cfg.PostSchedule != "" {
		if _, err := s.cron.AddFunc(cfg.PostSchedule, s.runPostJob); err != nil {
			return nil, fmt.Errorf("parse post schedule %q: %w", cfg.PostSchedule, err)
		}
	}
	if cfg.ScrapeSchedule != "" {
		if _, err := s.cron.AddFunc(cfg.ScrapeSchedule, s.runScrapeJob); err != nil {
			return nil, fmt.Errorf("parse scrape schedule %q: %w", cfg.ScrapeSchedule, err)
		}
	}

	return s, nil
}

// Run starts the cron jobs and blocks until ctx is cancelled. Running jobs
// are allowed to finish before it returns.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("starting scheduler",
		"post_schedule", s.cfg.PostSchedule,
		"scrape_schedule", s.cfg.ScrapeSchedule,
		"max_posts_per_day", s.cfg.MaxPostsPerDay,
	)

	if s.cfg.Credentials != nil {
		if err := s.cfg.Credentials.ValidateCredentials(ctx); err != nil {
			s.health.SetUnhealthy(ComponentMastodon, err)
			slog.Error("failed to validate Mastodon credentials", "error", err)
		} else {
			s.health.SetHealthy(ComponentMastodon, "authenticated")
		}
	}

	if s.cfg.ScrapeOnStart {
		s.ScrapeCycle(ctx)
	}

	s.cron.Start()
	<-ctx.Done()

	slog.Info("scheduler shutting down")
	<-s.cron.Stop().Done()
	return ctx.Err()
}

func (s *Scheduler) runPostJob() {
	// cron jobs have no context of their own; Run stops them on shutdown.
	_, _ = s.PostCycle(context.Background())
}

func (s *Scheduler) runScrapeJob() {
	s.ScrapeCycle(context.Background())
}

// PostCycle publishes one poem unless the daily limit has been reached.
func (s *Scheduler) PostCycle(ctx context.Context) (*app.PostOutcome, error) {
	s.postMu.Lock()
	defer s.postMu.Unlock()

	slog.Debug("running post cycle")

	if s.cfg.MaxPostsPerDay > 0 {
		postsToday, err := s.cfg.Bot.PostsToday(ctx)
		if err != nil {
			slog.Error("failed to count today's posts", "error", err)
		} else if postsToday >= int64(s.cfg.MaxPostsPerDay) {
			slog.Info("daily post limit reached", "posts_today", postsToday, "max", s.cfg.MaxPostsPerDay)
			return nil, ErrDailyLimit
		}
	}

	outcome, err := s.cfg.Bot.PostPoem(ctx, app.PostOptions{AllowRepost: s.cfg.AllowRepost})
	if err != nil {
		s.health.SetUnhealthy(ComponentPost, err)
		slog.Error("post cycle failed", "error", err)
		return nil, err
	}

	s.health.SetHealthy(ComponentPost, "posted successfully")
	slog.Info("posted poem",
		"poem_id", outcome.Poem.ID,
		"title", outcome.Poem.Title,
		"url", outcome.Result.PostURL,
		"truncated", outcome.Truncated,
		"remaining", outcome.Remaining,
	)
	return outcome, nil
}

// ScrapeCycle refills the poem store when it is running low.
func (s *Scheduler) ScrapeCycle(ctx context.Context) {
	slog.Debug("running scrape cycle")

	need, err := s.cfg.Bot.NeedsScrape(ctx)
	if err != nil {
		s.health.SetUnhealthy(ComponentScrape, err)
		slog.Error("failed to check poem stock", "error", err)
		return
	}
	if !need {
		slog.Debug("enough unposted poems, skipping scrape")
		return
	}

	outcome, err := s.cfg.Bot.Scrape(ctx, app.ScrapeOptions{})
	if err != nil {
		s.health.SetUnhealthy(ComponentScrape, err)
		slog.Error("scrape cycle failed", "error", err)
		return
	}

	s.health.SetHealthy(ComponentScrape, outcome.Summary())
}

// Health returns the health tracker.
func (s *Scheduler) Health() *Health {
	return s.health
}

// slogPrintf adapts slog to the cron library's printf logger.
type slogPrintf struct{}

func (slogPrintf) Printf(format string, args ...any) {
	slog.Debug("cron: " + fmt.Sprintf(format, args...))
}

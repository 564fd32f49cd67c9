package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/abdulachik/sonetobot/internal/db"
	"github.com/abdulachik/sonetobot/internal/extractor"
	"github.com/abdulachik/sonetobot/internal/metrics"
	"github.com/abdulachik/sonetobot/internal/scraper"
)

// ScrapeOptions tune a single scrape.
type ScrapeOptions struct {
	// Limit caps detail pages fetched; zero uses MAX_POEMS_PER_SCRAPE.
	Limit int
	// DryRun scrapes without storing anything.
	DryRun bool
}

// ScrapeOutcome is the aggregate result of a scrape.
type ScrapeOutcome struct {
	RunID  int64
	Report *scraper.Report
	Saved  int64
	DryRun bool
}

// Scraped is the number of poems recovered from the source site.
func (o *ScrapeOutcome) Scraped() int {
	return len(o.Report.Poems)
}

// Summary is the short line shown to operators.
func (o *ScrapeOutcome) Summary() string {
	return fmt.Sprintf("scraped %d, saved %d", o.Scraped(), o.Saved)
}

// Scrape fetches new poems from the source site and stores them. Each run is
// recorded in scrape_runs unless DryRun is set. When the scrape is cut short
// after the listing was read, the poems already fetched are saved, the run is
// marked failed and the outcome is returned with the error.
func (a *App) Scrape(ctx context.Context, opts ScrapeOptions) (*ScrapeOutcome, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = a.Config.MaxPoemsPerScrape
	}

	outcome := &ScrapeOutcome{DryRun: opts.DryRun}

	if !opts.DryRun {
		run, err := a.Store.CreateScrapeRun(ctx, db.CreateScrapeRunParams{
			SourceUrl: a.Config.SourceListingURL,
			StartedAt: a.now(),
		})
		if err != nil {
			return nil, fmt.Errorf("create scrape run: %w", err)
		}
		outcome.RunID = run.ID
	}

	report, err := a.Scraper.Run(ctx, scraper.RunOptions{
		Limit: limit,
		Skip:  a.isKnown(ctx),
	})
	if err != nil {
		// A cancelled run still returns the poems fetched so far.
		if report != nil && !opts.DryRun {
			outcome.Report = report
			outcome.Saved = a.savePartial(ctx, report)
		}
		a.failRun(ctx, outcome.RunID, err)
		return outcome, fmt.Errorf("scrape: %w", err)
	}
	outcome.Report = report

	if opts.DryRun {
		slog.Info("dry run, poems not saved", "scraped", outcome.Scraped())
		return outcome, nil
	}

	saved, err := a.savePoems(ctx, report)
	if err != nil {
		a.failRun(ctx, outcome.RunID, err)
		return nil, fmt.Errorf("save poems: %w", err)
	}
	outcome.Saved = saved

	err = a.Store.CompleteScrapeRun(ctx, db.CompleteScrapeRunParams{
		ID:          outcome.RunID,
		Candidates:  int64(report.Candidates),
		Fetched:     int64(report.Fetched),
		Misses:      int64(report.Misses),
		FetchErrors: int64(report.FetchErrors),
		Saved:       saved,
		CompletedAt: a.now(),
	})
	if err != nil {
		slog.Warn("failed to complete scrape run", "run_id", outcome.RunID, "error", err)
	}

	slog.Info(outcome.Summary(), "run_id", outcome.RunID)
	return outcome, nil
}

func (a *App) savePoems(ctx context.Context, report *scraper.Report) (int64, error) {
	params := make([]db.CreatePoemParams, 0, len(report.Poems))
	for _, p := range report.Poems {
		params = append(params, db.NewCreatePoemParams(p.Title, p.Author, p.Body, p.SourceURL))
	}

	saved, err := a.Store.InsertPoems(ctx, params)
	if err != nil {
		return 0, err
	}
	metrics.PoemsSaved.Add(float64(saved))
	return saved, nil
}

// savePartial stores what an interrupted run fetched. The run context is
// usually cancelled by then.
func (a *App) savePartial(ctx context.Context, report *scraper.Report) int64 {
	if len(report.Poems) == 0 {
		return 0
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	saved, err := a.savePoems(ctx, report)
	if err != nil {
		slog.Warn("failed to save poems from interrupted scrape", "poems", len(report.Poems), "error", err)
		return 0
	}
	slog.Info("saved poems from interrupted scrape", "saved", saved, "scraped", len(report.Poems))
	return saved
}

// isKnown skips listing entries whose poem is already stored.
func (a *App) isKnown(ctx context.Context) func(extractor.ListingEntry) bool {
	return func(e extractor.ListingEntry) bool {
		exists, err := a.Store.PoemExists(ctx, extractor.CleanField(e.Title), extractor.CleanField(e.Author))
		if err != nil {
			slog.Debug("could not check for known poem", "title", e.Title, "error", err)
			return false
		}
		return exists
	}
}

func (a *App) failRun(ctx context.Context, runID int64, cause error) {
	if runID == 0 {
		return
	}
	// The run context may already be cancelled; the failure still gets recorded.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err := a.Store.FailScrapeRun(ctx, db.FailScrapeRunParams{
		ID:           runID,
		ErrorMessage: cause.Error(),
		CompletedAt:  a.now(),
	})
	if err != nil {
		slog.Warn("failed to record scrape failure", "run_id", runID, "error", err)
	}
}

// NeedsScrape reports whether the stock of unposted poems calls for a scrape.
func (a *App) NeedsScrape(ctx context.Context) (bool, error) {
	if a.Config.ScrapeAlways {
		return true, nil
	}
	unposted, err := a.Store.CountUnpostedPoems(ctx)
	if err != nil {
		return false, fmt.Errorf("count unposted poems: %w", err)
	}
	return unposted < int64(a.Config.LowStockThreshold), nil
}

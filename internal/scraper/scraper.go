// Package scraper walks the source site's listing page and recovers poems
// from the detail pages it links to.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/abdulachik/sonetobot/internal/extractor"
	"github.com/abdulachik/sonetobot/internal/metrics"
	"golang.org/x/time/rate"
)

// PageFetcher fetches a page as text.
type PageFetcher interface {
	Get(ctx context.Context, url string) (string, error)
}

// Config holds configuration for a scraper.
type Config struct {
	ListingURL   string
	BodySelector string
	// Delay is the minimum gap between two requests to the source site.
	Delay       time.Duration
	Attribution extractor.AttributionRules
}

// RunOptions tune a single scrape.
type RunOptions struct {
	// Limit caps the number of detail pages fetched. Zero means no cap.
	Limit int
	// Skip reports entries already stored; they are not fetched again.
	Skip func(extractor.ListingEntry) bool
}

// Report summarizes a scrape. Poems holds what was recovered; the counters
// explain what was not.
type Report struct {
	Candidates   int
	Dropped      int
	AlreadyKnown int
	Fetched      int
	FetchErrors  int
	Misses       int
	Poems        []extractor.Poem
}

// Scraper fetches one listing page, then its detail pages one at a time.
type Scraper struct {
	fetcher     PageFetcher
	discoverer  *extractor.Discoverer
	selector    string
	listingURL  string
	attribution extractor.AttributionRules
	limiter     *rate.Limiter
}

// New creates a scraper.
func New(fetcher PageFetcher, discoverer *extractor.Discoverer, cfg Config) *Scraper {
	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}

	return &Scraper{
		fetcher:     fetcher,
		discoverer:  discoverer,
		selector:    cfg.BodySelector,
		listingURL:  cfg.ListingURL,
		attribution: cfg.Attribution,
		limiter:     rate.NewLimiter(limit, 1),
	}
}

// Run performs one scrape. Only a listing failure (including
// extractor.ErrEmptyDiscovery) is returned as an error; a bad detail page is
// counted in the report and skipped. If ctx is cancelled between pages the
// partial report is returned along with the context error.
func (s *Scraper) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for listing: %w", err)
	}

	page, err := s.fetcher.Get(ctx, s.listingURL)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}

	discovery, err := s.discoverer.Discover(page)
	if err != nil {
		return nil, fmt.Errorf("discover poems: %w", err)
	}

	entries := dedupe(discovery.Entries)
	report := &Report{
		Candidates: len(entries),
		Dropped:    discovery.Dropped,
	}

	slog.Info("listing scanned",
		"url", s.listingURL,
		"anchors", discovery.Anchors,
		"candidates", report.Candidates,
		"dropped", report.Dropped,
	)

	attempts := 0
	for _, entry := range entries {
		if opts.Limit > 0 && attempts >= opts.Limit {
			break
		}
		if opts.Skip != nil && opts.Skip(entry) {
			report.AlreadyKnown++
			continue
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return report, fmt.Errorf("wait for detail page: %w", err)
		}
		attempts++

		poem, err := s.scrapeOne(ctx, entry)
		switch {
		case err == nil:
			report.Fetched++
			report.Poems = append(report.Poems, *poem)
		case errors.Is(err, errMiss):
			report.Fetched++
			report.Misses++
			metrics.ExtractionMisses.Inc()
			slog.Warn("no poem on detail page", "url", entry.DetailURL, "reason", err)
		default:
			report.FetchErrors++
			slog.Warn("failed to fetch detail page", "url", entry.DetailURL, "error", err)
		}
	}

	slog.Info("scrape finished",
		"candidates", report.Candidates,
		"fetched", report.Fetched,
		"poems", len(report.Poems),
		"misses", report.Misses,
		"fetch_errors", report.FetchErrors,
		"already_known", report.AlreadyKnown,
	)

	return report, nil
}

// errMiss marks a fetched page that did not yield a usable poem.
var errMiss = errors.New("extraction miss")

func (s *Scraper) scrapeOne(ctx context.Context, entry extractor.ListingEntry) (*extractor.Poem, error) {
	page, err := s.fetcher.Get(ctx, entry.DetailURL)
	if err != nil {
		return nil, err
	}

	body, err := extractor.ExtractBody(page, s.selector)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errMiss, err)
	}

	body = s.attribution.StripBody(body)
	if body == "" {
		return nil, fmt.Errorf("%w: body was only attribution", errMiss)
	}

	title := extractor.CleanField(entry.Title)
	author := extractor.CleanField(entry.Author)
	if title == "" || author == "" {
		return nil, fmt.Errorf("%w: missing title or author", errMiss)
	}

	return &extractor.Poem{
		Title:     title,
		Author:    author,
		Body:      body,
		SourceURL: entry.DetailURL,
	}, nil
}

func dedupe(entries []extractor.ListingEntry) []extractor.ListingEntry {
	seen := make(map[string]bool, len(entries))
	out := make([]extractor.ListingEntry, 0, len(entries))
	for _, e := range entries {
		if seen[e.DetailURL] {
			continue
		}
		seen[e.DetailURL] = true
		out = append(out, e)
	}
	return out
}

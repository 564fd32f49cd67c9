package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdulachik/sonetobot/internal/app"
	"github.com/abdulachik/sonetobot/internal/config"
)

var (
	scrapeLimit  int
	scrapeDryRun bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape new poems from the source site",
	Long: `Fetch the listing page, follow every poem link not yet stored and
save the poems found. Requests are spaced by REQUEST_DELAY.

Examples:
  sonetobot scrape              # Fetch up to MAX_POEMS_PER_SCRAPE poems
  sonetobot scrape --limit 5    # Fetch at most 5 detail pages
  sonetobot scrape --dry-run    # Scrape without saving`,
	RunE: runScrape,
}

func init() {
	scrapeCmd.Flags().IntVar(&scrapeLimit, "limit", 0, "Maximum detail pages to fetch (default MAX_POEMS_PER_SCRAPE)")
	scrapeCmd.Flags().BoolVar(&scrapeDryRun, "dry-run", false, "Scrape without saving poems")
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := loadApp(ctx, (*config.Config).ValidateForScraping)
	if err != nil {
		return err
	}
	defer a.Close()

	outcome, err := a.Scrape(ctx, app.ScrapeOptions{Limit: scrapeLimit, DryRun: scrapeDryRun})
	if err != nil {
		if outcome != nil && outcome.Report != nil {
			fmt.Printf("interrupted: %s\n", outcome.Summary())
		}
		return err
	}

	r := outcome.Report
	fmt.Println(outcome.Summary())
	fmt.Printf("  Candidates: %d (%d dropped, %d already stored)\n", r.Candidates, r.Dropped, r.AlreadyKnown)
	fmt.Printf("  Fetched: %d (%d errors, %d without a poem)\n", r.Fetched, r.FetchErrors, r.Misses)

	if scrapeDryRun {
		fmt.Println()
		for _, p := range r.Poems {
			fmt.Printf("- %s, %s (%s)\n", p.Title, p.Author, p.SourceURL)
		}
	}
	return nil
}

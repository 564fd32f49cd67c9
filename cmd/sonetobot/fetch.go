package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdulachik/sonetobot/internal/config"
	"github.com/abdulachik/sonetobot/internal/extractor"
	"github.com/abdulachik/sonetobot/internal/scraper"
)

var fetchListing bool

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Fetch one page and show what the scraper sees",
	Long: `Fetch a single page and print the extracted poem body, or with
--listing the poem links discovered on it. Nothing is stored. Useful for
checking SOURCE_BODY_SELECTOR and the listing rules against the live site.`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchListing, "listing", false, "Treat the page as a listing and print discovered poems")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	target := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fetcher := scraper.NewFetcher(scraper.FetcherConfig{
		UserAgent:     cfg.UserAgent,
		Timeout:       cfg.RequestTimeout,
		RespectRobots: cfg.RespectRobots,
	})

	start := time.Now()
	page, err := fetcher.Get(ctx, target)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", target, err)
	}
	fmt.Printf("Fetched %s (%d bytes, %s)\n\n", target, len(page), time.Since(start).Round(time.Millisecond))

	if fetchListing {
		return printListing(page, target, cfg)
	}

	body, err := extractor.ExtractBody(page, cfg.SourceBodySelector)
	if err != nil {
		return fmt.Errorf("extract %q: %w", cfg.SourceBodySelector, err)
	}
	body = extractor.DefaultAttributionRules().WithPrefixes(cfg.AttributionPrefixes...).StripBody(body)

	fmt.Println(body)
	return nil
}

func printListing(page, base string, cfg *config.Config) error {
	d, err := extractor.NewDiscoverer(extractor.ListingRules{
		DetailMarker: cfg.SourceDetailMarker,
		AuthorClass:  cfg.SourceAuthorClass,
		AuthorParam:  cfg.SourceAuthorParam,
		MoreGlyphs:   extractor.DefaultListingRules().MoreGlyphs,
		BaseURL:      base,
	})
	if err != nil {
		return err
	}

	found, err := d.Discover(page)
	if err != nil {
		return err
	}

	for _, e := range found.Entries {
		fmt.Printf("%s | %s\n  %s\n", e.Title, e.Author, e.DetailURL)
	}
	fmt.Printf("\n%d poems from %d links (%d dropped)\n", len(found.Entries), found.Anchors, found.Dropped)
	return nil
}

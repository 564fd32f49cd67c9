package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdulachik/sonetobot/internal/config"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	Long:  `Display statistics about stored poems, posts and scrape runs.`,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := loadApp(ctx, (*config.Config).Validate)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Println("=== SonetoBot Statistics ===")
	fmt.Println()
	fmt.Printf("Database: %s\n", a.Config.DatabasePath)
	fmt.Println()
	fmt.Println("Poems:")
	fmt.Printf("  Total: %d\n", stats.Total)
	fmt.Printf("  Posted: %d\n", stats.Posted)
	fmt.Printf("  Unposted: %d\n", stats.Unposted)
	fmt.Println()
	fmt.Println("Activity:")
	fmt.Printf("  Posts today: %d (max %d)\n", stats.PostsToday, a.Config.MaxPostsPerDay)
	if stats.LastPostedAt != nil {
		fmt.Printf("  Last post: %s\n", stats.LastPostedAt.Format(time.RFC3339))
	}
	if run := stats.LastScrape; run != nil {
		fmt.Printf("  Last scrape: %s (%s, %d saved)\n", run.StartedAt.Format(time.RFC3339), run.Status, run.Saved)
		if run.ErrorMessage.Valid {
			fmt.Printf("    Error: %s\n", run.ErrorMessage.String)
		}
	}
	fmt.Println()

	return nil
}

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdulachik/sonetobot/internal/app"
	"github.com/abdulachik/sonetobot/internal/config"
)

var (
	postDryRun      bool
	postAllowRepost bool
)

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Post a poem",
	Long: `Pick a random unposted poem and post it to Mastodon.

Examples:
  sonetobot post                 # Actually post
  sonetobot post --dry-run       # Show what would be posted without posting
  sonetobot post --allow-repost  # Repost an old poem if none are left`,
	RunE: runPost,
}

func init() {
	postCmd.Flags().BoolVar(&postDryRun, "dry-run", false, "Show what would be posted without actually posting")
	postCmd.Flags().BoolVar(&postAllowRepost, "allow-repost", false, "Repost an already posted poem when none are left")
	rootCmd.AddCommand(postCmd)
}

func runPost(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	validate := (*config.Config).ValidateForPosting
	if postDryRun {
		validate = (*config.Config).Validate
	}

	a, err := loadApp(ctx, validate)
	if err != nil {
		return err
	}
	defer a.Close()

	outcome, err := a.PostPoem(ctx, app.PostOptions{DryRun: postDryRun, AllowRepost: postAllowRepost})
	if errors.Is(err, app.ErrNoPoems) {
		fmt.Println("No unposted poems left. Run `sonetobot scrape` first.")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("=== Post Content ===")
	fmt.Println()
	fmt.Println(outcome.Text)
	fmt.Println()
	fmt.Printf("Poem: %d (%s)\n", outcome.Poem.ID, outcome.Poem.SourceUrl)
	fmt.Printf("Truncated: %t\n", outcome.Truncated)
	fmt.Println()

	if outcome.DryRun {
		fmt.Println("=== DRY RUN - Not posting ===")
		return nil
	}

	fmt.Printf("Posted successfully!\nURL: %s\n", outcome.Result.PostURL)
	fmt.Printf("Unposted poems left: %d\n", outcome.Remaining)
	return nil
}

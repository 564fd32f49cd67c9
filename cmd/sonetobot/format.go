package main

import (
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/abdulachik/sonetobot/internal/config"
	"github.com/abdulachik/sonetobot/internal/extractor"
	"github.com/abdulachik/sonetobot/internal/poster"
)

var (
	formatTitle  string
	formatAuthor string
	formatMax    int
)

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Compose a post from a poem on stdin",
	Long: `Read a poem body from stdin and print the status that would be posted,
truncated to fit the character limit.

Examples:
  sonetobot format --title "Rima LIII" --author "Gustavo Adolfo Bécquer" < rima.txt`,
	RunE: runFormat,
}

func init() {
	formatCmd.Flags().StringVar(&formatTitle, "title", "", "Poem title")
	formatCmd.Flags().StringVar(&formatAuthor, "author", "", "Poem author")
	formatCmd.Flags().IntVar(&formatMax, "max", 0, "Character limit (default MAX_POST_CHARS)")
	rootCmd.AddCommand(formatCmd)
}

func runFormat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	limit := cfg.MaxPostChars
	if formatMax > 0 {
		limit = formatMax
	}

	raw, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}

	body := extractor.NormalizeBreaks(string(raw))
	composed, err := poster.NewComposer(cfg.Hashtags).Compose(
		extractor.CleanField(formatTitle),
		extractor.CleanField(formatAuthor),
		body,
		limit,
	)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), composed.Text)
	fmt.Fprintf(os.Stderr, "\n%d/%d characters, truncated: %t\n", utf8.RuneCountInString(composed.Text), limit, composed.Truncated)
	return nil
}

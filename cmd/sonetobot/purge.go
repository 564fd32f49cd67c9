package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdulachik/sonetobot/internal/config"
)

var purgeYes bool

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every unposted poem",
	Long: `Delete all poems that have not been posted yet, for example after
changing the body selector. Posted poems and their history are kept.`,
	RunE: runPurge,
}

func init() {
	purgeCmd.Flags().BoolVar(&purgeYes, "yes", false, "Confirm the deletion")
	rootCmd.AddCommand(purgeCmd)
}

func runPurge(cmd *cobra.Command, args []string) error {
	if !purgeYes {
		return fmt.Errorf("refusing to delete poems without --yes")
	}

	ctx := cmd.Context()
	a, err := loadApp(ctx, (*config.Config).Validate)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.Purge(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Deleted %d unposted poems.\n", n)
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/abdulachik/sonetobot/internal/api"
	"github.com/abdulachik/sonetobot/internal/config"
	"github.com/abdulachik/sonetobot/internal/scheduler"
)

var (
	serveNoScheduler bool
	serveAllowRepost bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot daemon",
	Long: `Run the SonetoBot daemon: post on POST_SCHEDULE, refill the poem
store on SCRAPE_SCHEDULE when it runs low, and serve the HTTP API.

Use --no-scheduler when an external cron calls /api/cron/post-poem instead.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoScheduler, "no-scheduler", false, "Only serve HTTP, do not run scheduled jobs")
	serveCmd.Flags().BoolVar(&serveAllowRepost, "allow-repost", false, "Repost old poems when none are left")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := loadApp(ctx, (*config.Config).ValidateForServe)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.Config

	postSchedule, scrapeSchedule := cfg.PostSchedule, cfg.ScrapeSchedule
	if serveNoScheduler {
		postSchedule, scrapeSchedule = "", ""
	}

	sched, err := scheduler.New(scheduler.Config{
		Bot:            a,
		Credentials:    a.Poster,
		PostSchedule:   postSchedule,
		ScrapeSchedule: scrapeSchedule,
		MaxPostsPerDay: cfg.MaxPostsPerDay,
		AllowRepost:    serveAllowRepost,
		ScrapeOnStart:  !serveNoScheduler,
	})
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	server := api.NewServer(api.Config{
		Addr:       cfg.HTTPAddr,
		CronSecret: cfg.CronSecret,
		AdminToken: cfg.AdminToken,
		Debug:      cfg.LogLevel == "debug",
	}, a, sched, sched.Health())

	slog.Info("starting SonetoBot daemon",
		"addr", cfg.HTTPAddr,
		"scheduler", !serveNoScheduler,
		"max_posts_per_day", cfg.MaxPostsPerDay,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Whichever stops first takes the other down with it.
	errCh := make(chan error, 2)
	go func() { errCh <- sched.Run(ctx) }()
	go func() { errCh <- server.Run(ctx) }()

	var runErr error
	for range 2 {
		err := <-errCh
		cancel()
		if err != nil && !errors.Is(err, context.Canceled) && runErr == nil {
			runErr = err
		}
	}
	if runErr != nil {
		return fmt.Errorf("daemon error: %w", runErr)
	}

	slog.Info("shut down cleanly")
	return nil
}

// Package api exposes the bot over HTTP: public read endpoints, a cron
// trigger for external schedulers, admin operations and Prometheus metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abdulachik/sonetobot/internal/app"
	"github.com/abdulachik/sonetobot/internal/db"
	"github.com/abdulachik/sonetobot/internal/poster"
	"github.com/abdulachik/sonetobot/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

// Service is the application surface the handlers call.
type Service interface {
	Stats(ctx context.Context) (*app.Stats, error)
	RandomPoem(ctx context.Context) (db.Poem, error)
	RecentPosts(ctx context.Context, limit int) ([]db.ListRecentPostsRow, error)
	PostPoem(ctx context.Context, opts app.PostOptions) (*app.PostOutcome, error)
	Scrape(ctx context.Context, opts app.ScrapeOptions) (*app.ScrapeOutcome, error)
	Purge(ctx context.Context) (int64, error)
	Preview(ctx context.Context, req app.PreviewRequest) (poster.Composed, error)
}

// PostTrigger runs one guarded post cycle.
type PostTrigger interface {
	PostCycle(ctx context.Context) (*app.PostOutcome, error)
}

// Config holds the server settings.
type Config struct {
	Addr       string
	CronSecret string
	AdminToken string
	Debug      bool
}

// Server is the HTTP front of the bot.
type Server struct {
	svc     Service
	trigger PostTrigger
	health  *scheduler.Health
	cfg     Config
	router  *gin.Engine
	server  *http.Server
}

// NewServer builds the router. health may be nil when no scheduler runs.
func NewServer(cfg Config, svc Service, trigger PostTrigger, health *scheduler.Health) *Server {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if health == nil {
		health = scheduler.NewHealth()
	}

	s := &Server{
		svc:     svc,
		trigger: trigger,
		health:  health,
		cfg:     cfg,
	}

	router := gin.New()
	router.Use(gin.Recovery(), loggerMiddleware())
	s.routes(router)
	s.router = router

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	public := r.Group("/api/public")
	public.GET("/stats", s.handleStats)
	public.GET("/random-poem", s.handleRandomPoem)
	public.GET("/posts", s.handleRecentPosts)

	cron := r.Group("/api/cron", bearerAuth(s.cfg.CronSecret))
	cron.POST("/post-poem", s.handleCronPost)

	admin := r.Group("/api/admin", bearerAuth(s.cfg.AdminToken))
	admin.POST("/post-poem", s.handleAdminPost)
	admin.POST("/scrape", s.handleAdminScrape)
	admin.POST("/preview", s.handlePreview)
	admin.DELETE("/poems/unposted", s.handlePurge)
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting HTTP server", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	slog.Info("HTTP server stopped")
	return nil
}

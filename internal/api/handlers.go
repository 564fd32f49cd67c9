package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/abdulachik/sonetobot/internal/app"
	"github.com/abdulachik/sonetobot/internal/db"
	"github.com/abdulachik/sonetobot/internal/poster"
	"github.com/abdulachik/sonetobot/internal/scheduler"
)

const (
	defaultPostsLimit = 20
	maxPostsLimit     = 100
)

type poemResponse struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Author    string     `json:"author"`
	Body      string     `json:"body"`
	SourceURL string     `json:"source_url"`
	PostedAt  *time.Time `json:"posted_at,omitempty"`
}

func newPoemResponse(p db.Poem) poemResponse {
	r := poemResponse{
		ID:        p.ID,
		Title:     p.Title,
		Author:    p.Author,
		Body:      p.Body,
		SourceURL: p.SourceUrl,
	}
	if p.PostedAt.Valid {
		r.PostedAt = &p.PostedAt.Time
	}
	return r
}

type postResponse struct {
	ID        int64     `json:"id"`
	PoemID    int64     `json:"poem_id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Platform  string    `json:"platform"`
	URL       string    `json:"url,omitempty"`
	Truncated bool      `json:"truncated"`
	PostedAt  time.Time `json:"posted_at"`
}

type outcomeResponse struct {
	PoemID    int64  `json:"poem_id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Text      string `json:"text"`
	Truncated bool   `json:"truncated"`
	Platform  string `json:"platform"`
	PostID    string `json:"post_id,omitempty"`
	URL       string `json:"url,omitempty"`
	Remaining int64  `json:"remaining"`
	DryRun    bool   `json:"dry_run"`
}

func newOutcomeResponse(o *app.PostOutcome) outcomeResponse {
	r := outcomeResponse{
		PoemID:    o.Poem.ID,
		Title:     o.Poem.Title,
		Author:    o.Poem.Author,
		Text:      o.Text,
		Truncated: o.Truncated,
		Platform:  o.Platform,
		Remaining: o.Remaining,
		DryRun:    o.DryRun,
	}
	if o.Result != nil {
		r.PostID = o.Result.PostID
		r.URL = o.Result.PostURL
	}
	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	status, code := "ok", http.StatusOK
	if !s.health.IsOverallHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"success":    code == http.StatusOK,
		"status":     status,
		"components": s.health.Snapshot(),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.svc.Stats(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}
	respond(c, stats)
}

func (s *Server) handleRandomPoem(c *gin.Context) {
	poem, err := s.svc.RandomPoem(c.Request.Context())
	if errors.Is(err, app.ErrNoPoems) {
		fail(c, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.internalError(c, err)
		return
	}
	respond(c, newPoemResponse(poem))
}

func (s *Server) handleRecentPosts(c *gin.Context) {
	limit := defaultPostsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			fail(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxPostsLimit)
	}

	rows, err := s.svc.RecentPosts(c.Request.Context(), limit)
	if err != nil {
		s.internalError(c, err)
		return
	}

	posts := make([]postResponse, 0, len(rows))
	for _, r := range rows {
		posts = append(posts, postResponse{
			ID:        r.ID,
			PoemID:    r.PoemID,
			Title:     r.Title,
			Author:    r.Author,
			Platform:  r.Platform,
			URL:       r.PostUrl.String,
			Truncated: r.Truncated,
			PostedAt:  r.PostedAt,
		})
	}
	respond(c, posts)
}

func (s *Server) handleCronPost(c *gin.Context) {
	if s.trigger == nil {
		fail(c, http.StatusServiceUnavailable, "scheduler not running")
		return
	}

	outcome, err := s.trigger.PostCycle(c.Request.Context())
	if err != nil {
		s.postError(c, err)
		return
	}
	respond(c, newOutcomeResponse(outcome))
}

type adminPostRequest struct {
	DryRun      bool `json:"dry_run"`
	AllowRepost bool `json:"allow_repost"`
}

func (s *Server) handleAdminPost(c *gin.Context) {
	var req adminPostRequest
	if !bindOptional(c, &req) {
		return
	}

	outcome, err := s.svc.PostPoem(c.Request.Context(), app.PostOptions{
		DryRun:      req.DryRun,
		AllowRepost: req.AllowRepost,
	})
	if err != nil {
		s.postError(c, err)
		return
	}
	respond(c, newOutcomeResponse(outcome))
}

type adminScrapeRequest struct {
	Limit  int  `json:"limit"`
	DryRun bool `json:"dry_run"`
}

func (s *Server) handleAdminScrape(c *gin.Context) {
	var req adminScrapeRequest
	if !bindOptional(c, &req) {
		return
	}
	if req.Limit < 0 {
		fail(c, http.StatusBadRequest, "limit must not be negative")
		return
	}

	outcome, err := s.svc.Scrape(c.Request.Context(), app.ScrapeOptions{Limit: req.Limit, DryRun: req.DryRun})
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusBadGateway, err.Error())
		return
	}

	r := outcome.Report
	respond(c, gin.H{
		"run_id":        outcome.RunID,
		"summary":       outcome.Summary(),
		"candidates":    r.Candidates,
		"already_known": r.AlreadyKnown,
		"fetched":       r.Fetched,
		"fetch_errors":  r.FetchErrors,
		"misses":        r.Misses,
		"scraped":       outcome.Scraped(),
		"saved":         outcome.Saved,
		"dry_run":       outcome.DryRun,
	})
}

func (s *Server) handlePreview(c *gin.Context) {
	var req app.PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	composed, err := s.svc.Preview(c.Request.Context(), req)
	switch {
	case err == nil:
	case errors.Is(err, app.ErrNoPoems):
		fail(c, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, poster.ErrEmptyBody), errors.Is(err, poster.ErrBudgetExceeded):
		fail(c, http.StatusUnprocessableEntity, err.Error())
		return
	default:
		s.internalError(c, err)
		return
	}

	respond(c, gin.H{
		"text":      composed.Text,
		"length":    utf8.RuneCountInString(composed.Text),
		"truncated": composed.Truncated,
	})
}

func (s *Server) handlePurge(c *gin.Context) {
	n, err := s.svc.Purge(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}
	respond(c, gin.H{"deleted": n})
}

func (s *Server) postError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, scheduler.ErrDailyLimit):
		fail(c, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, app.ErrNoPoems):
		fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, poster.ErrUnauthorized), errors.Is(err, poster.ErrRejected):
		_ = c.Error(err)
		fail(c, http.StatusBadGateway, err.Error())
	default:
		s.internalError(c, err)
	}
}

func (s *Server) internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	fail(c, http.StatusInternalServerError, "internal error")
}

// bindOptional decodes a JSON body if one was sent.
func bindOptional(c *gin.Context, v any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

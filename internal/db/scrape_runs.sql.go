package db

import (
	"context"
	"time"
)

const scrapeRunColumns = `id, source_url, status, candidates, fetched, misses, fetch_errors, saved,
       error_message, started_at, completed_at`

func scanScrapeRun(row interface{ Scan(...interface{}) error }) (ScrapeRun, error) {
	var i ScrapeRun
	err := row.Scan(
		&i.ID,
		&i.SourceUrl,
		&i.Status,
		&i.Candidates,
		&i.Fetched,
		&i.Misses,
		&i.FetchErrors,
		&i.Saved,
		&i.ErrorMessage,
		&i.StartedAt,
		&i.CompletedAt,
	)
	return i, err
}

const createScrapeRun = `-- name: CreateScrapeRun :execlastid
INSERT INTO scrape_runs (source_url, status, started_at) VALUES (?, 'running', ?)
`

type CreateScrapeRunParams struct {
	SourceUrl string
	StartedAt time.Time
}

func (q *Queries) CreateScrapeRun(ctx context.Context, arg CreateScrapeRunParams) (ScrapeRun, error) {
	result, err := q.db.ExecContext(ctx, createScrapeRun, arg.SourceUrl, formatTime(arg.StartedAt))
	if err != nil {
		return ScrapeRun{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return ScrapeRun{}, err
	}
	return q.GetScrapeRun(ctx, id)
}

const getScrapeRun = `-- name: GetScrapeRun :one
SELECT ` + scrapeRunColumns + ` FROM scrape_runs WHERE id = ?
`

func (q *Queries) GetScrapeRun(ctx context.Context, id int64) (ScrapeRun, error) {
	return scanScrapeRun(q.db.QueryRowContext(ctx, getScrapeRun, id))
}

const getLastScrapeRun = `-- name: GetLastScrapeRun :one
SELECT ` + scrapeRunColumns + ` FROM scrape_runs
ORDER BY started_at DESC, id DESC
LIMIT 1
`

func (q *Queries) GetLastScrapeRun(ctx context.Context) (ScrapeRun, error) {
	return scanScrapeRun(q.db.QueryRowContext(ctx, getLastScrapeRun))
}

const completeScrapeRun = `-- name: CompleteScrapeRun :exec
UPDATE scrape_runs
SET status = 'completed',
    candidates = ?,
    fetched = ?,
    misses = ?,
    fetch_errors = ?,
    saved = ?,
    completed_at = ?
WHERE id = ?
`

type CompleteScrapeRunParams struct {
	Candidates  int64
	Fetched     int64
	Misses      int64
	FetchErrors int64
	Saved       int64
	CompletedAt time.Time
	ID          int64
}

func (q *Queries) CompleteScrapeRun(ctx context.Context, arg CompleteScrapeRunParams) error {
	_, err := q.db.ExecContext(ctx, completeScrapeRun,
		arg.Candidates,
		arg.Fetched,
		arg.Misses,
		arg.FetchErrors,
		arg.Saved,
		formatTime(arg.CompletedAt),
		arg.ID,
	)
	return err
}

const failScrapeRun = `-- name: FailScrapeRun :exec
UPDATE scrape_runs
SET status = 'failed', error_message = ?, completed_at = ?
WHERE id = ?
`

type FailScrapeRunParams struct {
	ErrorMessage string
	CompletedAt  time.Time
	ID           int64
}

func (q *Queries) FailScrapeRun(ctx context.Context, arg FailScrapeRunParams) error {
	_, err := q.db.ExecContext(ctx, failScrapeRun, arg.ErrorMessage, formatTime(arg.CompletedAt), arg.ID)
	return err
}

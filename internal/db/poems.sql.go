package db

import (
	"context"
	"database/sql"
	"time"
)

// timeLayout is how timestamps are written, matching SQLite's CURRENT_TIMESTAMP
// so that stored values compare correctly as text.
const timeLayout = "2006-01-02 15:04:05"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

const poemColumns = `id, title, author, body, source_url, text_hash, char_count, scraped_at, posted_at`

func scanPoem(row interface{ Scan(...interface{}) error }) (Poem, error) {
	var i Poem
	err := row.Scan(
		&i.ID,
		&i.Title,
		&i.Author,
		&i.Body,
		&i.SourceUrl,
		&i.TextHash,
		&i.CharCount,
		&i.ScrapedAt,
		&i.PostedAt,
	)
	return i, err
}

const createPoem = `-- name: CreatePoem :execrows
INSERT OR IGNORE INTO poems (title, author, body, source_url, text_hash, char_count)
VALUES (?, ?, ?, ?, ?, ?)
`

type CreatePoemParams struct {
	Title     string
	Author    string
	Body      string
	SourceUrl string
	TextHash  string
	CharCount int64
}

// CreatePoem inserts a poem unless one with the same hash exists and reports
// the number of rows written.
func (q *Queries) CreatePoem(ctx context.Context, arg CreatePoemParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, createPoem,
		arg.Title,
		arg.Author,
		arg.Body,
		arg.SourceUrl,
		arg.TextHash,
		arg.CharCount,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getPoem = `-- name: GetPoem :one
SELECT ` + poemColumns + ` FROM poems WHERE id = ?
`

func (q *Queries) GetPoem(ctx context.Context, id int64) (Poem, error) {
	return scanPoem(q.db.QueryRowContext(ctx, getPoem, id))
}

const getRandomUnpostedPoem = `-- name: GetRandomUnpostedPoem :one
SELECT ` + poemColumns + ` FROM poems
WHERE posted_at IS NULL
ORDER BY RANDOM()
LIMIT 1
`

func (q *Queries) GetRandomUnpostedPoem(ctx context.Context) (Poem, error) {
	return scanPoem(q.db.QueryRowContext(ctx, getRandomUnpostedPoem))
}

const getRandomPoem = `-- name: GetRandomPoem :one
SELECT ` + poemColumns + ` FROM poems
ORDER BY RANDOM()
LIMIT 1
`

func (q *Queries) GetRandomPoem(ctx context.Context) (Poem, error) {
	return scanPoem(q.db.QueryRowContext(ctx, getRandomPoem))
}

const poemExistsByHash = `-- name: PoemExistsByHash :one
SELECT EXISTS(SELECT 1 FROM poems WHERE text_hash = ?)
`

func (q *Queries) PoemExistsByHash(ctx context.Context, textHash string) (bool, error) {
	var exists int64
	err := q.db.QueryRowContext(ctx, poemExistsByHash, textHash).Scan(&exists)
	return exists == 1, err
}

const markPoemPosted = `-- name: MarkPoemPosted :exec
UPDATE poems SET posted_at = ? WHERE id = ?
`

type MarkPoemPostedParams struct {
	PostedAt time.Time
	ID       int64
}

func (q *Queries) MarkPoemPosted(ctx context.Context, arg MarkPoemPostedParams) error {
	_, err := q.db.ExecContext(ctx, markPoemPosted, formatTime(arg.PostedAt), arg.ID)
	return err
}

const deleteUnpostedPoems = `-- name: DeleteUnpostedPoems :execrows
DELETE FROM poems WHERE posted_at IS NULL
`

func (q *Queries) DeleteUnpostedPoems(ctx context.Context) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteUnpostedPoems)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const countPoems = `-- name: CountPoems :one
SELECT COUNT(*) FROM poems
`

func (q *Queries) CountPoems(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countPoems).Scan(&count)
	return count, err
}

const countUnpostedPoems = `-- name: CountUnpostedPoems :one
SELECT COUNT(*) FROM poems WHERE posted_at IS NULL
`

func (q *Queries) CountUnpostedPoems(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countUnpostedPoems).Scan(&count)
	return count, err
}

const countPostedPoems = `-- name: CountPostedPoems :one
SELECT COUNT(*) FROM poems WHERE posted_at IS NOT NULL
`

func (q *Queries) CountPostedPoems(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countPostedPoems).Scan(&count)
	return count, err
}

const getLastPostedAt = `-- name: GetLastPostedAt :one
SELECT posted_at FROM poems
WHERE posted_at IS NOT NULL
ORDER BY posted_at DESC
LIMIT 1
`

// GetLastPostedAt returns an invalid NullTime when nothing was posted yet.
func (q *Queries) GetLastPostedAt(ctx context.Context) (sql.NullTime, error) {
	var postedAt sql.NullTime
	err := q.db.QueryRowContext(ctx, getLastPostedAt).Scan(&postedAt)
	if err == sql.ErrNoRows {
		return sql.NullTime{}, nil
	}
	return postedAt, err
}

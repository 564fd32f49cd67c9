package db

import (
	"context"
	"database/sql"
	"time"
)

const createPost = `-- name: CreatePost :execlastid
INSERT INTO posts (poem_id, platform, platform_post_id, post_url, post_text, truncated, posted_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

type CreatePostParams struct {
	PoemID         int64
	Platform       string
	PlatformPostID sql.NullString
	PostUrl        sql.NullString
	PostText       string
	Truncated      bool
	PostedAt       time.Time
}

func (q *Queries) CreatePost(ctx context.Context, arg CreatePostParams) (Post, error) {
	result, err := q.db.ExecContext(ctx, createPost,
		arg.PoemID,
		arg.Platform,
		arg.PlatformPostID,
		arg.PostUrl,
		arg.PostText,
		arg.Truncated,
		formatTime(arg.PostedAt),
	)
	if err != nil {
		return Post{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Post{}, err
	}
	return q.GetPost(ctx, id)
}

const getPost = `-- name: GetPost :one
SELECT id, poem_id, platform, platform_post_id, post_url, post_text, truncated, posted_at
FROM posts WHERE id = ?
`

func (q *Queries) GetPost(ctx context.Context, id int64) (Post, error) {
	var i Post
	err := q.db.QueryRowContext(ctx, getPost, id).Scan(
		&i.ID,
		&i.PoemID,
		&i.Platform,
		&i.PlatformPostID,
		&i.PostUrl,
		&i.PostText,
		&i.Truncated,
		&i.PostedAt,
	)
	return i, err
}

const countPostsSince = `-- name: CountPostsSince :one
SELECT COUNT(*) FROM posts WHERE posted_at >= ?
`

func (q *Queries) CountPostsSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countPostsSince, formatTime(since)).Scan(&count)
	return count, err
}

const listRecentPosts = `-- name: ListRecentPosts :many
SELECT p.id, p.poem_id, p.platform, p.platform_post_id, p.post_url, p.truncated, p.posted_at,
       poems.title, poems.author
FROM posts p
JOIN poems ON poems.id = p.poem_id
ORDER BY p.posted_at DESC, p.id DESC
LIMIT ?
`

type ListRecentPostsRow struct {
	ID             int64
	PoemID         int64
	Platform       string
	PlatformPostID sql.NullString
	PostUrl        sql.NullString
	Truncated      bool
	PostedAt       time.Time
	Title          string
	Author         string
}

func (q *Queries) ListRecentPosts(ctx context.Context, limit int64) ([]ListRecentPostsRow, error) {
	rows, err := q.db.QueryContext(ctx, listRecentPosts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ListRecentPostsRow
	for rows.Next() {
		var i ListRecentPostsRow
		if err := rows.Scan(
			&i.ID,
			&i.PoemID,
			&i.Platform,
			&i.PlatformPostID,
			&i.PostUrl,
			&i.Truncated,
			&i.PostedAt,
			&i.Title,
			&i.Author,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

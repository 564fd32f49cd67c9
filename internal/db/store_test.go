package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoemHash(t *testing.T) {
	a := PoemHash("Poema 20", "Pablo Neruda")
	assert.Len(t, a, 64)
	assert.Equal(t, a, PoemHash("  poema 20", "PABLO NERUDA "))
	assert.NotEqual(t, a, PoemHash("Poema 20", "Gabriela Mistral"))
	assert.NotEqual(t, PoemHash("ab", "c"), PoemHash("a", "bc"))
}

func TestNewCreatePoemParams(t *testing.T) {
	p := NewCreatePoemParams("Canción", "Autor", "ñandú\nsí", "https://x")
	assert.Equal(t, int64(8), p.CharCount)
	assert.Equal(t, PoemHash("Canción", "Autor"), p.TextHash)
	assert.Equal(t, "https://x", p.SourceUrl)
}

func TestStore_InsertPoems(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	poems := []CreatePoemParams{
		NewCreatePoemParams("Poema 20", "Pablo Neruda", "Puedo escribir", "u1"),
		NewCreatePoemParams("Rima XXI", "Bécquer", "¿Qué es poesía?", "u2"),
		NewCreatePoemParams("poema 20", "pablo neruda", "duplicado", "u3"),
	}

	n, err := store.InsertPoems(ctx, poems)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = store.InsertPoems(ctx, poems[:1])
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = store.InsertPoems(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	count, err := store.CountPoems(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	exists, err := store.PoemExists(ctx, "POEMA 20", "Pablo Neruda")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.PoemExists(ctx, "Otro", "Pablo Neruda")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_PostedLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetRandomUnpostedPoem(ctx)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	_, err = store.GetRandomPoem(ctx)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	last, err := store.GetLastPostedAt(ctx)
	require.NoError(t, err)
	assert.False(t, last.Valid)

	_, err = store.InsertPoems(ctx, []CreatePoemParams{
		NewCreatePoemParams("Uno", "A", "verso uno", "u1"),
		NewCreatePoemParams("Dos", "B", "verso dos", "u2"),
	})
	require.NoError(t, err)

	poem, err := store.GetRandomUnpostedPoem(ctx)
	require.NoError(t, err)
	assert.False(t, poem.PostedAt.Valid)
	assert.False(t, poem.ScrapedAt.IsZero())

	postedAt := time.Date(2026, 3, 21, 9, 30, 0, 0, time.UTC)
	err = store.MarkPoemPosted(ctx, MarkPoemPostedParams{ID: poem.ID, PostedAt: postedAt})
	require.NoError(t, err)

	got, err := store.GetPoem(ctx, poem.ID)
	require.NoError(t, err)
	require.True(t, got.PostedAt.Valid)
	assert.True(t, postedAt.Equal(got.PostedAt.Time))

	unposted, err := store.CountUnpostedPoems(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unposted)

	posted, err := store.CountPostedPoems(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), posted)

	last, err = store.GetLastPostedAt(ctx)
	require.NoError(t, err)
	require.True(t, last.Valid)
	assert.True(t, postedAt.Equal(last.Time))

	next, err := store.GetRandomUnpostedPoem(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, poem.ID, next.ID)

	deleted, err := store.DeleteUnpostedPoems(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	total, err := store.CountPoems(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	remaining, err := store.GetRandomPoem(ctx)
	require.NoError(t, err)
	assert.Equal(t, poem.ID, remaining.ID)
}

func TestStore_Posts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.InsertPoems(ctx, []CreatePoemParams{NewCreatePoemParams("Uno", "A", "verso", "u1")})
	require.NoError(t, err)
	poem, err := store.GetRandomPoem(ctx)
	require.NoError(t, err)

	yesterday := time.Date(2026, 5, 1, 23, 0, 0, 0, time.UTC)
	today := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)

	first, err := store.CreatePost(ctx, CreatePostParams{
		PoemID:   poem.ID,
		Platform: "mastodon",
		PostText: "\"Uno\"\n\nverso",
		PostedAt: yesterday,
	})
	require.NoError(t, err)
	assert.False(t, first.PlatformPostID.Valid)
	assert.True(t, yesterday.Equal(first.PostedAt))

	second, err := store.CreatePost(ctx, CreatePostParams{
		PoemID:         poem.ID,
		Platform:       "mastodon",
		PlatformPostID: sql.NullString{String: "42", Valid: true},
		PostUrl:        sql.NullString{String: "https://col.social/@bot/42", Valid: true},
		PostText:       "\"Uno\"\n\nverso\n...",
		Truncated:      true,
		PostedAt:       today,
	})
	require.NoError(t, err)
	assert.True(t, second.Truncated)
	assert.Equal(t, "42", second.PlatformPostID.String)

	midnight := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	count, err := store.CountPostsSince(ctx, midnight)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	recent, err := store.ListRecentPosts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, second.ID, recent[0].ID)
	assert.Equal(t, "Uno", recent[0].Title)
	assert.Equal(t, "A", recent[0].Author)
	assert.Equal(t, "https://col.social/@bot/42", recent[0].PostUrl.String)

	recent, err = store.ListRecentPosts(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestStore_ScrapeRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetLastScrapeRun(ctx)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	started := time.Date(2026, 1, 10, 3, 30, 0, 0, time.UTC)
	run, err := store.CreateScrapeRun(ctx, CreateScrapeRunParams{SourceUrl: "https://site/listado", StartedAt: started})
	require.NoError(t, err)
	assert.Equal(t, ScrapeRunRunning, run.Status)
	assert.False(t, run.CompletedAt.Valid)

	err = store.CompleteScrapeRun(ctx, CompleteScrapeRunParams{
		ID:          run.ID,
		Candidates:  10,
		Fetched:     9,
		Misses:      1,
		FetchErrors: 1,
		Saved:       7,
		CompletedAt: started.Add(time.Minute),
	})
	require.NoError(t, err)

	failed, err := store.CreateScrapeRun(ctx, CreateScrapeRunParams{SourceUrl: "https://site/listado", StartedAt: started.Add(time.Hour)})
	require.NoError(t, err)
	err = store.FailScrapeRun(ctx, FailScrapeRunParams{ID: failed.ID, ErrorMessage: "no poem links", CompletedAt: started.Add(time.Hour)})
	require.NoError(t, err)

	last, err := store.GetLastScrapeRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, failed.ID, last.ID)
	assert.Equal(t, ScrapeRunFailed, last.Status)
	assert.Equal(t, "no poem links", last.ErrorMessage.String)

	done, err := store.GetScrapeRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, ScrapeRunCompleted, done.Status)
	assert.Equal(t, int64(7), done.Saved)
	assert.True(t, done.CompletedAt.Valid)
}

func TestQueries_ErrorPaths(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	q := New(sqlDB)
	ctx := context.Background()
	boom := errors.New("disk I/O error")

	t.Run("count", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM poems WHERE posted_at IS NULL").WillReturnError(boom)
		_, err := q.CountUnpostedPoems(ctx)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("delete", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM poems WHERE posted_at IS NULL").WillReturnError(boom)
		_, err := q.DeleteUnpostedPoems(ctx)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("mark posted formats timestamp", func(t *testing.T) {
		at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
		mock.ExpectExec("UPDATE poems SET posted_at").
			WithArgs("2026-02-03 04:05:06", int64(9)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		err := q.MarkPoemPosted(ctx, MarkPoemPostedParams{ID: 9, PostedAt: at})
		assert.NoError(t, err)
	})

	t.Run("list rows error", func(t *testing.T) {
		mock.ExpectQuery("FROM posts p").WillReturnError(boom)
		_, err := q.ListRecentPosts(ctx, 5)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("create post insert error", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO posts").WillReturnError(boom)
		_, err := q.CreatePost(ctx, CreatePostParams{PoemID: 1, Platform: "mastodon", PostedAt: time.Now()})
		assert.ErrorIs(t, err, boom)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_InsertPoemsRollback(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	store := &Store{DB: sqlDB, Queries: New(sqlDB)}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT OR IGNORE INTO poems").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT OR IGNORE INTO poems").WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	_, err = store.InsertPoems(context.Background(), []CreatePoemParams{
		NewCreatePoemParams("Uno", "A", "x", "u1"),
		NewCreatePoemParams("Dos", "B", "y", "u2"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Dos")
	assert.NoError(t, mock.ExpectationsWereMet())
}

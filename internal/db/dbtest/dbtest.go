// Package dbtest provides a migrated throwaway store for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/abdulachik/sonetobot/internal/db"
	"github.com/stretchr/testify/require"
)

// NewTestStore returns a migrated store in a temp dir, closed on cleanup.
func NewTestStore(t *testing.T) *db.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	ctx := context.Background()
	store, err := db.NewStore(ctx, dbPath)
	require.NoError(t, err)

	_, err = store.Migrate(ctx)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// SeedPoem stores one poem and returns it.
func SeedPoem(t *testing.T, store *db.Store, title, author, body string) db.Poem {
	t.Helper()
	ctx := context.Background()

	params := db.NewCreatePoemParams(title, author, body, "https://example.com/"+title)
	_, err := store.InsertPoems(ctx, []db.CreatePoemParams{params})
	require.NoError(t, err)

	var id int64
	err = store.QueryRowContext(ctx, "SELECT id FROM poems WHERE text_hash = ?", params.TextHash).Scan(&id)
	require.NoError(t, err)

	poem, err := store.GetPoem(ctx, id)
	require.NoError(t, err)
	return poem
}

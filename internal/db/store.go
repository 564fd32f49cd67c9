package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"
)

// PoemHash identifies a poem by its title and author, case-insensitively.
func PoemHash(title, author string) string {
	key := strings.ToLower(strings.TrimSpace(title)) + "\x00" + strings.ToLower(strings.TrimSpace(author))
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// NewCreatePoemParams fills in the derived columns of a poem row.
func NewCreatePoemParams(title, author, body, sourceURL string) CreatePoemParams {
	return CreatePoemParams{
		Title:     title,
		Author:    author,
		Body:      body,
		SourceUrl: sourceURL,
		TextHash:  PoemHash(title, author),
		CharCount: int64(utf8.RuneCountInString(body)),
	}
}

// InsertPoems stores poems in a single transaction, silently skipping ones
// already present, and returns how many rows were added.
func (s *Store) InsertPoems(ctx context.Context, poems []CreatePoemParams) (int64, error) {
	if len(poems) == 0 {
		return 0, nil
	}

	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := s.Queries.WithTx(tx)

	var inserted int64
	for _, p := range poems {
		n, err := q.CreatePoem(ctx, p)
		if err != nil {
			return 0, fmt.Errorf("insert poem %q: %w", p.Title, err)
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit poems: %w", err)
	}
	return inserted, nil
}

// PoemExists reports whether a poem with this title and author is stored.
func (s *Store) PoemExists(ctx context.Context, title, author string) (bool, error) {
	exists, err := s.PoemExistsByHash(ctx, PoemHash(title, author))
	if err != nil {
		return false, fmt.Errorf("check poem: %w", err)
	}
	return exists, nil
}

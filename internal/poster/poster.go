package poster

import (
	"context"
	"errors"
)

var (
	// ErrUnauthorized means the platform rejected the access token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRejected means the platform refused the status itself, e.g. for
	// being over its length limit.
	ErrRejected = errors.New("status rejected")
)

// PostContent represents the content to be posted.
type PostContent struct {
	Text   string
	PoemID int64
	Title  string
	Author string
}

// PostResult represents the result of a post.
type PostResult struct {
	PostID  string
	PostURL string
}

// Poster is the interface for posting to social media platforms.
type Poster interface {
	// Platform returns the name of the platform.
	Platform() string

	// Post publishes content to the platform.
	Post(ctx context.Context, content PostContent) (*PostResult, error)

	// ValidateCredentials checks if the credentials are valid.
	ValidateCredentials(ctx context.Context) error
}

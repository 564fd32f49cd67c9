package poster

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// DryRunPoster logs statuses instead of publishing them.
type DryRunPoster struct {
	seq atomic.Int64
}

// NewDryRunPoster creates a poster that never touches the network.
func NewDryRunPoster() *DryRunPoster {
	return &DryRunPoster{}
}

// Platform returns the platform name.
func (d *DryRunPoster) Platform() string {
	return "dry-run"
}

// ValidateCredentials always succeeds.
func (d *DryRunPoster) ValidateCredentials(ctx context.Context) error {
	return nil
}

// Post logs the status and returns a synthetic ID.
func (d *DryRunPoster) Post(ctx context.Context, content PostContent) (*PostResult, error) {
	id := fmt.Sprintf("dry-run-%d-%d", time.Now().Unix(), d.seq.Add(1))

	slog.Info("dry run, not posting",
		"id", id,
		"poem_id", content.PoemID,
		"chars", len([]rune(content.Text)),
	)
	slog.Debug("dry run status", "text", content.Text)

	return &PostResult{PostID: id}, nil
}

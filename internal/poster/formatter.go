package poster

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/abdulachik/sonetobot/internal/extractor"
)

const (
	// MastodonMaxLength is the default status limit of a Mastodon instance.
	MastodonMaxLength = 500

	// TruncationMarker is appended to an excerpt that was cut short.
	TruncationMarker = "\n..."
)

var (
	// ErrBudgetExceeded means the header and footer leave no room for the poem.
	ErrBudgetExceeded = errors.New("post budget exceeded")

	// ErrEmptyBody is returned when there is no poem text to compose.
	ErrEmptyBody = errors.New("poem body is empty")
)

var markerLen = utf8.RuneCountInString(TruncationMarker)

// BudgetError reports how the character budget of a post was spent.
type BudgetError struct {
	MaxTotal   int
	Header     int
	Footer     int
	BodyBudget int
	// Total is set when the composed post itself went over MaxTotal.
	Total int
}

func (e *BudgetError) Error() string {
	if e.Total > 0 {
		return fmt.Sprintf("composed post is %d chars, limit %d", e.Total, e.MaxTotal)
	}
	return fmt.Sprintf("header (%d) and footer (%d) leave %d of %d chars for the poem",
		e.Header, e.Footer, e.BodyBudget, e.MaxTotal)
}

func (e *BudgetError) Unwrap() error { return ErrBudgetExceeded }

// Reflow fits a poem body into maxChars runes. Whole lines are kept while
// they fit; the excerpt then ends with TruncationMarker. Only when the very
// first line is too long is a line cut, preferring a clause or word boundary.
// The result never exceeds maxChars; a budget no larger than the marker
// yields "" unless the body already fits.
func Reflow(body string, maxChars int) string {
	body = extractor.NormalizeBreaks(body)
	if utf8.RuneCountInString(body) <= maxChars {
		return body
	}
	if maxChars <= markerLen {
		return ""
	}

	budget := maxChars - markerLen

	var kept []string
	used := 0
	for _, line := range strings.Split(body, "\n") {
		cost := utf8.RuneCountInString(line)
		if len(kept) > 0 {
			cost++ // joining newline
		}
		if used+cost > budget {
			break
		}
		kept = append(kept, line)
		used += cost
	}

	for len(kept) > 0 && strings.TrimSpace(kept[len(kept)-1]) == "" {
		kept = kept[:len(kept)-1]
	}
	if len(kept) > 0 {
		return strings.Join(kept, "\n") + TruncationMarker
	}

	return cutLine(body, budget) + TruncationMarker
}

// cutLine shortens s to at most budget runes. A clause mark in the last 30%
// of the budget wins, then a space in the last half, else a hard cut.
func cutLine(s string, budget int) string {
	runes := []rune(s)
	if len(runes) <= budget {
		return strings.TrimRightFunc(s, unicode.IsSpace)
	}
	runes = runes[:budget]

	for i := len(runes) - 1; i >= budget*7/10; i-- {
		if strings.ContainsRune(".,;:!?", runes[i]) {
			return string(runes[:i+1])
		}
	}
	for i := len(runes) - 1; i >= budget/2; i-- {
		if unicode.IsSpace(runes[i]) {
			if cut := strings.TrimRightFunc(string(runes[:i]), unicode.IsSpace); cut != "" {
				return cut
			}
		}
	}
	return string(runes)
}

// Composer assembles a status from a poem:
//
//	"Title"
//
//	excerpt
//
//	— Author
//
//	#Hashtags
type Composer struct {
	Hashtags []string
}

// NewComposer creates a composer with the given hashtags. Blank tags are
// skipped.
func NewComposer(hashtags []string) *Composer {
	tags := make([]string, 0, len(hashtags))
	for _, tag := range hashtags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return &Composer{Hashtags: tags}
}

// Header returns the title block.
func (c *Composer) Header(title string) string {
	return fmt.Sprintf("\"%s\"\n\n", title)
}

// Footer returns the author line followed by the hashtag block, if any.
func (c *Composer) Footer(author string) string {
	footer := "\n\n— " + author
	if tags := strings.Join(c.Hashtags, " "); tags != "" {
		footer += "\n\n" + tags
	}
	return footer
}

// Composed is a finished status.
type Composed struct {
	Text string
	// Truncated is set when the poem was cut to fit and TruncationMarker
	// closes the excerpt.
	Truncated bool
}

// Compose builds a post of at most maxTotal runes. The poem is reflowed into
// whatever the header and footer leave; a *BudgetError is returned when that
// is not enough for even the truncation marker.
func (c *Composer) Compose(title, author, body string, maxTotal int) (Composed, error) {
	body = extractor.NormalizeBreaks(body)
	if body == "" {
		return Composed{}, ErrEmptyBody
	}

	header := c.Header(title)
	footer := c.Footer(author)
	headerLen := utf8.RuneCountInString(header)
	footerLen := utf8.RuneCountInString(footer)
	bodyBudget := maxTotal - headerLen - footerLen

	if bodyBudget <= markerLen {
		return Composed{}, &BudgetError{
			MaxTotal:   maxTotal,
			Header:     headerLen,
			Footer:     footerLen,
			BodyBudget: bodyBudget,
		}
	}

	excerpt := Reflow(body, bodyBudget)
	post := header + excerpt + footer
	if total := utf8.RuneCountInString(post); total > maxTotal {
		return Composed{}, &BudgetError{
			MaxTotal:   maxTotal,
			Header:     headerLen,
			Footer:     footerLen,
			BodyBudget: bodyBudget,
			Total:      total,
		}
	}
	return Composed{Text: post, Truncated: excerpt != body}, nil
}

// FitsInLimit checks if the formatted post fits within the limit.
func FitsInLimit(formatted string, limit int) bool {
	return utf8.RuneCountInString(formatted) <= limit
}

// IsTruncated reports whether a Reflow excerpt ends with the truncation
// marker. It does not apply to a composed post, whose footer comes last; use
// Composed.Truncated for that.
func IsTruncated(text string) bool {
	return strings.HasSuffix(text, TruncationMarker)
}

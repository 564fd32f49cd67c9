package extractor

import (
	"html"
	"strings"
)

// CleanField cleans a short HTML-bearing field such as a title or an author
// name. Tags are stripped, entities decoded and every whitespace run,
// newlines included, becomes one space.
func CleanField(raw string) string {
	return collapseSpaces(html.UnescapeString(stripPolicy.Sanitize(raw)))
}

// defaultAttributionPrefixes are line prefixes the source site uses for
// credits appended after a poem.
var defaultAttributionPrefixes = []string{
	"de:",
	"fuente:",
	"source:",
	"tomado de",
	"proporcionado por",
	"aportado por",
	"enviado por",
	"cortesía de",
	"/",
}

// AttributionRules decides which trailing lines of a poem body are credits
// rather than verse.
type AttributionRules struct {
	Prefixes []string
}

// DefaultAttributionRules returns the built-in prefix set.
func DefaultAttributionRules() AttributionRules {
	prefixes := make([]string, len(defaultAttributionPrefixes))
	copy(prefixes, defaultAttributionPrefixes)
	return AttributionRules{Prefixes: prefixes}
}

// WithPrefixes returns a copy of r extended with extra prefixes.
// Blank entries are ignored.
func (r AttributionRules) WithPrefixes(extra ...string) AttributionRules {
	prefixes := make([]string, 0, len(r.Prefixes)+len(extra))
	prefixes = append(prefixes, r.Prefixes...)
	for _, p := range extra {
		if p = strings.TrimSpace(p); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	return AttributionRules{Prefixes: prefixes}
}

// Strip removes trailing attribution and blank lines, scanning from the end
// and stopping at the first line that is neither. The returned slice shares
// the backing array of lines.
func (r AttributionRules) Strip(lines []string) []string {
	end := len(lines)
	for end > 0 {
		line := lines[end-1]
		if r.isAttribution(line) {
			end--
			continue
		}
		if strings.TrimSpace(line) == "" {
			end--
			continue
		}
		break
	}
	return lines[:end]
}

// StripBody applies Strip to a newline-delimited body.
func (r AttributionRules) StripBody(body string) string {
	lines := r.Strip(strings.Split(body, "\n"))
	return NormalizeBreaks(strings.Join(lines, "\n"))
}

func (r AttributionRules) isAttribution(line string) bool {
	line = strings.ToLower(strings.TrimSpace(line))
	if line == "" {
		return false
	}
	for _, prefix := range r.Prefixes {
		if strings.HasPrefix(line, strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

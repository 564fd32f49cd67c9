package extractor

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// ErrNoPoemBody is returned when a detail page has no element matching the
// body selector, or the matched element holds no text.
var ErrNoPoemBody = errors.New("no poem body found")

var (
	// <br>, <br/>, <br /> plus the source newline that usually follows it.
	lineBreakRe = regexp.MustCompile(`(?i)<br\s*/?>[ \t]*(?:\r?\n)?`)

	// A block closing tag followed by the next block opening tag is a stanza gap.
	blockBreakRe = regexp.MustCompile(`(?i)</(?:p|div|blockquote)\s*>\s*<(?:p|div|blockquote)(?:\s[^>]*)?>`)

	manyNewlinesRe = regexp.MustCompile(`\n{3,}`)

	// stripPolicy removes every tag and drops script/style contents.
	stripPolicy = bluemonday.StrictPolicy()
)

// Poem is a poem recovered from a detail page, ready to be stored.
type Poem struct {
	Title     string
	Author    string
	Body      string
	SourceURL string
}

// ExtractBody isolates the first element in doc matching selector and
// converts its inner HTML to plain text with line and stanza breaks kept.
func ExtractBody(doc, selector string) (string, error) {
	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}

	sel := d.Find(selector).First()
	if sel.Length() == 0 {
		return "", ErrNoPoemBody
	}

	inner, err := sel.Html()
	if err != nil {
		return "", fmt.Errorf("render body element: %w", err)
	}

	text := HTMLToText(inner)
	if text == "" {
		return "", ErrNoPoemBody
	}
	return text, nil
}

// HTMLToText converts a poem's HTML fragment to plain text. Line-break tags
// become "\n" and paragraph boundaries become "\n\n". Break tags are
// rewritten before any other tag is stripped.
func HTMLToText(fragment string) string {
	s := strings.ReplaceAll(fragment, "\r\n", "\n")

	s = lineBreakRe.ReplaceAllString(s, "\n")
	s = blockBreakRe.ReplaceAllString(s, "\n\n")
	s = stripPolicy.Sanitize(s)
	s = html.UnescapeString(s)

	return NormalizeBreaks(s)
}

// NormalizeBreaks collapses whitespace inside each line, caps blank-line
// runs at one (stanza break) and trims blank lines at both ends.
// NormalizeBreaks(NormalizeBreaks(s)) == NormalizeBreaks(s).
func NormalizeBreaks(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = collapseSpaces(line)
	}

	s = strings.Join(lines, "\n")
	s = manyNewlinesRe.ReplaceAllString(s, "\n\n")
	return strings.Trim(s, "\n")
}

// collapseSpaces folds any run of Unicode whitespace (NBSP included) into a
// single space and trims the ends.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

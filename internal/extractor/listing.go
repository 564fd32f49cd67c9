package extractor

import (
	"errors"
	"fmt"
	"iter"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// ErrEmptyDiscovery means the listing page had no links to poem detail
// pages at all. It usually signals that the site's markup has changed.
var ErrEmptyDiscovery = errors.New("no poem links found on listing page")

// ListingEntry is a poem link found on a listing page.
type ListingEntry struct {
	DetailURL string
	Title     string
	Author    string
}

// ListingRules describe how poem links look on the listing page.
type ListingRules struct {
	// DetailMarker is a substring every detail-page href contains.
	DetailMarker string
	// AuthorClass is the class of the anchor naming the author, placed
	// after the poem link under the same parent.
	AuthorClass string
	// AuthorParam is the detail URL query parameter carrying the author
	// when no author anchor is present.
	AuthorParam string
	// MoreGlyphs mark navigational links ("►", "»") that are not poems.
	MoreGlyphs []string
	// BaseURL resolves relative hrefs. Optional.
	BaseURL string
}

// DefaultListingRules returns rules matching the default source site.
func DefaultListingRules() ListingRules {
	return ListingRules{
		DetailMarker: "ver_texto",
		AuthorClass:  "autor",
		AuthorParam:  "autor",
		MoreGlyphs:   []string{"►", "»", "más..."},
	}
}

// Discovery is the outcome of scanning one listing page.
type Discovery struct {
	Entries []ListingEntry
	// Anchors counts detail-page links seen, kept or not.
	Anchors int
	// Dropped counts detail-page links rejected as navigation or for
	// lacking an author.
	Dropped int
}

// Discoverer finds poem links on listing pages.
type Discoverer struct {
	rules ListingRules
	base  *url.URL
}

// NewDiscoverer creates a discoverer for the given rules.
func NewDiscoverer(rules ListingRules) (*Discoverer, error) {
	if rules.DetailMarker == "" {
		return nil, errors.New("listing rules: detail marker is required")
	}

	d := &Discoverer{rules: rules}
	if rules.BaseURL != "" {
		base, err := url.Parse(rules.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base URL: %w", err)
		}
		d.base = base
	}
	return d, nil
}

// Discover parses a listing page and collects its poem links.
// ErrEmptyDiscovery is returned when the page has no detail links at all;
// a page whose links were all rejected returns an empty Discovery instead.
func (d *Discoverer) Discover(page string) (*Discovery, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	result := &Discovery{}
	d.scan(doc, func(entry ListingEntry, ok bool) bool {
		result.Anchors++
		if !ok {
			result.Dropped++
			return true
		}
		result.Entries = append(result.Entries, entry)
		return true
	})

	if result.Anchors == 0 {
		return result, ErrEmptyDiscovery
	}
	return result, nil
}

// Entries lazily yields the accepted poem links of doc in document order.
func (d *Discoverer) Entries(doc *goquery.Document) iter.Seq[ListingEntry] {
	return func(yield func(ListingEntry) bool) {
		d.scan(doc, func(entry ListingEntry, ok bool) bool {
			if !ok {
				return true
			}
			return yield(entry)
		})
	}
}

// scan visits every detail-page anchor; ok reports whether it produced a
// usable entry. Returning false from visit stops the scan.
func (d *Discoverer) scan(doc *goquery.Document, visit func(entry ListingEntry, ok bool) bool) {
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if !d.isDetailLink(href) {
			return true
		}
		entry, ok := d.entryFor(a, href)
		return visit(entry, ok)
	})
}

func (d *Discoverer) isDetailLink(href string) bool {
	return strings.Contains(href, d.rules.DetailMarker)
}

func (d *Discoverer) entryFor(a *goquery.Selection, href string) (ListingEntry, bool) {
	title := anchorText(a)
	if utf8.RuneCountInString(title) <= 1 || d.isNavigation(title) {
		return ListingEntry{}, false
	}

	detailURL := d.resolve(href)

	author := d.authorFromSibling(a)
	if utf8.RuneCountInString(author) <= 1 {
		author = d.authorFromQuery(detailURL)
	}
	if utf8.RuneCountInString(author) <= 1 {
		return ListingEntry{}, false
	}

	return ListingEntry{
		DetailURL: detailURL,
		Title:     title,
		Author:    author,
	}, true
}

func (d *Discoverer) isNavigation(title string) bool {
	lower := strings.ToLower(title)
	for _, glyph := range d.rules.MoreGlyphs {
		if glyph != "" && strings.Contains(lower, strings.ToLower(glyph)) {
			return true
		}
	}
	return false
}

// authorFromSibling looks at the siblings following the poem link and
// returns the first author anchor, stopping at the next poem link.
func (d *Discoverer) authorFromSibling(a *goquery.Selection) string {
	if d.rules.AuthorClass == "" {
		return ""
	}

	var author string
	a.NextAll().EachWithBreak(func(_ int, sib *goquery.Selection) bool {
		if href, ok := sib.Attr("href"); ok && d.isDetailLink(href) {
			return false
		}
		if sib.HasClass(d.rules.AuthorClass) {
			author = anchorText(sib)
			return false
		}
		return true
	})
	return author
}

// authorFromQuery decodes the author parameter of a detail URL
// ("Pablo+Neruda" -> "Pablo Neruda").
func (d *Discoverer) authorFromQuery(detailURL string) string {
	if d.rules.AuthorParam == "" {
		return ""
	}
	u, err := url.Parse(detailURL)
	if err != nil {
		return ""
	}
	return CleanField(u.Query().Get(d.rules.AuthorParam))
}

func (d *Discoverer) resolve(href string) string {
	href = strings.TrimSpace(href)
	if d.base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return d.base.ResolveReference(ref).String()
}

func anchorText(s *goquery.Selection) string {
	inner, err := s.Html()
	if err != nil {
		return collapseSpaces(s.Text())
	}
	return CleanField(inner)
}

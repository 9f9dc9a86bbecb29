package listing

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Defaults for homegate.ch result pages.
const (
	DefaultResultCountSelector = "span.ResultListHeader_locations_3uuG8"
	DefaultResultCountPattern  = `^(\d+) Treffer`
	DefaultLinkPattern         = `/mieten/\d{5,}`
)

// ErrNoResultCount is returned when a listing page carries no parseable
// result count.
var ErrNoResultCount = errors.New("result count not found")

// Extractor pulls the pieces the pipeline needs out of a listing page.
type Extractor interface {
	// ResultCount returns the total number of results for the search.
	ResultCount(body []byte) (int, error)
	// PropertyLinks returns detail-page links in document order, anchors
	// stripped. Duplicates are kept.
	PropertyLinks(body []byte) ([]string, error)
}

// HTMLExtractor implements Extractor with CSS selectors and regular
// expressions.
type HTMLExtractor struct {
	countSelector string
	countPattern  *regexp.Regexp
	linkPattern   *regexp.Regexp
}

var _ Extractor = (*HTMLExtractor)(nil)

// NewHTMLExtractor compiles the patterns. Empty arguments select the
// homegate defaults. countPattern must capture the number in group 1.
func NewHTMLExtractor(countSelector, countPattern, linkPattern string) (*HTMLExtractor, error) {
	if countSelector == "" {
		countSelector = DefaultResultCountSelector
	}
	if countPattern == "" {
		countPattern = DefaultResultCountPattern
	}
	if linkPattern == "" {
		linkPattern = DefaultLinkPattern
	}

	cp, err := regexp.Compile(countPattern)
	if err != nil {
		return nil, fmt.Errorf("result count pattern: %w", err)
	}
	if cp.NumSubexp() < 1 {
		return nil, fmt.Errorf("result count pattern %q has no capture group", countPattern)
	}
	lp, err := regexp.Compile(linkPattern)
	if err != nil {
		return nil, fmt.Errorf("link pattern: %w", err)
	}

	return &HTMLExtractor{
		countSelector: countSelector,
		countPattern:  cp,
		linkPattern:   lp,
	}, nil
}

func (x *HTMLExtractor) ResultCount(body []byte) (int, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("parse listing page: %w", err)
	}

	sel := doc.Find(x.countSelector).First()
	if sel.Length() == 0 {
		return 0, fmt.Errorf("%w: no element matches %q", ErrNoResultCount, x.countSelector)
	}

	text := strings.TrimSpace(sel.Text())
	m := x.countPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, fmt.Errorf("%w: %q does not match %q", ErrNoResultCount, text, x.countPattern)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNoResultCount, err)
	}
	return n, nil
}

func (x *HTMLExtractor) PropertyLinks(body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !x.linkPattern.MatchString(href) {
			return
		}
		links = append(links, NormalizeLink(href))
	})
	return links, nil
}

// NormalizeLink reduces an href to its dedup key by dropping the in-page
// anchor. Path and query are kept byte for byte so keys match state files
// written before.
func NormalizeLink(href string) string {
	before, _, _ := strings.Cut(strings.TrimSpace(href), "#")
	return before
}

package listing

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
)

// DefaultPageSize is the number of results per listing page.
const DefaultPageSize = 20

// Getter fetches a page body. Any error means "no page" to this package.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// PageURL substitutes {postcode}, {distance} and {page} into template.
func PageURL(template, postcode, distance string, page int) string {
	return strings.NewReplacer(
		"{postcode}", postcode,
		"{distance}", distance,
		"{page}", strconv.Itoa(page),
	).Replace(template)
}

// Enumerator works out which listing pages exist for a postcode/distance
// pair.
type Enumerator struct {
	template  string
	pageSize  int
	fetcher   Getter
	extractor Extractor
	logger    *slog.Logger
}

// NewEnumerator creates an Enumerator. pageSize <= 0 selects DefaultPageSize.
func NewEnumerator(template string, pageSize int, fetcher Getter, extractor Extractor, logger *slog.Logger) *Enumerator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Enumerator{
		template:  template,
		pageSize:  pageSize,
		fetcher:   fetcher,
		extractor: extractor,
		logger:    logger,
	}
}

// CountPages fetches the first result page for the pair and returns
// ceil(results / pageSize). A failed fetch or a missing count yields 0,
// which callers treat as "skip this pair".
func (e *Enumerator) CountPages(ctx context.Context, postcode, distance string) int {
	first := PageURL(e.template, postcode, distance, 1)

	body, err := e.fetcher.Get(ctx, first)
	if err != nil {
		e.logger.Warn("failed to fetch first result page", "url", first, "err", err)
		return 0
	}

	results, err := e.extractor.ResultCount(body)
	if err != nil {
		e.logger.Warn("no result count on first page", "url", first, "err", err)
		return 0
	}
	if results <= 0 {
		return 0
	}
	return (results + e.pageSize - 1) / e.pageSize
}

// EnumeratePages returns the listing URLs for pages 1..pageCount.
func (e *Enumerator) EnumeratePages(postcode, distance string, pageCount int) []string {
	if pageCount <= 0 {
		return nil
	}
	pages := make([]string, 0, pageCount)
	for page := 1; page <= pageCount; page++ {
		pages = append(pages, PageURL(e.template, postcode, distance, page))
	}
	return pages
}

package listing

import (
	"context"
	"log/slog"

	"github.com/FranksOps/rentwatch/pkg/orderedset"
)

// Collector gathers property links from listing pages.
type Collector struct {
	fetcher   Getter
	extractor Extractor
	logger    *slog.Logger
}

// NewCollector creates a Collector.
func NewCollector(fetcher Getter, extractor Extractor, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{fetcher: fetcher, extractor: extractor, logger: logger}
}

// CollectLinks visits pageURLs in order and returns every property link
// found, deduplicated across all pages in first-seen order. Pages that fail
// to fetch or parse are logged and skipped. Collection stops early if ctx
// is done; the caller decides what a partial result means.
func (c *Collector) CollectLinks(ctx context.Context, pageURLs []string) []string {
	links := orderedset.New[string]()

	for _, page := range pageURLs {
		if ctx.Err() != nil {
			break
		}

		c.logger.Info("getting listing page", "url", page)
		body, err := c.fetcher.Get(ctx, page)
		if err != nil {
			c.logger.Warn("skipping listing page", "url", page, "err", err)
			continue
		}

		found, err := c.extractor.PropertyLinks(body)
		if err != nil {
			c.logger.Warn("skipping unparseable listing page", "url", page, "err", err)
			continue
		}

		added := 0
		for _, link := range found {
			if links.Add(link) {
				added++
			}
		}
		c.logger.Debug("collected links", "url", page, "found", len(found), "new", added)
	}

	return links.Values()
}

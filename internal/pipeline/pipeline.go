// Package pipeline runs one full search: enumerate result pages for every
// postcode/distance pair, collect property links, classify each property
// and notify about properties that became possible during the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/rentwatch/internal/classify"
	"github.com/FranksOps/rentwatch/internal/metrics"
	"github.com/FranksOps/rentwatch/internal/notify"
	"github.com/FranksOps/rentwatch/internal/report"
	"github.com/FranksOps/rentwatch/internal/storage"
)

// PageEnumerator computes the listing pages for one postcode/distance pair.
type PageEnumerator interface {
	CountPages(ctx context.Context, postcode, distance string) int
	EnumeratePages(postcode, distance string, pageCount int) []string
}

// LinkCollector gathers unique property links from listing pages.
type LinkCollector interface {
	CollectLinks(ctx context.Context, pageURLs []string) []string
}

// PropertyClassifier classifies one property link against st.
type PropertyClassifier interface {
	Classify(ctx context.Context, link string, st *classify.State) classify.Verdict
}

// Pipeline wires the stages of a run together.
type Pipeline struct {
	SearchName string
	Postcodes  []string
	Distances  []string
	// DryRun classifies as usual but neither notifies nor persists.
	DryRun bool

	Enumerator PageEnumerator
	Collector  LinkCollector
	Classifier PropertyClassifier
	Store      storage.Backend
	// Notifier is optional. Without one new matches are only logged.
	Notifier notify.Notifier
	Metrics  *metrics.Recorder
	Logger   *slog.Logger
}

func (p *Pipeline) validate() error {
	switch {
	case p.Enumerator == nil:
		return errors.New("pipeline: enumerator is nil")
	case p.Collector == nil:
		return errors.New("pipeline: collector is nil")
	case p.Classifier == nil:
		return errors.New("pipeline: classifier is nil")
	case p.Store == nil:
		return errors.New("pipeline: store is nil")
	}
	return nil
}

// Run executes one search. State load failures abort the run before any
// request is made. A cancelled context stops the run and leaves the
// persisted state as it was. Notification failures are logged only.
func (p *Pipeline) Run(ctx context.Context) (*report.Summary, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	sum := &report.Summary{
		RunID:      uuid.NewString(),
		SearchName: p.SearchName,
		StartTime:  start,
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("run_id", sum.RunID)
	if p.SearchName != "" {
		logger = logger.With("search", p.SearchName)
	}

	st, err := p.loadState(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	snapshot := st.Possible.Clone()
	logger.Info("state loaded", "possible", st.Possible.Len(), "rejected", st.Rejected.Len())

	finish := func() {
		sum.EndTime = time.Now()
		sum.Duration = sum.EndTime.Sub(start)
		sum.TotalPossible = st.Possible.Len()
		sum.TotalRejected = st.Rejected.Len()
	}

	var pages []string
	for _, postcode := range p.Postcodes {
		for _, distance := range p.Distances {
			if err := ctx.Err(); err != nil {
				finish()
				return sum, fmt.Errorf("run cancelled: %w", err)
			}
			sum.Pairs++
			logger.Info("searching", "postcode", postcode, "distance", distance)
			n := p.Enumerator.CountPages(ctx, postcode, distance)
			if n == 0 {
				logger.Info("no result pages", "postcode", postcode, "distance", distance)
				continue
			}
			pages = append(pages, p.Enumerator.EnumeratePages(postcode, distance, n)...)
		}
	}
	sum.Pages = len(pages)

	links := p.Collector.CollectLinks(ctx, pages)
	sum.Links = len(links)
	logger.Info("collected property links", "pages", len(pages), "links", len(links))

	terms := make(map[string]string)
	for _, link := range links {
		if ctx.Err() != nil {
			break
		}
		v := p.Classifier.Classify(ctx, link, st)
		switch v.Outcome {
		case classify.Possible:
			sum.Possible++
			terms[v.Address] = v.Term
		case classify.Rejected:
			sum.Rejected++
		default:
			sum.Skipped++
		}
	}
	if err := ctx.Err(); err != nil {
		finish()
		logger.Warn("run cancelled, state not persisted", "err", err)
		return sum, fmt.Errorf("run cancelled: %w", err)
	}

	added := st.Possible.Difference(snapshot).Sorted()
	sum.NewMatches = len(added)
	if len(added) > 0 {
		n := report.Notification{
			SearchName:  p.SearchName,
			RunID:       sum.RunID,
			GeneratedAt: time.Now(),
			Previous:    st.Possible.Intersect(snapshot).Sorted(),
		}
		for _, addr := range added {
			n.New = append(n.New, report.Match{Address: addr, Term: terms[addr]})
			logger.Info("new match", "url", addr, "term", terms[addr])
		}
		sum.Notified = p.notify(ctx, logger, n)
	}

	if p.DryRun {
		logger.Info("dry run, state not persisted")
	} else {
		if err := p.saveState(ctx, st); err != nil {
			finish()
			return sum, fmt.Errorf("save state: %w", err)
		}
		sum.Persisted = true
	}

	finish()
	p.Metrics.RecordRun(sum.NewMatches, sum.TotalPossible, sum.TotalRejected, sum.Duration, sum.EndTime)
	logger.Info("run finished",
		"pairs", sum.Pairs,
		"pages", sum.Pages,
		"links", sum.Links,
		"possible", sum.Possible,
		"rejected", sum.Rejected,
		"skipped", sum.Skipped,
		"new_matches", sum.NewMatches,
		"duration", sum.Duration,
	)
	return sum, nil
}

func (p *Pipeline) loadState(ctx context.Context) (*classify.State, error) {
	var possible, rejected []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		possible, err = p.Store.Load(gctx, storage.Possible)
		if err != nil {
			return fmt.Errorf("%s: %w", storage.Possible, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		rejected, err = p.Store.Load(gctx, storage.Rejected)
		if err != nil {
			return fmt.Errorf("%s: %w", storage.Rejected, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return classify.NewState(possible, rejected), nil
}

func (p *Pipeline) saveState(ctx context.Context, st *classify.State) error {
	if err := p.Store.Save(ctx, storage.Possible, st.Possible.Sorted()); err != nil {
		return fmt.Errorf("%s: %w", storage.Possible, err)
	}
	if err := p.Store.Save(ctx, storage.Rejected, st.Rejected.Sorted()); err != nil {
		return fmt.Errorf("%s: %w", storage.Rejected, err)
	}
	return nil
}

// notify reports whether the message was delivered.
func (p *Pipeline) notify(ctx context.Context, logger *slog.Logger, n report.Notification) bool {
	if p.DryRun {
		logger.Info("dry run, notification not sent", "subject", report.Subject(n))
		return false
	}
	if p.Notifier == nil {
		return false
	}

	msg, err := renderMessage(n)
	if err != nil {
		logger.Error("failed to render notification", "err", err)
		return false
	}
	if err := p.Notifier.Notify(ctx, msg); err != nil {
		logger.Error("failed to send notification", "err", err)
		return false
	}
	return true
}

func renderMessage(n report.Notification) (notify.Message, error) {
	var text, html strings.Builder
	if err := report.WriteNotificationText(&text, n); err != nil {
		return notify.Message{}, err
	}
	if err := report.WriteNotificationHTML(&html, n); err != nil {
		return notify.Message{}, err
	}
	return notify.Message{
		Subject: report.Subject(n),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/purell"

	"github.com/FranksOps/rentwatch/internal/analyzer"
	"github.com/FranksOps/rentwatch/internal/metrics"
)

// DefaultHostPrefix is prepended to relative property links.
const DefaultHostPrefix = "https://www.homegate.ch"

// Outcome is the result of classifying one property link.
type Outcome string

const (
	Possible Outcome = "possible"
	Rejected Outcome = "rejected"
	Skipped  Outcome = "skipped"
)

// Policy decides whether addresses already in the possible set are
// fetched again.
type Policy string

const (
	// PolicyRecheck re-fetches and re-tests possible addresses every run.
	PolicyRecheck Policy = "recheck"
	// PolicySkip treats possible addresses like rejected ones: never
	// fetched again.
	PolicySkip Policy = "skip"
)

// ParsePolicy validates a policy name. The empty string selects
// PolicyRecheck.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyRecheck:
		return PolicyRecheck, nil
	case PolicySkip:
		return PolicySkip, nil
	default:
		return "", fmt.Errorf("unknown possible policy %q (want recheck or skip)", s)
	}
}

// Getter fetches a detail page body.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Verdict describes what happened to one property link.
type Verdict struct {
	Outcome Outcome
	Address string
	// Term is the search term that matched, set for Possible.
	Term string
	// Err is the fetch error behind a Skipped verdict, if any.
	Err error
}

// Config configures a Classifier.
type Config struct {
	HostPrefix string
	Terms      []string
	Policy     Policy
	Metrics    *metrics.Recorder
}

// Classifier assigns property links to the possible or rejected set.
type Classifier struct {
	fetcher    Getter
	hostPrefix string
	matcher    *analyzer.Matcher
	policy     Policy
	metrics    *metrics.Recorder
	logger     *slog.Logger
}

// NewClassifier creates a Classifier.
func NewClassifier(cfg Config, fetcher Getter, logger *slog.Logger) *Classifier {
	if cfg.HostPrefix == "" {
		cfg.HostPrefix = DefaultHostPrefix
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyRecheck
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		fetcher:    fetcher,
		hostPrefix: CanonicalHostPrefix(cfg.HostPrefix),
		matcher:    analyzer.NewMatcher(cfg.Terms),
		policy:     cfg.Policy,
		metrics:    cfg.Metrics,
		logger:     logger,
	}
}

// CanonicalHostPrefix lowercases the scheme and host of prefix and drops a
// default port and trailing slash, so equivalent spellings of the same host
// produce the same addresses.
func CanonicalHostPrefix(prefix string) string {
	const flags = purell.FlagLowercaseScheme | purell.FlagLowercaseHost |
		purell.FlagRemoveDefaultPort | purell.FlagRemoveTrailingSlash
	if canonical, err := purell.NormalizeURLString(prefix, flags); err == nil {
		prefix = canonical
	}
	return strings.TrimRight(prefix, "/")
}

// Address turns a property link into the absolute address that is
// classified and persisted. Links that are already absolute pass through.
func Address(hostPrefix, link string) string {
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	if !strings.HasPrefix(link, "/") {
		link = "/" + link
	}
	return strings.TrimRight(hostPrefix, "/") + link
}

// Classify fetches the detail page for link and records the outcome in st.
// Rejected addresses are never fetched again. A fetch failure leaves st
// untouched so the link is retried next run.
func (c *Classifier) Classify(ctx context.Context, link string, st *State) Verdict {
	addr := Address(c.hostPrefix, link)
	v := c.classify(ctx, addr, st)
	c.metrics.RecordClassification(string(v.Outcome))
	return v
}

func (c *Classifier) classify(ctx context.Context, addr string, st *State) Verdict {
	if st.Rejected.Has(addr) {
		c.logger.Info("skipping rejected property", "url", addr)
		return Verdict{Outcome: Skipped, Address: addr}
	}
	if c.policy == PolicySkip && st.Possible.Has(addr) {
		c.logger.Info("skipping known possible property", "url", addr)
		return Verdict{Outcome: Skipped, Address: addr}
	}

	c.logger.Info("getting property page", "url", addr)
	body, err := c.fetcher.Get(ctx, addr)
	if err != nil {
		c.logger.Warn("failed to fetch property page", "url", addr, "err", err)
		return Verdict{Outcome: Skipped, Address: addr, Err: err}
	}

	if term, ok := c.matcher.FirstMatch(string(body)); ok {
		st.MarkPossible(addr)
		c.logger.Info("property matches", "url", addr, "term", term)
		return Verdict{Outcome: Possible, Address: addr, Term: term}
	}

	st.MarkRejected(addr)
	c.logger.Debug("property rejected", "url", addr)
	return Verdict{Outcome: Rejected, Address: addr}
}

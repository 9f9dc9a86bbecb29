package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/FranksOps/rentwatch/internal/bypass"
	"github.com/FranksOps/rentwatch/internal/fingerprint"
	"github.com/FranksOps/rentwatch/internal/metrics"
	"github.com/FranksOps/rentwatch/pkg/httpclient"
	"github.com/FranksOps/rentwatch/pkg/ratelimit"
	"github.com/FranksOps/rentwatch/pkg/useragent"
)

var (
	// ErrStatus is returned by Get for non-2xx responses.
	ErrStatus = errors.New("unexpected status")
	// ErrChallenged is returned by Get when the response is a bot-protection
	// challenge rather than the requested page.
	ErrChallenged = errors.New("bot challenge")
	// ErrDisallowed is returned by Get when robots.txt forbids the URL.
	ErrDisallowed = errors.New("disallowed by robots.txt")
)

// FetchConfig configures the Fetcher.
type FetchConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	MaxBodyBytes int64
	UAPool       *useragent.Pool
	Fingerprint  fingerprint.Profile
	// InsecureSkipVerify is for tests against self-signed servers.
	InsecureSkipVerify bool
	Limiter            *ratelimit.Limiter
	// RespectRobots consults the host's robots.txt before each Get.
	RespectRobots bool
	// Signatures overrides bypass.DefaultSignatures when non-nil.
	Signatures []bypass.Signature
	Metrics    *metrics.Recorder
}

// Fetcher retrieves listing and detail pages. Every call is blocking and
// bounded by the configured timeout.
type Fetcher struct {
	config  FetchConfig
	client  *httpclient.Client
	auditor *RobotsTxtAuditor
	logger  *slog.Logger
}

// NewFetcher initializes a new Fetcher with the given configuration.
// A single client is held across requests so the cookie jar (if configured)
// persists for the lifetime of the Fetcher.
func NewFetcher(cfg FetchConfig, logger *slog.Logger) (*Fetcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if cfg.Signatures == nil {
		cfg.Signatures = bypass.DefaultSignatures()
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, fingerprint.Options{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		MaxBodyBytes: cfg.MaxBodyBytes,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	f := &Fetcher{
		config: cfg,
		client: client,
		logger: logger,
	}
	if cfg.RespectRobots {
		f.auditor = NewRobotsTxtAuditor(f, logger)
	}
	return f, nil
}

// Fetch performs a rate-limited GET and returns the response whatever its
// status. Only transport failures and unreadable bodies (too large,
// undecodable) produce an error.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (*httpclient.Response, error) {
	if err := f.config.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	resp, err := f.client.Get(ctx, targetURL, f.config.UAPool.Apply)
	domain := hostname(targetURL)
	if err != nil {
		f.config.Metrics.RecordFetch(domain, 0, time.Since(start), 0)
		return nil, err
	}
	f.config.Metrics.RecordFetch(domain, resp.StatusCode, resp.Duration, len(resp.Body))
	return resp, nil
}

// Get returns the UTF-8 body of targetURL. Anything other than a genuine
// 2xx page (transport error, bad status, bot challenge, robots.txt
// exclusion) is reported as an error so callers can skip the unit of work.
func (f *Fetcher) Get(ctx context.Context, targetURL string) ([]byte, error) {
	if f.auditor != nil {
		allowed, err := f.auditor.IsAllowed(ctx, targetURL, f.config.UAPool.Next())
		if err != nil {
			f.logger.Warn("error checking robots.txt", "url", targetURL, "err", err)
		} else if !allowed {
			return nil, fmt.Errorf("%s: %w", targetURL, ErrDisallowed)
		}
	}

	resp, err := f.Fetch(ctx, targetURL)
	if err != nil {
		return nil, err
	}

	if src, ok := bypass.Detect(resp, f.config.Signatures); ok {
		f.config.Metrics.RecordChallenge(src)
		return nil, fmt.Errorf("%s: %w (%s)", targetURL, ErrChallenged, src)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s: %w %d", targetURL, ErrStatus, resp.StatusCode)
	}
	return resp.Body, nil
}

func hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

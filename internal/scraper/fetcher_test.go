package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FranksOps/rentwatch/internal/fingerprint"
	"github.com/FranksOps/rentwatch/internal/metrics"
	"github.com/FranksOps/rentwatch/pkg/httpclient"
	"github.com/FranksOps/rentwatch/pkg/useragent"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestFetcher(t *testing.T, cfg FetchConfig) *Fetcher {
	t.Helper()
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	cfg.Fingerprint = fingerprint.ProfileGo
	f, err := NewFetcher(cfg, nil)
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}
	return f
}

func TestFetcher_Get(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "TestBrowser/1.0" {
			t.Errorf("expected User-Agent TestBrowser/1.0, got %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html>3 Zimmer, Balkon</html>"))
	}))
	defer ts.Close()

	rec := metrics.New()
	fetcher := newTestFetcher(t, FetchConfig{
		UAPool:  useragent.NewPool([]string{"TestBrowser/1.0"}),
		Metrics: rec,
	})

	body, err := fetcher.Get(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "<html>3 Zimmer, Balkon</html>" {
		t.Errorf("unexpected body %q", body)
	}

	got, err := testutil.GatherAndCount(rec.Gatherer(), "rentwatch_fetch_requests_total")
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got != 1 {
		t.Errorf("expected one fetch series, got %d", got)
	}
}

func TestFetcher_GetBadStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	fetcher := newTestFetcher(t, FetchConfig{})

	_, err := fetcher.Get(context.Background(), ts.URL)
	if !errors.Is(err, ErrStatus) {
		t.Fatalf("expected ErrStatus, got %v", err)
	}

	// Fetch itself does not judge the status.
	resp, err := fetcher.Fetch(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestFetcher_GetChallenged(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "cloudflare")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("cf-browser-verification"))
	}))
	defer ts.Close()

	rec := metrics.New()
	fetcher := newTestFetcher(t, FetchConfig{Metrics: rec})

	_, err := fetcher.Get(context.Background(), ts.URL)
	if !errors.Is(err, ErrChallenged) {
		t.Fatalf("expected ErrChallenged, got %v", err)
	}
	got, err := testutil.GatherAndCount(rec.Gatherer(), "rentwatch_bot_challenges_total")
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got != 1 {
		t.Errorf("expected challenge to be recorded, got %d series", got)
	}
}

func TestFetcher_GetOversizedPage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html>" + strings.Repeat("x", 200) + " Balkon</html>"))
	}))
	defer ts.Close()

	fetcher := newTestFetcher(t, FetchConfig{MaxBodyBytes: 100})

	body, err := fetcher.Get(context.Background(), ts.URL)
	if !errors.Is(err, httpclient.ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}
	if body != nil {
		t.Errorf("expected no partial body, got %d bytes", len(body))
	}
}

func TestFetcher_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	fetcher := newTestFetcher(t, FetchConfig{Timeout: 10 * time.Millisecond})

	if _, err := fetcher.Get(context.Background(), ts.URL); err == nil {
		t.Fatal("expected timeout to surface as an error")
	}
}

func TestFetcher_RobotsDisallow(t *testing.T) {
	var detailHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
	})
	mux.HandleFunc("/private/1", func(w http.ResponseWriter, r *http.Request) {
		detailHits.Add(1)
	})
	mux.HandleFunc("/mieten/1234567", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	fetcher := newTestFetcher(t, FetchConfig{RespectRobots: true})
	ctx := context.Background()

	if _, err := fetcher.Get(ctx, ts.URL+"/private/1"); !errors.Is(err, ErrDisallowed) {
		t.Fatalf("expected ErrDisallowed, got %v", err)
	}
	if detailHits.Load() != 0 {
		t.Errorf("disallowed page must not be requested")
	}
	if _, err := fetcher.Get(ctx, ts.URL+"/mieten/1234567"); err != nil {
		t.Errorf("expected allowed page to be fetched, got %v", err)
	}
}

func TestFetcher_CancelledContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	fetcher := newTestFetcher(t, FetchConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := fetcher.Get(ctx, ts.URL); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

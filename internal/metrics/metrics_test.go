package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder_Counters(t *testing.T) {
	r := New()

	r.RecordFetch("www.homegate.ch", 200, time.Second, 11)
	r.RecordFetch("www.homegate.ch", 0, time.Second, 0)
	r.RecordChallenge("Cloudflare")
	r.RecordClassification("possible")
	r.RecordClassification("possible")
	r.RecordClassification("rejected")

	if got := testutil.ToFloat64(r.fetchesTotal.WithLabelValues("www.homegate.ch", "200")); got != 1 {
		t.Errorf("expected 1 successful fetch, got %v", got)
	}
	if got := testutil.ToFloat64(r.fetchesTotal.WithLabelValues("www.homegate.ch", "error")); got != 1 {
		t.Errorf("expected 1 failed fetch, got %v", got)
	}
	if got := testutil.ToFloat64(r.fetchBytesTotal.WithLabelValues("www.homegate.ch")); got != 11 {
		t.Errorf("expected 11 bytes, got %v", got)
	}
	if got := testutil.ToFloat64(r.classificationTotal.WithLabelValues("possible")); got != 2 {
		t.Errorf("expected 2 possible classifications, got %v", got)
	}
	if got := testutil.ToFloat64(r.challengesTotal.WithLabelValues("Cloudflare")); got != 1 {
		t.Errorf("expected 1 challenge, got %v", got)
	}
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := New()
	r.RecordFetch("example.com", 200, 500*time.Millisecond, 5)
	r.RecordRun(2, 7, 30, 3*time.Second, time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "rentwatch.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read textfile: %v", err)
	}
	output := string(data)

	for _, want := range []string{
		`rentwatch_fetch_requests_total{domain="example.com",status="200"} 1`,
		"rentwatch_fetch_duration_seconds_bucket",
		"rentwatch_new_matches 2",
		`rentwatch_known_properties{set="rejected"} 30`,
		"rentwatch_last_run_timestamp_seconds 1.7e+09",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in textfile output:\n%s", want, output)
		}
	}
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	r.RecordFetch("x", 200, 0, 0)
	r.RecordChallenge("x")
	r.RecordClassification("x")
	r.RecordRun(0, 0, 0, 0, time.Now())
	if err := r.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Errorf("nil recorder should not fail: %v", err)
	}
}

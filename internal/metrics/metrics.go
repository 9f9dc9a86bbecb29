package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder collects the metrics of one run. A nil *Recorder discards
// everything, so components can take one optionally.
type Recorder struct {
	reg *prometheus.Registry

	fetchesTotal        *prometheus.CounterVec
	fetchDuration       *prometheus.HistogramVec
	fetchBytesTotal     *prometheus.CounterVec
	challengesTotal     *prometheus.CounterVec
	classificationTotal *prometheus.CounterVec
	newMatches          prometheus.Gauge
	knownProperties     *prometheus.GaugeVec
	runDuration         prometheus.Gauge
	lastRunTimestamp    prometheus.Gauge
}

// New creates a Recorder backed by its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Recorder{
		reg: reg,
		fetchesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rentwatch_fetch_requests_total",
			Help: "Total number of page fetches executed",
		}, []string{"domain", "status"}),
		fetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rentwatch_fetch_duration_seconds",
			Help:    "Duration of page fetches in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"domain"}),
		fetchBytesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rentwatch_fetch_bytes_total",
			Help: "Total bytes downloaded across all fetches",
		}, []string{"domain"}),
		challengesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rentwatch_bot_challenges_total",
			Help: "Responses identified as bot-protection challenges",
		}, []string{"source"}),
		classificationTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rentwatch_classifications_total",
			Help: "Property classifications by outcome",
		}, []string{"outcome"}),
		newMatches: f.NewGauge(prometheus.GaugeOpts{
			Name: "rentwatch_new_matches",
			Help: "Properties newly classified as possible in the last run",
		}),
		knownProperties: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rentwatch_known_properties",
			Help: "Size of each persisted classification set after the last run",
		}, []string{"set"}),
		runDuration: f.NewGauge(prometheus.GaugeOpts{
			Name: "rentwatch_run_duration_seconds",
			Help: "Wall-clock duration of the last run",
		}),
		lastRunTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Name: "rentwatch_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}
}

// RecordFetch records one completed HTTP exchange. status is the HTTP status
// code, or 0 when the request failed before a response arrived.
func (r *Recorder) RecordFetch(domain string, status int, d time.Duration, bytes int) {
	if r == nil {
		return
	}
	statusStr := strconv.Itoa(status)
	if status == 0 {
		statusStr = "error"
	}
	r.fetchesTotal.WithLabelValues(domain, statusStr).Inc()
	r.fetchDuration.WithLabelValues(domain).Observe(d.Seconds())
	r.fetchBytesTotal.WithLabelValues(domain).Add(float64(bytes))
}

// RecordChallenge counts a detected bot-protection response.
func (r *Recorder) RecordChallenge(source string) {
	if r == nil {
		return
	}
	r.challengesTotal.WithLabelValues(source).Inc()
}

// RecordClassification counts one classifier verdict.
func (r *Recorder) RecordClassification(outcome string) {
	if r == nil {
		return
	}
	r.classificationTotal.WithLabelValues(outcome).Inc()
}

// RecordRun stores the end-of-run gauges.
func (r *Recorder) RecordRun(newMatches, possible, rejected int, d time.Duration, finished time.Time) {
	if r == nil {
		return
	}
	r.newMatches.Set(float64(newMatches))
	r.knownProperties.WithLabelValues("possible").Set(float64(possible))
	r.knownProperties.WithLabelValues("rejected").Set(float64(rejected))
	r.runDuration.Set(d.Seconds())
	r.lastRunTimestamp.Set(float64(finished.Unix()))
}

// Gatherer exposes the underlying registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.reg
}

// WriteTextfile writes all metrics in the text exposition format for the
// node_exporter textfile collector. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

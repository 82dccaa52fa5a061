// Package metrics exposes Prometheus collectors for the engine.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	postingsFetched   *prometheus.CounterVec
	adapterFailures   *prometheus.CounterVec
	leadsUpserted     *prometheus.CounterVec
	postingsDropped   *prometheus.CounterVec
	statusTransitions *prometheus.CounterVec
	runDuration       *prometheus.HistogramVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		postingsFetched = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "leadhunt_postings_fetched_total",
			Help: "Raw postings returned by source adapters.",
		}, []string{"source"})

		adapterFailures = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "leadhunt_adapter_failures_total",
			Help: "Source adapter runs that failed or timed out.",
		}, []string{"source"})

		leadsUpserted = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "leadhunt_leads_upserted_total",
			Help: "Pipeline upserts, labeled by result (created or merged).",
		}, []string{"result"})

		postingsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "leadhunt_postings_dropped_total",
			Help: "Postings that could not be normalized or stored.",
		}, []string{"source"})

		statusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "leadhunt_status_transitions_total",
			Help: "Applied lead status transitions.",
		}, []string{"from", "to"})

		runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leadhunt_ingest_run_duration_seconds",
			Help:    "Duration of ingestion runs.",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"outcome"})

		httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "leadhunt_http_requests_total",
			Help: "HTTP requests, labeled by method and code.",
		}, []string{"method", "code"})

		httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leadhunt_http_request_duration_seconds",
			Help:    "HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 1, 5},
		}, []string{"method", "route"})
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

func ObservePostings(source string, n int) {
	Init()
	postingsFetched.WithLabelValues(source).Add(float64(n))
}

func ObserveAdapterFailure(source string) {
	Init()
	adapterFailures.WithLabelValues(source).Inc()
}

func ObserveUpsert(created bool) {
	Init()
	result := "merged"
	if created {
		result = "created"
	}
	leadsUpserted.WithLabelValues(result).Inc()
}

func ObserveDropped(source string) {
	Init()
	postingsDropped.WithLabelValues(source).Inc()
}

func ObserveTransition(from, to string) {
	Init()
	statusTransitions.WithLabelValues(from, to).Inc()
}

func ObserveRun(outcome string, d time.Duration) {
	Init()
	runDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func ObserveHTTPRequest(method, route string, code int, d time.Duration) {
	Init()
	httpRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

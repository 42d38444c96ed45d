// Package metrics exposes prometheus instrumentation for the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the engine's prometheus collectors on one registry so
// the server can expose them and tests can use isolated instances.
type Metrics struct {
	Registry        *prometheus.Registry
	DecksIngested   *prometheus.CounterVec
	PagesProcessed  prometheus.Counter
	PageFailures    *prometheus.CounterVec
	CacheLookups    *prometheus.CounterVec
	SessionDuration prometheus.Histogram
}

// New builds and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		DecksIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deckray_decks_ingested_total",
			Help: "Deck ingestion sessions by outcome.",
		}, []string{"outcome"}),
		PagesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deckray_pages_processed_total",
			Help: "Slides successfully captured and recovered.",
		}),
		PageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deckray_page_failures_total",
			Help: "Per-page failures by kind.",
		}, []string{"kind"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deckray_cache_lookups_total",
			Help: "Fingerprint cache lookups by result.",
		}, []string{"result"}),
		SessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "deckray_session_duration_seconds",
			Help:    "Wall time of ingestion sessions.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
	m.Registry.MustRegister(m.DecksIngested, m.PagesProcessed, m.PageFailures, m.CacheLookups, m.SessionDuration)
	return m
}

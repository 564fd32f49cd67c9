// Package metrics holds the Prometheus counters exported on /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	PagesFetched = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sonetobot_pages_fetched_total",
		Help: "Total number of source pages successfully fetched",
	})
	BytesFetched = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sonetobot_bytes_fetched_total",
		Help: "Total bytes downloaded from the source site",
	})
	PageFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sonetobot_page_failures_total",
		Help: "Source page fetches that failed, by reason",
	}, []string{"reason"})
	ExtractionMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sonetobot_extraction_misses_total",
		Help: "Detail pages fetched without a recoverable poem body",
	})
	PoemsSaved = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sonetobot_poems_saved_total",
		Help: "New poems stored after a scrape",
	})
	PostsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sonetobot_posts_published_total",
		Help: "Statuses published, by platform",
	}, []string{"platform"})
	PostFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sonetobot_post_failures_total",
		Help: "Post attempts that failed, by stage",
	}, []string{"stage"})
)

func init() {
	prometheus.MustRegister(
		PagesFetched,
		BytesFetched,
		PageFailures,
		ExtractionMisses,
		PoemsSaved,
		PostsPublished,
		PostFailures,
	)
}

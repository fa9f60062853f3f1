package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesFetchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_messages_fetched_total",
			Help: "Total raw messages fetched from the platform",
		},
		[]string{"channel"},
	)
	ChannelsScrapedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_channels_scraped_total",
			Help: "Per-channel scrape attempts by outcome",
		},
		[]string{"outcome"},
	)
	FloodWaitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_flood_waits_total",
			Help: "Flood-wait signals received, split by within/over ceiling",
		},
		[]string{"class"},
	)
	FetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_fetch_duration_seconds",
			Help:    "Platform history fetch duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)
	ScrapeRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_runs_total",
			Help: "Scrape runs by terminal status",
		},
		[]string{"status"},
	)

	MessagesProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_messages_processed_total",
			Help: "Raw messages processed by terminal outcome",
		},
		[]string{"outcome"},
	)
	JobsPersistedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_jobs_persisted_total",
			Help: "Jobs persisted, split by active flag",
		},
		[]string{"active"},
	)
	ClassifyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_classify_duration_seconds",
			Help:    "Classifier latency in seconds by deciding branch",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"branch"},
	)
	PendingMessages = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_pending_messages",
			Help: "Unprocessed raw messages awaiting the processor",
		},
	)

	AccountHealthTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accounts_health_transitions_total",
			Help: "Account health transitions",
		},
		[]string{"to"},
	)
	ChannelStatusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channels_status_transitions_total",
			Help: "Channel status transitions",
		},
		[]string{"to"},
	)
)

// InitMetrics registers all metrics with the default registry. Safe to call
// once per process.
func InitMetrics() {
	prometheus.MustRegister(
		MessagesFetchedTotal,
		ChannelsScrapedTotal,
		FloodWaitsTotal,
		FetchDuration,
		ScrapeRunsTotal,
		MessagesProcessedTotal,
		JobsPersistedTotal,
		ClassifyDuration,
		PendingMessages,
		AccountHealthTransitions,
		ChannelStatusTransitions,
	)
}

// Package telemetry exposes crawler metrics in Prometheus format.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dhtcrawler"

var (
	Registry = prometheus.NewRegistry()

	SessionsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_running",
			Help:      "Number of crawl sessions currently running.",
		},
	)

	SessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Finished crawl sessions by outcome.",
		},
		[]string{"outcome"},
	)

	AdmissionsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admissions_failed_total",
			Help:      "Crawl sessions that could not be created.",
		},
	)

	PeersDiscovered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "peers_discovered_total",
			Help:      "Unique nodes added to session frontiers.",
		},
	)

	QueriesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_sent_total",
			Help:      "find_node queries handed to the DHT engine.",
		},
	)

	DatagramsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_dropped_total",
			Help:      "Incoming DHT datagrams discarded because the engine queue was full.",
		},
	)

	SnapshotsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Node list snapshots by result.",
		},
		[]string{"result"},
	)

	// SessionNodes records how many nodes each session found. Buckets cover 1 .. ~1M.
	SessionNodes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_nodes",
			Help:      "Nodes discovered per finished session.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 11),
		},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build info (constant 1, labeled by version).",
		},
		[]string{"version"},
	)
)

func init() {
	Registry.MustRegister(
		SessionsRunning,
		SessionsTotal,
		AdmissionsFailed,
		PeersDiscovered,
		QueriesSent,
		DatagramsDropped,
		SnapshotsWritten,
		SessionNodes,
		buildInfo,
		collectors.NewGoCollector(),
	)
}

// MetricsHandler exposes /metrics. Mount it with mux.Handle("/metrics", telemetry.MetricsHandler()).
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// SetBuildInfo should be called once at startup.
func SetBuildInfo(version string) {
	buildInfo.WithLabelValues(version).Set(1)
}

package chainsync

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

// MetricsSubsystem is a subsystem shared by all metrics exposed by this
// package.
const MetricsSubsystem = "chainsync"

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Number of peers under active synchronization.
	TrackedPeers metrics.Gauge
	// Number of in-flight traces.
	ActiveTraces metrics.Gauge
	// Number of unconfirmed shadow token mappings.
	ShadowCount metrics.Gauge
	// The sync watermark: how far back history is covered.
	Watermark metrics.Gauge
	// Number of token mappings promoted to durable storage.
	PromotedTokens metrics.Counter
	// Number of responses dropped for ticket mismatch or staleness.
	DroppedResponses metrics.Counter
	// Number of failed storage batch commits.
	BatchFailures metrics.Counter
}

// PrometheusMetrics returns Metrics built using the Prometheus client
// library.
func PrometheusMetrics(namespace string) *Metrics {
	return &Metrics{
		TrackedPeers: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "tracked_peers",
			Help:      "Number of peers under active synchronization.",
		}, []string{}),
		ActiveTraces: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "active_traces",
			Help:      "Number of in-flight commit chain traces.",
		}, []string{}),
		ShadowCount: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "shadow_count",
			Help:      "Number of unconfirmed shadow token mappings.",
		}, []string{}),
		Watermark: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "watermark",
			Help:      "The sync watermark timestamp.",
		}, []string{}),
		PromotedTokens: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "promoted_tokens",
			Help:      "Number of token mappings promoted to durable storage.",
		}, []string{}),
		DroppedResponses: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "dropped_responses",
			Help:      "Number of responses dropped for ticket mismatch or staleness.",
		}, []string{}),
		BatchFailures: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "batch_failures",
			Help:      "Number of failed storage batch commits.",
		}, []string{}),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		TrackedPeers:     discard.NewGauge(),
		ActiveTraces:     discard.NewGauge(),
		ShadowCount:      discard.NewGauge(),
		Watermark:        discard.NewGauge(),
		PromotedTokens:   discard.NewCounter(),
		DroppedResponses: discard.NewCounter(),
		BatchFailures:    discard.NewCounter(),
	}
}

// Package metrics holds the Prometheus collectors for conversions, indexing
// and live events.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mindmark"

var (
	// conversions counts converter calls.
	// Labels: op (md_to_ast, md_to_nodetree, nodetree_to_md, ...), status (ok, error)
	conversions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "converter",
		Name:      "conversions_total",
		Help:      "Total conversions by operation and status",
	}, []string{"op", "status"})

	// conversionLatency measures conversion time per operation.
	conversionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "converter",
		Name:      "latency_seconds",
		Help:      "Conversion latency in seconds",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"op"})

	// nodesConverted tracks the size of converted documents.
	nodesConverted = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "converter",
		Name:      "document_nodes",
		Help:      "Node count of converted documents",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	})

	// indexOps counts index mutations.
	// Labels: op (upsert, delete), source (api, sync, watcher)
	indexOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "index",
		Name:      "operations_total",
		Help:      "Total index mutations by operation and source",
	}, []string{"op", "source"})

	// syncDuration measures full vault sync passes.
	syncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "index",
		Name:      "sync_duration_seconds",
		Help:      "Vault sync duration in seconds",
		Buckets:   prometheus.DefBuckets,
	})

	// sseClients tracks connected event stream clients.
	sseClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "clients",
		Help:      "Connected SSE clients",
	})

	// eventsPublished counts broadcast events by type.
	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Total SSE events published by type",
	}, []string{"type"})
)

// ObserveConversion records one converter call started at start.
func ObserveConversion(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	conversions.WithLabelValues(op, status).Inc()
	conversionLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// ObserveDocumentNodes records the node count of a converted document.
func ObserveDocumentNodes(n int) {
	nodesConverted.Observe(float64(n))
}

// IndexOp counts an index mutation.
func IndexOp(op, source string) {
	indexOps.WithLabelValues(op, source).Inc()
}

// ObserveSync records a vault sync pass started at start.
func ObserveSync(start time.Time) {
	syncDuration.Observe(time.Since(start).Seconds())
}

// ClientConnected and ClientDisconnected track SSE clients.
func ClientConnected()    { sseClients.Inc() }
func ClientDisconnected() { sseClients.Dec() }

// EventPublished counts a broadcast event.
func EventPublished(eventType string) {
	eventsPublished.WithLabelValues(eventType).Inc()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

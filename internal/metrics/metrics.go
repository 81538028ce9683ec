// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LiveViewers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "livescript",
		Name:      "live_viewers",
		Help:      "Connected live views by variant.",
	}, []string{"variant"})

	StoreNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livescript",
		Name:      "store_notifications_total",
		Help:      "Document change notifications received, by collection.",
	}, []string{"collection"})

	ControlWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livescript",
		Name:      "control_writes_total",
		Help:      "Operator writes by operation.",
	}, []string{"operation"})

	VoiceResolveFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "livescript",
		Name:      "voice_resolve_failures_total",
		Help:      "Voice paths that could not be resolved to a playable URL.",
	})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livescript",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by a rate limiter, by limiter name.",
	}, []string{"limiter"})
)

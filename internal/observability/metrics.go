package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsEmitted counts notification writes by verb and result.
	NotificationsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "press_notifications_emitted_total",
		Help: "Total notifications emitted by verb and result",
	}, []string{"verb", "result"})

	// CountRecomputes counts denormalized counter recomputations by kind and result.
	CountRecomputes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "press_count_recomputes_total",
		Help: "Total post counter recomputations by kind and result",
	}, []string{"kind", "result"})

	// MentionsResolved counts mention tokens by whether they matched a user.
	MentionsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "press_mentions_resolved_total",
		Help: "Total mention tokens seen, by resolution outcome",
	}, []string{"outcome"})

	// TrendingQueryLatency records the latency of trending feed queries.
	TrendingQueryLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "press_trending_query_latency_seconds",
		Help:    "Trending feed query latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// CommentTreeWrites counts nested-set writes by operation and result.
	CommentTreeWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "press_comment_tree_writes_total",
		Help: "Total comment tree writes by operation and result",
	}, []string{"operation", "result"})

	// WebSocketConnections is the gauge of live notification sockets.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "press_websocket_connections",
		Help: "Number of active notification WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped because a client's buffer was full.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "press_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"reason"})
)

// Result labels.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// ResultLabel maps an error to a result label.
func ResultLabel(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

// ObserveSince records elapsed time on a histogram; use with defer.
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// Package metrics defines the Prometheus instruments exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FeedFramesReceived counts raw frames read from the upstream feed.
	FeedFramesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odds_feed_frames_received_total",
		Help: "Raw websocket frames received from the upstream feed.",
	})

	// FeedMessagesProcessed counts logical feed messages by action.
	FeedMessagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odds_feed_messages_processed_total",
		Help: "Logical feed messages processed, labeled by action.",
	}, []string{"action"})

	// FeedDecodeFailures counts frames dropped as undecodable.
	FeedDecodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odds_feed_decode_failures_total",
		Help: "Feed frames dropped because they were not valid JSON.",
	})

	// FeedReconnects counts reconnect cycles against the upstream feed.
	FeedReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odds_feed_reconnects_total",
		Help: "Reconnect attempts made against the upstream feed.",
	})

	// GamesTracked is the number of games currently held in the state store.
	GamesTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "odds_games_tracked",
		Help: "Games currently tracked in the in-memory state store.",
	})

	// ConnectedClients is the number of downstream websocket clients.
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "odds_connected_clients",
		Help: "Downstream websocket clients currently connected.",
	})

	// UpdatesPushed counts per-client pushes sent by the fan-out path.
	UpdatesPushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odds_updates_pushed_total",
		Help: "Update messages pushed to downstream clients.",
	})
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "classpoints_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds by route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)

	PointsAwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classpoints_awards_total",
			Help: "Award ledger entries written, by source",
		},
		[]string{"source"},
	)

	PeerAllocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classpoints_peer_allocations_total",
			Help: "Peer allocation submissions by outcome",
		},
		[]string{"outcome"},
	)

	StreakBonusesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "classpoints_streak_bonuses_total",
			Help: "Weekly streak bonuses granted",
		},
	)

	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "classpoints_websocket_clients",
			Help: "Websocket clients connected to this instance",
		},
	)

	BackupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classpoints_backups_total",
			Help: "Snapshot backups by final status",
		},
		[]string{"status"},
	)
)

// Award sources.
const (
	SourceManual = "manual"
	SourceBadge  = "badge"
	SourceStreak = "streak"
	SourcePeer   = "peer"
)

// Package metrics exposes Chord's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chord_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// Realtime metrics
	WSConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chord_ws_connections_active",
			Help: "Currently open websocket connections",
		},
	)

	UsersOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chord_users_online",
			Help: "Distinct identities with at least one open connection",
		},
	)

	PresenceEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chord_presence_events_total",
			Help: "Presence flips broadcast to clients",
		},
		[]string{"state"}, // "online" or "offline"
	)

	MessagesPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chord_messages_persisted_total",
			Help: "Chat messages accepted and persisted",
		},
	)

	MessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chord_messages_dropped_total",
			Help: "Chat messages dropped before broadcast",
		},
		[]string{"reason"}, // "unauthorized", "invalid", "store"
	)

	BroadcastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chord_broadcasts_total",
			Help: "Room fanouts issued",
		},
	)
)

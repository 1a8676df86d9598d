// Package metrics holds the Prometheus collectors for presence and fan-out.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_active_sessions",
		Help: "Websocket sessions mapped to a user on this instance",
	})

	SessionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_session_events_total",
		Help: "Lifecycle events handled by the presence coordinator",
	}, []string{"event", "outcome"})

	PresenceEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_presence_entries_total",
		Help: "JOIN and LEAVE entries appended to the message log",
	}, []string{"type"})

	StalePresencePruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_presence_stale_pruned_total",
		Help: "Active-set members removed because their TTL key had expired",
	})

	NotificationsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_notifications_published_total",
		Help: "Notifications published on the bus",
	}, []string{"kind"})

	NotificationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_notifications_failed_total",
		Help: "Notifications that could not be published",
	}, []string{"kind"})

	GatewayPushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_gateway_pushes_total",
		Help: "Refresh frames queued to local websocket clients",
	}, []string{"topic"})

	GatewayDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_gateway_dropped_total",
		Help: "Refresh frames dropped because a client buffer was full",
	}, []string{"topic"})
)

// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

// Package metrics holds billcall's Prometheus instrumentation. Metrics are
// registered on the default registry and served at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Realtime subscription

	RealtimeState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "billcall_realtime_state",
			Help: "Socket client state (0=idle, 1=connecting, 2=open, 3=closed)",
		},
	)

	RealtimeConnectAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billcall_realtime_connect_attempts_total",
			Help: "Dial attempts against the bill-request stream",
		},
		[]string{"result"}, // "success", "failure"
	)

	RealtimeReconnectsScheduled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "billcall_realtime_reconnects_scheduled_total",
			Help: "Reconnects scheduled after a non-deliberate closure",
		},
	)

	RealtimeReconnectDelay = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "billcall_realtime_reconnect_delay_seconds",
			Help:    "Backoff delay chosen for scheduled reconnects",
			Buckets: []float64{1, 2, 4, 8, 16, 30},
		},
	)

	RealtimeExhausted = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "billcall_realtime_exhausted",
			Help: "1 when the reconnect attempt cap was reached and a reload is required",
		},
	)

	RealtimeFramesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "billcall_realtime_frames_received_total",
			Help: "Text frames received on the bill-request stream",
		},
	)

	// Event routing

	FramesMalformed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billcall_frames_malformed_total",
			Help: "Frames dropped because they could not be parsed",
		},
		[]string{"reason"}, // "json", "table_number", "validation"
	)

	EventsIgnored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billcall_events_ignored_total",
			Help: "Well-formed events ignored because of their status",
		},
		[]string{"status"},
	)

	// Notifications

	NotificationsAdded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billcall_notifications_added_total",
			Help: "Notifications surfaced to staff",
		},
		[]string{"source"}, // "realtime", "manual"
	)

	NotificationsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "billcall_notifications_suppressed_total",
			Help: "Events dropped by the deduplication window",
		},
	)

	NotificationsRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billcall_notifications_removed_total",
			Help: "Notifications removed from the store",
		},
		[]string{"reason"}, // "expired", "dismissed", "attended", "cleared"
	)

	NotificationsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "billcall_notifications_active",
			Help: "Notifications currently visible",
		},
	)

	DedupEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "billcall_dedup_entries",
			Help: "Keys currently held by the deduplication window",
		},
	)

	// Reconciliation

	ReconcileRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billcall_reconcile_runs_total",
			Help: "Reconciling fetches of the pending-request list",
		},
		[]string{"trigger", "result"},
	)

	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "billcall_reconcile_duration_seconds",
			Help:    "Duration of reconciling fetches including retries",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconcileLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "billcall_reconcile_last_success_timestamp",
			Help: "Unix time of the last successful reconcile",
		},
	)

	PendingRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "billcall_pending_requests",
			Help: "Pending bill requests according to the last reconcile",
		},
	)

	// Backend REST client

	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "billcall_backend_request_duration_seconds",
			Help:    "Latency of calls to the restaurant backend",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	BackendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billcall_backend_requests_total",
			Help: "Calls to the restaurant backend by outcome",
		},
		[]string{"operation", "status"},
	)

	// Dashboard HTTP API

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billcall_http_requests_total",
			Help: "Dashboard API requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "billcall_http_request_duration_seconds",
			Help:    "Dashboard API latency",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"method", "route"},
	)

	// Dashboard push

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "billcall_dashboard_ws_connections",
			Help: "Dashboard WebSocket clients connected",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "billcall_dashboard_ws_messages_sent_total",
			Help: "Messages pushed to dashboard WebSocket clients",
		},
	)

	WSMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "billcall_dashboard_ws_messages_dropped_total",
			Help: "Messages dropped because a client's send buffer was full",
		},
	)

	// In-process bus and alert sinks

	BusPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billcall_bus_published_total",
			Help: "Messages published on the in-process bus",
		},
		[]string{"topic"},
	)

	AlertsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billcall_alerts_sent_total",
			Help: "Alerts forwarded to external sinks",
		},
		[]string{"sink", "result"},
	)

	// Circuit breaker

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "billcall_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billcall_circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "billcall_circuit_breaker_consecutive_failures",
			Help: "Current consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billcall_circuit_breaker_state_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordConnectAttempt counts one dial against the event stream.
func RecordConnectAttempt(err error) {
	if err != nil {
		RealtimeConnectAttempts.WithLabelValues("failure").Inc()
		return
	}
	RealtimeConnectAttempts.WithLabelValues("success").Inc()
}

// RecordReconnectScheduled counts a scheduled reconnect and its delay.
func RecordReconnectScheduled(delay time.Duration) {
	RealtimeReconnectsScheduled.Inc()
	RealtimeReconnectDelay.Observe(delay.Seconds())
}

// SetExhausted flips the terminal "reload required" gauge.
func SetExhausted(exhausted bool) {
	if exhausted {
		RealtimeExhausted.Set(1)
		return
	}
	RealtimeExhausted.Set(0)
}

// RecordReconcile records one reconcile run.
func RecordReconcile(trigger string, duration time.Duration, pending int, err error) {
	ReconcileDuration.Observe(duration.Seconds())
	if err != nil {
		ReconcileRuns.WithLabelValues(trigger, "failure").Inc()
		return
	}
	ReconcileRuns.WithLabelValues(trigger, "success").Inc()
	ReconcileLastSuccess.Set(float64(time.Now().Unix()))
	PendingRequests.Set(float64(pending))
}

// RecordBackendRequest records one REST call. status is the HTTP status
// code, or 0 when no response was received.
func RecordBackendRequest(operation string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	BackendRequestsTotal.WithLabelValues(operation, label).Inc()
	BackendRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHTTPRequest records one dashboard API request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordAlert records the outcome of forwarding an alert to sink.
func RecordAlert(sink string, err error) {
	if err != nil {
		AlertsSent.WithLabelValues(sink, "failure").Inc()
		return
	}
	AlertsSent.WithLabelValues(sink, "success").Inc()
}

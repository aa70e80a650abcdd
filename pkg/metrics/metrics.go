// Package metrics exposes Prometheus instrumentation for the tracking service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Frame outcomes used as the "result" label of FramesProcessed.
const (
	FrameFocused     = "focused"
	FrameUnfocused   = "unfocused"
	FrameMalformed   = "malformed"
	FrameClassifyErr = "classify_error"
	FrameNoSession   = "no_session"
)

var (
	// Session metrics
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "focus_sessions_active",
		Help: "The current number of live tracking sessions.",
	})
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "focus_sessions_started_total",
		Help: "The total number of tracking sessions started.",
	})
	SessionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "focus_sessions_rejected_total",
		Help: "The total number of rejected start/stop requests.",
	}, []string{"reason"})

	// Frame metrics
	FramesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "focus_frames_processed_total",
		Help: "The total number of frames processed, by outcome.",
	}, []string{"result"})
	GazeDirections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "focus_gaze_directions_total",
		Help: "The total number of classified frames, by gaze direction.",
	}, []string{"direction"})
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "focus_state_transitions_total",
		Help: "The total number of smoothed state changes, by new state.",
	}, []string{"state"})

	// Persistence metrics
	Flushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "focus_flushes_total",
		Help: "The total number of flushes, by sink, kind and outcome.",
	}, []string{"sink", "kind", "outcome"})
	FlushDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "focus_flush_duration_seconds",
		Help:    "Time spent writing a record to a sink.",
		Buckets: prometheus.DefBuckets,
	}, []string{"sink"})

	// Transport metrics
	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "focus_ws_connections_active",
		Help: "The current number of open tracking websocket connections.",
	})
	MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "focus_ws_messages_received_total",
		Help: "The total number of websocket messages received, by type.",
	}, []string{"type"})
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "focus_ws_messages_sent_total",
		Help: "The total number of websocket messages sent, by type.",
	}, []string{"type"})
	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "focus_auth_failures_total",
		Help: "The total number of failed websocket authentications.",
	}, []string{"reason"})
)

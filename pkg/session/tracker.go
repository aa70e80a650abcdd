package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-focus/internal/log"
	"github.com/teslashibe/go-focus/pkg/focus"
	"github.com/teslashibe/go-focus/pkg/gaze"
	"github.com/teslashibe/go-focus/pkg/metrics"
	"github.com/teslashibe/go-focus/pkg/persist"
)

// Config configures a Tracker.
type Config struct {
	Focus       focus.Config
	Flush       persist.SchedulerConfig
	SessionKind string

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// DefaultConfig returns the production tracker settings.
func DefaultConfig() Config {
	return Config{
		Focus:       focus.DefaultConfig(),
		Flush:       persist.DefaultSchedulerConfig(),
		SessionKind: persist.DefaultSessionKind,
	}
}

// StartRequest carries the ids supplied when tracking starts.
type StartRequest struct {
	SubjectID    string `json:"user_id"`
	ContentID    string `json:"module_id"`
	SubContentID string `json:"section_id,omitempty"`
}

// StartAck acknowledges a started session.
type StartAck struct {
	SessionID    string    `json:"session_id"`
	SubjectID    string    `json:"user_id"`
	ContentID    string    `json:"module_id"`
	SubContentID string    `json:"section_id,omitempty"`
	StartedAt    time.Time `json:"started_at"`
}

// Update is the per-frame result returned to the transport.
type Update struct {
	Focused   bool           `json:"is_focused"`
	Direction gaze.Direction `json:"gaze_direction"`
	Metrics   focus.Metrics  `json:"metrics"`
	Timestamp time.Time      `json:"timestamp"`

	// Transition is the interval closed by this frame, if any.
	Transition *focus.Interval `json:"-"`
}

// StopAck carries the final totals of a stopped session.
type StopAck struct {
	SessionID string        `json:"session_id"`
	Metrics   focus.Metrics `json:"metrics"`
}

// EventType identifies a lifecycle event.
type EventType string

const (
	EventStarted EventType = "started"
	EventUpdate  EventType = "update"
	EventStopped EventType = "stopped"
)

// Event describes a session change, for observers such as dashboards.
type Event struct {
	Type    EventType
	Session Info
	Update  *Update
	Metrics *focus.Metrics
}

// Tracker runs the tracking operations on behalf of a transport.
type Tracker struct {
	registry   *Registry
	classifier gaze.Classifier
	scheduler  *persist.Scheduler
	clock      func() time.Time
	log        *slog.Logger

	mu      sync.RWMutex
	onEvent func(Event)
}

// NewTracker creates a tracker that classifies frames with classifier and
// flushes metrics to sink.
func NewTracker(classifier gaze.Classifier, sink persist.Sink, cfg Config) *Tracker {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.SessionKind == "" {
		cfg.SessionKind = persist.DefaultSessionKind
	}
	return &Tracker{
		registry:   NewRegistry(cfg.Focus, cfg.SessionKind, cfg.Clock),
		classifier: classifier,
		scheduler:  persist.NewScheduler(sink, cfg.Flush),
		clock:      cfg.Clock,
		log:        log.Component("tracker"),
	}
}

// OnEvent sets the callback invoked after every lifecycle change. The
// callback must not block.
func (t *Tracker) OnEvent(callback func(Event)) {
	t.mu.Lock()
	t.onEvent = callback
	t.mu.Unlock()
}

func (t *Tracker) emit(ev Event) {
	t.mu.RLock()
	cb := t.onEvent
	t.mu.RUnlock()
	if cb != nil {
		cb(ev)
	}
}

// Registry returns the session registry.
func (t *Tracker) Registry() *Registry {
	return t.registry
}

// Start begins tracking for connectionID.
func (t *Tracker) Start(ctx context.Context, connectionID string, req StartRequest) (*StartAck, error) {
	if req.SubjectID == "" || req.ContentID == "" {
		metrics.SessionsRejected.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidRequest
	}

	s, err := t.registry.Create(connectionID, req.SubjectID, req.ContentID, req.SubContentID)
	if err != nil {
		metrics.SessionsRejected.WithLabelValues("duplicate").Inc()
		return nil, err
	}

	metrics.SessionsStarted.Inc()
	metrics.ActiveSessions.Inc()
	t.log.Info("tracking started",
		"connection_id", connectionID,
		"session_id", s.ID,
		"user_id", s.SubjectID,
		"module_id", s.ContentID,
	)
	t.emit(Event{Type: EventStarted, Session: s.Info()})

	return &StartAck{
		SessionID:    s.ID,
		SubjectID:    s.SubjectID,
		ContentID:    s.ContentID,
		SubContentID: s.SubContentID,
		StartedAt:    s.CreatedAt,
	}, nil
}

// Frame classifies one frame for connectionID and advances its state
// machine. Malformed frames are rejected without touching the session;
// classifier failures count as unfocused observations.
func (t *Tracker) Frame(ctx context.Context, connectionID string, frame []byte) (*Update, error) {
	s, err := t.registry.Lookup(connectionID)
	if err != nil {
		metrics.FramesProcessed.WithLabelValues(metrics.FrameNoSession).Inc()
		return nil, err
	}
	if len(frame) == 0 {
		metrics.FramesProcessed.WithLabelValues(metrics.FrameMalformed).Inc()
		return nil, fmt.Errorf("%w: empty frame", gaze.ErrMalformedFrame)
	}

	res, err := t.classifier.Classify(ctx, frame)
	if err != nil {
		if errors.Is(err, gaze.ErrMalformedFrame) {
			metrics.FramesProcessed.WithLabelValues(metrics.FrameMalformed).Inc()
			return nil, err
		}
		metrics.FramesProcessed.WithLabelValues(metrics.FrameClassifyErr).Inc()
		t.log.Debug("classification failed", "connection_id", connectionID, "error", err)
		res = gaze.Unfocused(gaze.Error)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	now := t.clock()
	obs := s.machine.Observe(res.Focused, now)
	update := &Update{
		Focused:    obs.Smoothed,
		Direction:  res.Direction,
		Metrics:    s.machine.Snapshot(now),
		Timestamp:  now,
		Transition: obs.Transition,
	}
	t.scheduler.MaybeFlush(ctx, s, now)
	s.mu.Unlock()

	if obs.Smoothed {
		metrics.FramesProcessed.WithLabelValues(metrics.FrameFocused).Inc()
	} else {
		metrics.FramesProcessed.WithLabelValues(metrics.FrameUnfocused).Inc()
	}
	metrics.GazeDirections.WithLabelValues(string(res.Direction)).Inc()
	if obs.Transition != nil {
		metrics.Transitions.WithLabelValues(obs.State.String()).Inc()
		t.log.Debug("focus state changed",
			"session_id", s.ID,
			"state", obs.State,
			"previous_duration", obs.Transition.Duration,
		)
	}

	t.emit(Event{Type: EventUpdate, Session: s.Info(), Update: update})
	return update, nil
}

// Stop ends tracking for connectionID and returns the final metrics.
func (t *Tracker) Stop(ctx context.Context, connectionID string) (*StopAck, error) {
	s, err := t.registry.Remove(connectionID)
	if err != nil {
		metrics.SessionsRejected.WithLabelValues("not_found").Inc()
		return nil, err
	}
	m := t.teardown(ctx, s)
	return &StopAck{SessionID: s.ID, Metrics: m}, nil
}

// Disconnect tears down any session owned by connectionID. It is a no-op
// when the connection never started tracking.
func (t *Tracker) Disconnect(ctx context.Context, connectionID string) {
	s, err := t.registry.Remove(connectionID)
	if err != nil {
		return
	}
	t.log.Info("connection dropped with active session", "connection_id", connectionID, "session_id", s.ID)
	t.teardown(ctx, s)
}

// teardown closes s and performs its final flush. s must already be
// removed from the registry.
func (t *Tracker) teardown(ctx context.Context, s *Session) focus.Metrics {
	s.mu.Lock()
	now := t.clock()
	s.closed = true
	m := s.machine.Snapshot(now)
	err := t.scheduler.FinalFlush(ctx, s, now)
	s.mu.Unlock()

	metrics.ActiveSessions.Dec()
	attrs := []any{
		"connection_id", s.ConnectionID,
		"session_id", s.ID,
		"focused_s", m.FocusedSeconds(),
		"total_s", m.TotalSeconds(),
		"focus_pct", m.FocusPercentage,
	}
	if err != nil {
		attrs = append(attrs, "flush_error", err)
	}
	t.log.Info("tracking stopped", attrs...)

	t.emit(Event{Type: EventStopped, Session: s.Info(), Metrics: &m})
	return m
}

// Status lists the live sessions.
func (t *Tracker) Status() []Info {
	sessions := t.registry.List()
	out := make([]Info, len(sessions))
	for i, s := range sessions {
		out[i] = s.Info()
	}
	return out
}

// Shutdown tears down every live session.
func (t *Tracker) Shutdown(ctx context.Context) {
	for _, s := range t.registry.List() {
		if _, err := t.registry.Remove(s.ConnectionID); err != nil {
			continue
		}
		t.teardown(ctx, s)
	}
}

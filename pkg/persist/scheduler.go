package persist

import (
	"context"
	"log/slog"
	"time"

	"github.com/teslashibe/go-focus/internal/log"
	"github.com/teslashibe/go-focus/pkg/metrics"
)

// Flush kinds, used as a metrics label.
const (
	KindPeriodic = "periodic"
	KindFinal    = "final"
)

// Source is a session whose metrics can be flushed. Callers hold whatever
// lock protects the source while calling the scheduler.
type Source interface {
	Record(now time.Time) Record
	LastFlush() time.Time
	MarkFlushed(now time.Time)
}

// SchedulerConfig controls flush cadence.
type SchedulerConfig struct {
	Interval time.Duration // Minimum time between periodic flushes
	Timeout  time.Duration // Upper bound for a single sink call
}

// DefaultSchedulerConfig returns a 30s cadence with a 10s sink timeout.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval: 30 * time.Second,
		Timeout:  10 * time.Second,
	}
}

// Scheduler decides when sessions are flushed and performs the writes.
// Sink failures are logged and swallowed: accounting state is never
// touched, and the next flush resends full cumulative totals.
type Scheduler struct {
	sink   Sink
	config SchedulerConfig
	log    *slog.Logger
}

// NewScheduler creates a scheduler writing to sink.
func NewScheduler(sink Sink, cfg SchedulerConfig) *Scheduler {
	if sink == nil {
		sink = Discard{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSchedulerConfig().Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSchedulerConfig().Timeout
	}
	return &Scheduler{
		sink:   sink,
		config: cfg,
		log:    log.Component("scheduler").With("sink", sink.Name()),
	}
}

// Due reports whether a periodic flush is owed at now.
func (s *Scheduler) Due(src Source, now time.Time) bool {
	return now.Sub(src.LastFlush()) >= s.config.Interval
}

// MaybeFlush flushes src if the interval has elapsed since its last
// flush. It reports whether a flush was attempted.
func (s *Scheduler) MaybeFlush(ctx context.Context, src Source, now time.Time) bool {
	if !s.Due(src, now) {
		return false
	}
	s.write(ctx, src.Record(now), KindPeriodic)
	src.MarkFlushed(now)
	return true
}

// FinalFlush unconditionally flushes src. It returns the sink error so
// teardown can report it; callers must not treat it as fatal.
func (s *Scheduler) FinalFlush(ctx context.Context, src Source, now time.Time) error {
	rec := src.Record(now)
	rec.Final = true
	err := s.write(ctx, rec, KindFinal)
	src.MarkFlushed(now)
	return err
}

func (s *Scheduler) write(ctx context.Context, rec Record, kind string) error {
	// Teardown often runs after the request context is gone.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.Timeout)
	defer cancel()

	start := time.Now()
	err := s.sink.Save(ctx, rec)
	metrics.FlushDuration.WithLabelValues(s.sink.Name()).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.Flushes.WithLabelValues(s.sink.Name(), kind, "error").Inc()
		s.log.Error("flush failed",
			"kind", kind,
			"session_id", rec.SessionID,
			"error", err,
		)
		return err
	}

	metrics.Flushes.WithLabelValues(s.sink.Name(), kind, "ok").Inc()
	s.log.Info("flushed tracking data",
		"kind", kind,
		"session_id", rec.SessionID,
		"focused_s", rec.FocusedSeconds,
		"unfocused_s", rec.UnfocusedSeconds,
	)
	return nil
}

package persist

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Sink stores records. Implementations must accept repeated calls with
// cumulative totals for the same session.
type Sink interface {
	Name() string
	Save(ctx context.Context, rec Record) error
}

// ErrSinkClosed is returned by sinks used after Close.
var ErrSinkClosed = errors.New("persist: sink closed")

// SinkError describes a failed write.
type SinkError struct {
	// Sink names the sink that failed.
	Sink string

	// StatusCode is the remote status, when the sink talks HTTP.
	StatusCode int

	// Message is the remote error message, if any.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *SinkError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("persist [%s]: status %d: %s", e.Sink, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("persist [%s]: status %d", e.Sink, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("persist [%s]: %v", e.Sink, e.Err)
	default:
		return fmt.Sprintf("persist [%s]: %s", e.Sink, e.Message)
	}
}

// Unwrap returns the underlying error.
func (e *SinkError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the write may succeed if repeated.
func (e *SinkError) IsRetryable() bool {
	if e.StatusCode != 0 {
		return e.StatusCode == 429 || e.StatusCode >= 500
	}
	return e.Err != nil && !errors.Is(e.Err, context.Canceled)
}

// Multi fans a record out to several sinks.
type Multi struct {
	sinks []Sink
}

// NewMulti combines sinks. Nil entries are skipped.
func NewMulti(sinks ...Sink) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Name implements Sink.
func (m *Multi) Name() string { return "multi" }

// Sinks returns the member sinks.
func (m *Multi) Sinks() []Sink { return m.sinks }

// Save writes rec to every member and joins their errors. A failing
// member does not prevent the others from being attempted.
func (m *Multi) Save(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Save(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every member that implements io.Closer.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", s.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Discard drops every record.
type Discard struct{}

// Name implements Sink.
func (Discard) Name() string { return "discard" }

// Save implements Sink.
func (Discard) Save(context.Context, Record) error { return nil }

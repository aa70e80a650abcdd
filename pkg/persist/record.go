// Package persist writes cumulative session metrics to durable sinks and
// decides when those writes happen.
package persist

import (
	"time"

	"github.com/teslashibe/go-focus/pkg/focus"
)

// DefaultSessionKind tags records produced by the websocket tracker.
const DefaultSessionKind = "websocket_cv_tracking"

// Subject identifies whose attention a record describes.
type Subject struct {
	SessionID    string
	SubjectID    string
	ContentID    string
	SubContentID string
}

// Record is one flush of a session's cumulative totals. Each record
// supersedes the previous one for the same session.
type Record struct {
	SessionID        string    `json:"session_id,omitempty"`
	SubjectID        string    `json:"user_id"`
	ContentID        string    `json:"module_id"`
	SubContentID     string    `json:"section_id,omitempty"`
	FocusedSeconds   float64   `json:"focused_time"`
	UnfocusedSeconds float64   `json:"unfocused_time"`
	TotalSeconds     float64   `json:"total_time"`
	FocusPercentage  float64   `json:"focus_percentage"`
	FocusSessions    int       `json:"focus_sessions"`
	UnfocusSessions  int       `json:"unfocus_sessions"`
	SessionKind      string    `json:"session_type"`
	Timestamp        time.Time `json:"timestamp"`
	Final            bool      `json:"final,omitempty"`
}

// NewRecord builds a record from a metrics snapshot.
func NewRecord(subj Subject, m focus.Metrics, kind string, ts time.Time) Record {
	if kind == "" {
		kind = DefaultSessionKind
	}
	return Record{
		SessionID:        subj.SessionID,
		SubjectID:        subj.SubjectID,
		ContentID:        subj.ContentID,
		SubContentID:     subj.SubContentID,
		FocusedSeconds:   m.FocusedSeconds(),
		UnfocusedSeconds: m.UnfocusedSeconds(),
		TotalSeconds:     m.TotalSeconds(),
		FocusPercentage:  m.FocusPercentage,
		FocusSessions:    m.FocusIntervals,
		UnfocusSessions:  m.UnfocusIntervals,
		SessionKind:      kind,
		Timestamp:        ts,
	}
}

// Package protocol defines the WebSocket messages exchanged between viewer
// clients, the tracking service and dashboards.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/teslashibe/go-focus/pkg/focus"
	"github.com/teslashibe/go-focus/pkg/gaze"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Client → Server messages
	TypeStartTracking MessageType = "start_tracking"
	TypeVideoFrame    MessageType = "video_frame"
	TypeStopTracking  MessageType = "stop_tracking"

	// Server → Client messages
	TypeConnected       MessageType = "connected"
	TypeTrackingStarted MessageType = "tracking_started"
	TypeTrackingUpdate  MessageType = "tracking_update"
	TypeTrackingStopped MessageType = "tracking_stopped"
	TypeError           MessageType = "error"

	// Server → Dashboard messages
	TypeSessionStarted MessageType = "session_started"
	TypeSessionUpdate  MessageType = "session_update"
	TypeSessionEnded   MessageType = "session_ended"

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Client → Server Message Types
// =============================================================================

// StartTrackingData opens a tracking session
type StartTrackingData struct {
	UserID    string `json:"user_id"`
	ModuleID  string `json:"module_id"`
	SectionID string `json:"section_id,omitempty"`
}

// VideoFrameData carries one camera frame
type VideoFrameData struct {
	Frame string `json:"frame"` // base64 JPEG, optionally a data URL
}

// =============================================================================
// Server → Client Message Types
// =============================================================================

// ConnectedData greets a new connection
type ConnectedData struct {
	Message      string `json:"message"`
	ConnectionID string `json:"connection_id"`
}

// TrackingStartedData acknowledges start_tracking
type TrackingStartedData struct {
	UserID    string `json:"user_id"`
	ModuleID  string `json:"module_id"`
	SectionID string `json:"section_id,omitempty"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// TrackingUpdateData is the per-frame result
type TrackingUpdateData struct {
	IsFocused     bool           `json:"is_focused"`
	GazeDirection gaze.Direction `json:"gaze_direction"`
	Metrics       focus.Metrics  `json:"metrics"`
	Timestamp     time.Time      `json:"timestamp"`
}

// TrackingStoppedData carries the final totals
type TrackingStoppedData struct {
	Message string        `json:"message"`
	Metrics focus.Metrics `json:"metrics"`
}

// Error codes sent in ErrorData.Code.
const (
	CodeInvalidMessage = "invalid_message"
	CodeInvalidRequest = "invalid_request"
	CodeDuplicate      = "duplicate_session"
	CodeNoSession      = "no_session"
	CodeUnauthorized   = "unauthorized"
	CodeInternal       = "internal"
)

// ErrorData reports a rejected request
type ErrorData struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// =============================================================================
// Server → Dashboard Message Types
// =============================================================================

// SessionData describes a session for dashboards
type SessionData struct {
	ConnectionID  string          `json:"connection_id"`
	SessionID     string          `json:"session_id"`
	UserID        string          `json:"user_id"`
	ModuleID      string          `json:"module_id"`
	SectionID     string          `json:"section_id,omitempty"`
	IsFocused     *bool           `json:"is_focused,omitempty"`
	GazeDirection gaze.Direction  `json:"gaze_direction,omitempty"`
	Metrics       *focus.Metrics  `json:"metrics,omitempty"`
	Transition    *focus.Interval `json:"transition,omitempty"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PongData contains pong response
type PongData struct {
	PingTS    int64 `json:"ping_ts"`
	PongTS    int64 `json:"pong_ts"`
	LatencyMs int64 `json:"latency_ms"`
}

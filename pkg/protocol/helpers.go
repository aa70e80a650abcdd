package protocol

import (
	"encoding/base64"
	"time"

	"github.com/teslashibe/go-focus/pkg/focus"
	"github.com/teslashibe/go-focus/pkg/gaze"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewStartTrackingMessage creates a start_tracking request
func NewStartTrackingMessage(userID, moduleID, sectionID string) (*Message, error) {
	return NewMessage(TypeStartTracking, StartTrackingData{
		UserID:    userID,
		ModuleID:  moduleID,
		SectionID: sectionID,
	})
}

// NewVideoFrameMessage creates a video_frame message from raw JPEG data
func NewVideoFrameMessage(jpegData []byte) (*Message, error) {
	return NewMessage(TypeVideoFrame, VideoFrameData{
		Frame: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegData),
	})
}

// NewStopTrackingMessage creates a stop_tracking request
func NewStopTrackingMessage() (*Message, error) {
	return NewMessage(TypeStopTracking, nil)
}

// NewConnectedMessage creates the greeting sent on connect
func NewConnectedMessage(connectionID string) (*Message, error) {
	return NewMessage(TypeConnected, ConnectedData{
		Message:      "Connected to eye tracking server",
		ConnectionID: connectionID,
	})
}

// NewTrackingStartedMessage acknowledges a started session
func NewTrackingStartedMessage(userID, moduleID, sectionID, sessionID string) (*Message, error) {
	return NewMessage(TypeTrackingStarted, TrackingStartedData{
		UserID:    userID,
		ModuleID:  moduleID,
		SectionID: sectionID,
		SessionID: sessionID,
		Message:   "Tracking started successfully",
	})
}

// NewTrackingUpdateMessage creates a per-frame update
func NewTrackingUpdateMessage(focused bool, dir gaze.Direction, m focus.Metrics, ts time.Time) (*Message, error) {
	return NewMessage(TypeTrackingUpdate, TrackingUpdateData{
		IsFocused:     focused,
		GazeDirection: dir,
		Metrics:       m,
		Timestamp:     ts,
	})
}

// NewTrackingStoppedMessage reports the final totals
func NewTrackingStoppedMessage(m focus.Metrics) (*Message, error) {
	return NewMessage(TypeTrackingStopped, TrackingStoppedData{
		Message: "Tracking stopped successfully",
		Metrics: m,
	})
}

// NewErrorMessage creates an error event
func NewErrorMessage(code, message string) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Message: message, Code: code})
}

// NewSessionMessage creates a dashboard event
func NewSessionMessage(t MessageType, data SessionData) (*Message, error) {
	return NewMessage(t, data)
}

// NewPingMessage creates a ping message
func NewPingMessage() (*Message, error) {
	return NewMessage(TypePing, nil)
}

// NewPongMessage creates a pong response message
func NewPongMessage(pingTS, pongTS int64) (*Message, error) {
	latency := int64(0)
	if pingTS > 0 {
		latency = pongTS - pingTS
	}
	return NewMessage(TypePong, PongData{
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: latency,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetStartTrackingData extracts a start request from a message
func (m *Message) GetStartTrackingData() (*StartTrackingData, error) {
	var data StartTrackingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetVideoFrameData extracts frame data from a message
func (m *Message) GetVideoFrameData() (*VideoFrameData, error) {
	var data VideoFrameData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Decode returns the raw JPEG bytes of the frame
func (f *VideoFrameData) Decode() ([]byte, error) {
	return gaze.DecodeFrame(f.Frame)
}

// GetConnectedData extracts the greeting from a message
func (m *Message) GetConnectedData() (*ConnectedData, error) {
	var data ConnectedData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetTrackingStartedData extracts a start acknowledgement from a message
func (m *Message) GetTrackingStartedData() (*TrackingStartedData, error) {
	var data TrackingStartedData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetTrackingUpdateData extracts a per-frame update from a message
func (m *Message) GetTrackingUpdateData() (*TrackingUpdateData, error) {
	var data TrackingUpdateData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetTrackingStoppedData extracts the final totals from a message
func (m *Message) GetTrackingStoppedData() (*TrackingStoppedData, error) {
	var data TrackingStoppedData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetErrorData extracts an error event from a message
func (m *Message) GetErrorData() (*ErrorData, error) {
	var data ErrorData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetSessionData extracts a dashboard event from a message
func (m *Message) GetSessionData() (*SessionData, error) {
	var data SessionData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

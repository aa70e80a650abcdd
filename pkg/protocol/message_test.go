package protocol

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/teslashibe/go-focus/pkg/focus"
	"github.com/teslashibe/go-focus/pkg/gaze"
)

func TestNewMessage(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    interface{}
		wantErr bool
	}{
		{
			name:    "start message",
			msgType: TypeStartTracking,
			data:    StartTrackingData{UserID: "u1", ModuleID: "m1"},
		},
		{
			name:    "frame message",
			msgType: TypeVideoFrame,
			data:    VideoFrameData{Frame: "AAAA"},
		},
		{
			name:    "nil data",
			msgType: TypePing,
			data:    nil,
		},
		{
			name:    "unencodable data",
			msgType: TypeError,
			data:    make(chan int),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.msgType, tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if msg.Type != tt.msgType {
				t.Errorf("NewMessage() type = %v, want %v", msg.Type, tt.msgType)
			}
			if msg.Timestamp == 0 {
				t.Error("NewMessage() timestamp should be set")
			}
		})
	}
}

func TestStartTrackingRoundTrip(t *testing.T) {
	msg, err := NewStartTrackingMessage("u1", "m1", "sec-3")
	if err != nil {
		t.Fatalf("NewStartTrackingMessage() error = %v", err)
	}
	data, _ := msg.Bytes()

	parsed, err := ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	if parsed.Type != TypeStartTracking {
		t.Errorf("Type = %v, want %v", parsed.Type, TypeStartTracking)
	}

	start, err := parsed.GetStartTrackingData()
	if err != nil {
		t.Fatalf("GetStartTrackingData() error = %v", err)
	}
	if start.UserID != "u1" || start.ModuleID != "m1" || start.SectionID != "sec-3" {
		t.Errorf("start = %+v", start)
	}
}

func TestVideoFrameDecode(t *testing.T) {
	jpegData := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}

	msg, err := NewVideoFrameMessage(jpegData)
	if err != nil {
		t.Fatalf("NewVideoFrameMessage() error = %v", err)
	}
	frame, err := msg.GetVideoFrameData()
	if err != nil {
		t.Fatalf("GetVideoFrameData() error = %v", err)
	}

	decoded, err := frame.Decode()
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if string(decoded) != string(jpegData) {
		t.Errorf("decoded = %x, want %x", decoded, jpegData)
	}

	bad := VideoFrameData{Frame: "data:image/jpeg;base64,!!!"}
	if _, err := bad.Decode(); !errors.Is(err, gaze.ErrMalformedFrame) {
		t.Errorf("Decode() error = %v, want ErrMalformedFrame", err)
	}
}

func TestTrackingUpdateJSON(t *testing.T) {
	m := focus.Metrics{
		Focused:          22 * time.Second,
		Unfocused:        8 * time.Second,
		Total:            30 * time.Second,
		FocusPercentage:  73.3,
		FocusIntervals:   1,
		UnfocusIntervals: 1,
		State:            focus.Focused,
	}
	msg, err := NewTrackingUpdateMessage(true, gaze.Centered, m, time.Unix(1700000000, 0).UTC())
	if err != nil {
		t.Fatalf("NewTrackingUpdateMessage() error = %v", err)
	}

	var raw struct {
		Type string `json:"type"`
		Data struct {
			IsFocused     bool           `json:"is_focused"`
			GazeDirection string         `json:"gaze_direction"`
			Metrics       map[string]any `json:"metrics"`
			Timestamp     string         `json:"timestamp"`
		} `json:"data"`
	}
	b, _ := msg.Bytes()
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if raw.Type != "tracking_update" {
		t.Errorf("type = %s, want tracking_update", raw.Type)
	}
	if !raw.Data.IsFocused || raw.Data.GazeDirection != "centered" {
		t.Errorf("data = %+v", raw.Data)
	}
	if raw.Data.Metrics["focused_time"] != 22.0 || raw.Data.Metrics["focus_percentage"] != 73.3 {
		t.Errorf("metrics = %v", raw.Data.Metrics)
	}
	if raw.Data.Metrics["current_state"] != "focused" {
		t.Errorf("current_state = %v, want focused", raw.Data.Metrics["current_state"])
	}

	update, err := msg.GetTrackingUpdateData()
	if err != nil {
		t.Fatalf("GetTrackingUpdateData() error = %v", err)
	}
	if update.Metrics.Focused != 22*time.Second || update.Metrics.State != focus.Focused {
		t.Errorf("parsed metrics = %+v", update.Metrics)
	}
}

func TestServerMessages(t *testing.T) {
	connected, _ := NewConnectedMessage("conn-1")
	cd, err := connected.GetConnectedData()
	if err != nil || cd.ConnectionID != "conn-1" || cd.Message == "" {
		t.Errorf("connected = %+v, %v", cd, err)
	}

	started, _ := NewTrackingStartedMessage("u1", "m1", "", "sess-1")
	sd, err := started.GetTrackingStartedData()
	if err != nil || sd.SessionID != "sess-1" || sd.Message != "Tracking started successfully" {
		t.Errorf("started = %+v, %v", sd, err)
	}

	stopped, _ := NewTrackingStoppedMessage(focus.Metrics{Total: 5 * time.Second, Focused: 5 * time.Second, FocusPercentage: 100})
	td, err := stopped.GetTrackingStoppedData()
	if err != nil || td.Metrics.Total != 5*time.Second {
		t.Errorf("stopped = %+v, %v", td, err)
	}

	errMsg, _ := NewErrorMessage(CodeNoSession, "No active session to stop")
	ed, err := errMsg.GetErrorData()
	if err != nil || ed.Code != CodeNoSession || ed.Message != "No active session to stop" {
		t.Errorf("error = %+v, %v", ed, err)
	}
}

func TestSessionMessage(t *testing.T) {
	focused := true
	msg, err := NewSessionMessage(TypeSessionUpdate, SessionData{
		ConnectionID:  "conn-1",
		SessionID:     "sess-1",
		UserID:        "u1",
		ModuleID:      "m1",
		IsFocused:     &focused,
		GazeDirection: gaze.Centered,
	})
	if err != nil {
		t.Fatalf("NewSessionMessage() error = %v", err)
	}
	sd, err := msg.GetSessionData()
	if err != nil {
		t.Fatalf("GetSessionData() error = %v", err)
	}
	if sd.IsFocused == nil || !*sd.IsFocused || sd.Metrics != nil {
		t.Errorf("session data = %+v", sd)
	}
}

func TestPingPongMessage(t *testing.T) {
	ping, err := NewPingMessage()
	if err != nil {
		t.Fatalf("NewPingMessage() error = %v", err)
	}
	if ping.Type != TypePing || ping.Data != nil {
		t.Errorf("ping = %+v", ping)
	}

	pong, _ := NewPongMessage(1000, 1050)
	pd, err := pong.GetPongData()
	if err != nil {
		t.Fatalf("GetPongData() error = %v", err)
	}
	if pd.LatencyMs != 50 {
		t.Errorf("LatencyMs = %d, want 50", pd.LatencyMs)
	}

	pong, _ = NewPongMessage(0, 1050)
	pd, _ = pong.GetPongData()
	if pd.LatencyMs != 0 {
		t.Errorf("LatencyMs without ping ts = %d, want 0", pd.LatencyMs)
	}
}

func TestParseInvalidMessage(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:    "invalid json",
			input:   "not json",
			wantErr: true,
		},
		{
			name:    "missing type",
			input:   "{}",
			wantErr: true,
		},
		{
			name:    "valid message",
			input:   `{"type":"ping","ts":1234567890}`,
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMessage([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessageJSON(t *testing.T) {
	msg, _ := NewStopTrackingMessage()
	bytes, _ := msg.Bytes()

	var parsed map[string]interface{}
	if err := json.Unmarshal(bytes, &parsed); err != nil {
		t.Fatalf("Failed to unmarshal as map: %v", err)
	}

	if parsed["type"] != "stop_tracking" {
		t.Errorf("type = %v, want stop_tracking", parsed["type"])
	}
	if _, ok := parsed["ts"]; !ok {
		t.Error("ts field should be present")
	}
	if _, ok := parsed["data"]; ok {
		t.Error("data field should be omitted when empty")
	}
}

func BenchmarkNewVideoFrameMessage(b *testing.B) {
	jpegData := make([]byte, 100*1024) // 100KB fake JPEG

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		NewVideoFrameMessage(jpegData)
	}
}

func BenchmarkParseMessage(b *testing.B) {
	msg, _ := NewVideoFrameMessage(make([]byte, 100*1024))
	bytes, _ := msg.Bytes()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ParseMessage(bytes)
	}
}

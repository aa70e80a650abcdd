// Package cloud exposes the tracking service over WebSocket and REST.
package cloud

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-focus/internal/log"
	"github.com/teslashibe/go-focus/pkg/gaze"
	"github.com/teslashibe/go-focus/pkg/hub"
	"github.com/teslashibe/go-focus/pkg/metrics"
	"github.com/teslashibe/go-focus/pkg/persist"
	"github.com/teslashibe/go-focus/pkg/protocol"
	"github.com/teslashibe/go-focus/pkg/session"
)

// Version is reported by the health endpoint.
const Version = "3.0.0"

// Config configures the transport.
type Config struct {
	// MaxFrameBytes bounds a single inbound websocket message.
	MaxFrameBytes int64

	// TokenQueryParam names the query parameter carrying the JWT.
	TokenQueryParam string

	// MetricsPath serves Prometheus metrics when non-empty.
	MetricsPath string
}

// DefaultConfig returns the default transport settings.
func DefaultConfig() Config {
	return Config{
		MaxFrameBytes:   4 << 20,
		TokenQueryParam: "token",
		MetricsPath:     "/api/metrics",
	}
}

// Server maps websocket events onto Tracker operations and serves the
// REST API.
type Server struct {
	tracker   *session.Tracker
	store     *persist.SQLiteStore
	dashboard *hub.Hub
	auth      *Validator
	config    Config
	log       *slog.Logger

	mu    sync.RWMutex
	conns map[string]*Connection

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	framesReceived   atomic.Uint64
}

// Option customizes a Server.
type Option func(*Server)

// WithStore enables the save/stats REST endpoints backed by store.
func WithStore(store *persist.SQLiteStore) Option {
	return func(s *Server) { s.store = store }
}

// WithDashboard publishes session events to h.
func WithDashboard(h *hub.Hub) Option {
	return func(s *Server) { s.dashboard = h }
}

// WithAuth requires a valid token on every websocket upgrade.
func WithAuth(v *Validator) Option {
	return func(s *Server) { s.auth = v }
}

// NewServer creates a transport for tracker.
func NewServer(tracker *session.Tracker, cfg Config, opts ...Option) *Server {
	if cfg.TokenQueryParam == "" {
		cfg.TokenQueryParam = DefaultConfig().TokenQueryParam
	}
	s := &Server{
		tracker: tracker,
		config:  cfg,
		log:     log.Component("cloud"),
		conns:   make(map[string]*Connection),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dashboard != nil {
		tracker.OnEvent(s.publish)
	}
	return s
}

// RegisterRoutes registers the websocket routes on a Fiber app
func (s *Server) RegisterRoutes(app *fiber.App) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	if s.auth != nil {
		app.Use("/ws", s.auth.middleware(s.config.TokenQueryParam))
	}

	app.Get("/ws/tracking", websocket.New(s.handleTracking, websocket.Config{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 16 * 1024,
	}))
	if s.dashboard != nil {
		app.Get("/ws/dashboard", hub.Handler(s.dashboard))
	}
}

// handleTracking runs one viewer connection.
func (s *Server) handleTracking(c *websocket.Conn) {
	conn := &Connection{
		ID:        uuid.NewString(),
		Conn:      c,
		Connected: time.Now(),
		LastSeen:  time.Now(),
	}
	if claims, ok := c.Locals(claimsLocal).(*Claims); ok {
		conn.Claims = claims
	}
	if s.config.MaxFrameBytes > 0 {
		c.SetReadLimit(s.config.MaxFrameBytes)
	}

	s.mu.Lock()
	s.conns[conn.ID] = conn
	count := len(s.conns)
	s.mu.Unlock()
	metrics.Connections.Inc()
	s.log.Info("client connected", "connection_id", conn.ID, "connections", count)

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn.ID)
		count := len(s.conns)
		s.mu.Unlock()
		metrics.Connections.Dec()

		s.tracker.Disconnect(context.Background(), conn.ID)
		s.log.Info("client disconnected", "connection_id", conn.ID, "connections", count)
	}()

	if msg, err := protocol.NewConnectedMessage(conn.ID); err == nil {
		s.send(conn, msg)
	}

	// Frames are handled in arrival order, one at a time per connection.
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			s.log.Debug("read loop ended", "connection_id", conn.ID, "error", err)
			return
		}
		conn.touch()
		s.messagesReceived.Add(1)
		s.handleMessage(conn, data)
	}
}

// handleMessage processes one inbound message.
func (s *Server) handleMessage(conn *Connection, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		metrics.MessagesReceived.WithLabelValues("invalid").Inc()
		s.sendError(conn, protocol.CodeInvalidMessage, "Invalid message")
		return
	}
	metrics.MessagesReceived.WithLabelValues(string(msg.Type)).Inc()

	ctx := context.Background()
	switch msg.Type {
	case protocol.TypeStartTracking:
		s.handleStart(ctx, conn, msg)

	case protocol.TypeVideoFrame:
		s.framesReceived.Add(1)
		s.handleFrame(ctx, conn, msg)

	case protocol.TypeStopTracking:
		s.handleStop(ctx, conn)

	case protocol.TypePing:
		if pong, err := protocol.NewPongMessage(msg.Timestamp, time.Now().UnixMilli()); err == nil {
			s.send(conn, pong)
		}

	default:
		s.sendError(conn, protocol.CodeInvalidMessage, "Unknown message type: "+string(msg.Type))
	}
}

func (s *Server) handleStart(ctx context.Context, conn *Connection, msg *protocol.Message) {
	data, err := msg.GetStartTrackingData()
	if err != nil {
		s.sendError(conn, protocol.CodeInvalidMessage, "Invalid start_tracking payload")
		return
	}
	if conn.Claims != nil && conn.Claims.Subject != "" && conn.Claims.Subject != data.UserID {
		metrics.AuthFailures.WithLabelValues("subject_mismatch").Inc()
		s.sendError(conn, protocol.CodeUnauthorized, "Token does not match user_id")
		return
	}

	ack, err := s.tracker.Start(ctx, conn.ID, session.StartRequest{
		SubjectID:    data.UserID,
		ContentID:    data.ModuleID,
		SubContentID: data.SectionID,
	})
	switch {
	case errors.Is(err, session.ErrInvalidRequest):
		s.sendError(conn, protocol.CodeInvalidRequest, "Missing user_id or module_id")
		return
	case errors.Is(err, session.ErrDuplicateSession):
		s.sendError(conn, protocol.CodeDuplicate, "Tracking already active for this connection")
		return
	case err != nil:
		s.log.Error("start tracking failed", "connection_id", conn.ID, "error", err)
		s.sendError(conn, protocol.CodeInternal, "Error starting tracking")
		return
	}

	reply, err := protocol.NewTrackingStartedMessage(ack.SubjectID, ack.ContentID, ack.SubContentID, ack.SessionID)
	if err == nil {
		s.send(conn, reply)
	}
}

// handleFrame never answers with an error event: bad or unowned frames
// are dropped.
func (s *Server) handleFrame(ctx context.Context, conn *Connection, msg *protocol.Message) {
	data, err := msg.GetVideoFrameData()
	if err != nil || data.Frame == "" {
		return
	}
	frame, err := data.Decode()
	if err != nil {
		metrics.FramesProcessed.WithLabelValues(metrics.FrameMalformed).Inc()
		return
	}

	update, err := s.tracker.Frame(ctx, conn.ID, frame)
	if err != nil {
		if !errors.Is(err, session.ErrSessionNotFound) && !errors.Is(err, gaze.ErrMalformedFrame) {
			s.log.Debug("frame dropped", "connection_id", conn.ID, "error", err)
		}
		return
	}

	reply, err := protocol.NewTrackingUpdateMessage(update.Focused, update.Direction, update.Metrics, update.Timestamp)
	if err == nil {
		s.send(conn, reply)
	}
}

func (s *Server) handleStop(ctx context.Context, conn *Connection) {
	ack, err := s.tracker.Stop(ctx, conn.ID)
	if err != nil {
		s.sendError(conn, protocol.CodeNoSession, "No active session to stop")
		return
	}
	reply, err := protocol.NewTrackingStoppedMessage(ack.Metrics)
	if err == nil {
		s.send(conn, reply)
	}
}

func (s *Server) send(conn *Connection, msg *protocol.Message) {
	if err := conn.Send(msg); err != nil {
		s.log.Debug("send failed", "connection_id", conn.ID, "type", msg.Type, "error", err)
		return
	}
	s.messagesSent.Add(1)
}

func (s *Server) sendError(conn *Connection, code, message string) {
	msg, err := protocol.NewErrorMessage(code, message)
	if err != nil {
		return
	}
	s.send(conn, msg)
}

// publish forwards tracker events to the dashboard hub.
func (s *Server) publish(ev session.Event) {
	data := protocol.SessionData{
		ConnectionID: ev.Session.ConnectionID,
		SessionID:    ev.Session.SessionID,
		UserID:       ev.Session.SubjectID,
		ModuleID:     ev.Session.ContentID,
		SectionID:    ev.Session.SubContentID,
	}

	var t protocol.MessageType
	switch ev.Type {
	case session.EventStarted:
		t = protocol.TypeSessionStarted
	case session.EventUpdate:
		t = protocol.TypeSessionUpdate
		focused := ev.Update.Focused
		data.IsFocused = &focused
		data.GazeDirection = ev.Update.Direction
		data.Metrics = &ev.Update.Metrics
		data.Transition = ev.Update.Transition
	case session.EventStopped:
		t = protocol.TypeSessionEnded
		data.Metrics = ev.Metrics
	default:
		return
	}

	msg, err := protocol.NewSessionMessage(t, data)
	if err != nil {
		return
	}
	if err := s.dashboard.BroadcastJSON(data.UserID, msg); err != nil {
		s.log.Warn("dashboard publish failed", "error", err)
	}
}

// ConnectionCount returns the number of open viewer connections
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// Connections returns info about all open viewer connections
func (s *Server) Connections() []ConnectionInfo {
	s.mu.RLock()
	conns := make([]*Connection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	infos := make([]ConnectionInfo, 0, len(conns))
	for _, c := range conns {
		infos = append(infos, c.info())
	}
	return infos
}

// Stats contains transport statistics
type Stats struct {
	Connections      int    `json:"connections"`
	ActiveSessions   int    `json:"active_sessions"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	FramesReceived   uint64 `json:"frames_received"`
	DashboardClients int    `json:"dashboard_clients"`
}

// GetStats returns transport statistics
func (s *Server) GetStats() Stats {
	st := Stats{
		Connections:      s.ConnectionCount(),
		ActiveSessions:   s.tracker.Registry().Len(),
		MessagesReceived: s.messagesReceived.Load(),
		MessagesSent:     s.messagesSent.Load(),
		FramesReceived:   s.framesReceived.Load(),
	}
	if s.dashboard != nil {
		st.DashboardClients = s.dashboard.ClientCount()
	}
	return st
}

package cloud

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofiber/contrib/websocket"

	"github.com/teslashibe/go-focus/pkg/metrics"
	"github.com/teslashibe/go-focus/pkg/protocol"
)

const (
	writeWait       = 10 * time.Second
	writeRetryDelay = 50 * time.Millisecond
	writeRetries    = 2
)

// Connection is a connected viewer.
type Connection struct {
	ID        string
	Conn      *websocket.Conn
	Claims    *Claims
	Connected time.Time
	LastSeen  time.Time

	mu sync.Mutex
}

// Send writes msg to the viewer, retrying briefly on transient errors.
func (c *Connection) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	operation := func() error {
		c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		return c.Conn.WriteMessage(websocket.TextMessage, data)
	}
	strategy := backoff.WithMaxRetries(backoff.NewConstantBackOff(writeRetryDelay), writeRetries)
	if err := backoff.Retry(operation, strategy); err != nil {
		return err
	}

	metrics.MessagesSent.WithLabelValues(string(msg.Type)).Inc()
	return nil
}

func (c *Connection) touch() {
	c.mu.Lock()
	c.LastSeen = time.Now()
	c.mu.Unlock()
}

// ConnectionInfo contains info about a connected viewer
type ConnectionInfo struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject,omitempty"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

func (c *Connection) info() ConnectionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	info := ConnectionInfo{ID: c.ID, Connected: c.Connected, LastSeen: c.LastSeen}
	if c.Claims != nil {
		info.Subject = c.Claims.Subject
	}
	return info
}

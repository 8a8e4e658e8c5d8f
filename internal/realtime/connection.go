package realtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait   = 10 * time.Second
	pingPeriod  = 30 * time.Second
	readTimeout = 60 * time.Second
	sendBuffer  = 64
)

var (
	errConnectionClosed = errors.New("realtime: connection closed")
	errBufferExceeded   = errors.New("realtime: send buffer exceeded")
)

// Connection owns the write side of one websocket. Frames are queued on a
// buffered channel and written by a single goroutine; a client that falls
// too far behind is disconnected.
type Connection struct {
	ID     string
	UserID string

	ws     *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func NewConnection(userID string, ws *websocket.Conn, logger *slog.Logger) *Connection {
	id := uuid.NewString()
	return &Connection{
		ID:     id,
		UserID: userID,
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		logger: logger.With("connection_id", id, "user_id", userID),
	}
}

// Start launches the write loop. Call it once.
func (c *Connection) Start() {
	go c.writeLoop()
}

// SendFrame marshals v and queues it.
func (c *Connection) SendFrame(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Send(payload)
}

func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.done:
		return errConnectionClosed
	default:
	}
	select {
	case <-c.done:
		return errConnectionClosed
	case c.send <- payload:
		return nil
	default:
		c.logger.Warn("client too slow, disconnecting")
		c.Close(websocket.ClosePolicyViolation, "send buffer full")
		return errBufferExceeded
	}
}

// Close sends a close frame and releases the socket. Safe to call more than once.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(wireCloseCode(code), reason), time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

// wireCloseCode replaces the codes RFC 6455 reserves for local reporting,
// which must never be sent in a close frame.
func wireCloseCode(code int) int {
	switch code {
	case websocket.CloseNoStatusReceived, websocket.CloseAbnormalClosure, websocket.CloseTLSHandshake:
		return websocket.CloseInternalServerErr
	}
	return code
}

// Done is closed once the connection is closed.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.logger.Debug("write failed", "err", err)
				c.Close(websocket.CloseInternalServerErr, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseInternalServerErr, "ping failed")
				return
			}
		}
	}
}

func (c *Connection) write(messageType int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, payload)
}

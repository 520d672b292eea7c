package gateway

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Role identifies what a connection is allowed to send and receive.
type Role string

const (
	RoleStation      Role = "station"
	RoleAdmin        Role = "admin"
	RoleViewer       Role = "viewer"
	RoleRegistration Role = "registration"
)

// Config holds websocket connection settings.
type Config struct {
	WriteTimeout    time.Duration
	PongTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	// SendBuffer is the per-connection outbound queue; a receiver that falls
	// this far behind is disconnected so it cannot block the others.
	SendBuffer  int
	CheckOrigin func(r *http.Request) bool
}

// DefaultConfig returns the default websocket configuration.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		PongTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// Conn is one websocket connection with a role. Outbound frames go through
// the buffered send channel and a single writer goroutine, which keeps
// per-connection delivery ordered.
type Conn struct {
	id   string
	role Role
	ws   *websocket.Conn
	send chan []byte
	hub  *Hub

	connectedAt time.Time
}

// enqueue queues a frame for delivery, reporting false when the buffer is
// full.
func (c *Conn) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// writePump delivers queued frames and keeps the connection alive with pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
		c.hub.disconnect(c)
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug().Err(err).Str("connection_id", c.id).Msg("write failed")
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump is the connection's single receive loop. Each inbound frame is
// handed to the hub; a read error of any kind counts as a disconnect.
func (c *Conn) readPump() {
	defer func() {
		c.hub.disconnect(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(c.hub.cfg.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.hub.cfg.PongTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.hub.cfg.PongTimeout))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("connection_id", c.id).Msg("unexpected close")
			}
			return
		}
		c.hub.handleFrame(c, data)
		c.ws.SetReadDeadline(time.Now().Add(c.hub.cfg.PongTimeout))
	}
}

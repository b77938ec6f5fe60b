package realtime

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxClientFrame = 4 << 10
)

// Client is one authenticated websocket connection.
type Client struct {
	id    string
	login string
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	log   zerolog.Logger
}

type clientFrame struct {
	Action    string          `json:"action"`
	SessionID json.RawMessage `json:"sessionId"`
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxClientFrame)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientFrame
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("websocket read")
			}
			return
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg clientFrame) {
	switch msg.Action {
	case "watch-all":
		c.hub.join(c, DashboardRoom)
		c.ack("watching", DashboardRoom)
	case "watch-session", "unwatch-session":
		id, ok := parseSessionID(msg.SessionID)
		if !ok {
			c.ack("error", "sessionId is required")
			return
		}
		room := SessionRoom(id)
		if msg.Action == "watch-session" {
			c.hub.join(c, room)
			c.ack("watching", room)
			c.log.Debug().Str("room", room).Msg("watch")
			return
		}
		c.hub.leave(c, room)
		c.ack("unwatched", room)
	default:
		c.ack("error", "unsupported action")
	}
}

// ack replies directly to this client; a full buffer drops it like any event.
func (c *Client) ack(event, room string) {
	msg, _ := json.Marshal(frame{Event: event, Data: map[string]any{"room": room}})
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// parseSessionID accepts a JSON number or a numeric string.
func parseSessionID(raw json.RawMessage) (int64, bool) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

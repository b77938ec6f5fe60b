// Package realtime multicasts ledger events to websocket subscribers.
// Subscribers join a per-session room or the global dashboard room.
package realtime

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// DashboardRoom receives every event.
const DashboardRoom = "dashboard"

// SessionRoom names the room of a single session.
func SessionRoom(id int64) string {
	return fmt.Sprintf("session-%d", id)
}

// Event is one ledger change. SessionID nil means the event has no session
// scope and only reaches the dashboard room.
type Event struct {
	Name      string
	SessionID *int64
	Data      map[string]any
}

// Publisher is the fan-out contract used by the services. Publish never
// blocks on slow or absent subscribers.
type Publisher interface {
	Publish(Event)
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(Event) {}

type frame struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

// Hub tracks clients and room membership.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
	log     zerolog.Logger
}

// NewHub returns an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
		log:     log.With().Str("component", "realtime").Logger(),
	}
}

// Publish sends the event to its session room as-is and to the dashboard
// room with the session id embedded.
func (h *Hub) Publish(ev Event) {
	if h == nil {
		return
	}
	var scoped []byte
	if ev.SessionID != nil {
		msg, err := json.Marshal(frame{Event: ev.Name, Data: dataOrEmpty(ev.Data)})
		if err != nil {
			h.log.Error().Err(err).Str("event", ev.Name).Msg("encode event")
			return
		}
		scoped = msg
	}

	global := make(map[string]any, len(ev.Data)+1)
	for k, v := range ev.Data {
		global[k] = v
	}
	if ev.SessionID != nil {
		global["sessionId"] = *ev.SessionID
	} else {
		global["sessionId"] = nil
	}
	broadcast, err := json.Marshal(frame{Event: ev.Name, Data: global})
	if err != nil {
		h.log.Error().Err(err).Str("event", ev.Name).Msg("encode event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if ev.SessionID != nil {
		h.deliver(SessionRoom(*ev.SessionID), scoped)
	}
	h.deliver(DashboardRoom, broadcast)
}

// deliver must run under h.mu.
func (h *Hub) deliver(room string, msg []byte) {
	for c := range h.rooms[room] {
		select {
		case c.send <- msg:
		default:
			h.log.Warn().Str("client", c.id).Str("room", room).Msg("send buffer full, event dropped")
		}
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for room, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	close(c.send)
}

func (h *Hub) join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
}

func (h *Hub) leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Members returns the number of clients in room.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func dataOrEmpty(d map[string]any) map[string]any {
	if d == nil {
		return map[string]any{}
	}
	return d
}

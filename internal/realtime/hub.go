// Package realtime implements the websocket delivery path: per-user and
// per-chat rooms, fan-out, and notification dispatch.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/murmurnet/murmur/internal/metrics"
)

// Hub tracks the set of live clients and which rooms each one has joined.
// All room state lives behind one lock; clients register and unregister
// through channels serviced by Run.
type Hub struct {
	// Register requests from clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	mu      sync.RWMutex
	clients map[*Client]map[RoomKey]struct{}
	rooms   map[RoomKey]map[*Client]struct{}

	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewHub creates a hub.
func NewHub(log zerolog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]map[RoomKey]struct{}),
		rooms:      make(map[RoomKey]map[*Client]struct{}),
		log:        log.With().Str("component", "hub").Logger(),
		metrics:    m,
	}
}

// Run services registration until the context is cancelled, then closes
// every remaining client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = make(map[RoomKey]struct{})
	h.metrics.Connections.Inc()
	h.log.Debug().Msg("client registered")
}

// removeClient drops the client from every room it joined. Room teardown on
// disconnect is the only cleanup; there is no other per-connection state.
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rooms, ok := h.clients[client]
	if !ok {
		return
	}
	for key := range rooms {
		h.leaveLocked(client, key)
	}
	delete(h.clients, client)
	close(client.send)
	h.metrics.Connections.Dec()
	h.log.Debug().Stringer("user", client.UserID()).Msg("client unregistered")
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		h.metrics.Connections.Dec()
	}
	h.clients = make(map[*Client]map[RoomKey]struct{})
	h.rooms = make(map[RoomKey]map[*Client]struct{})
}

// Join adds the client to a room. Multiple connections may share a room;
// that is how several tabs of one user all receive the same events.
func (h *Hub) Join(client *Client, key RoomKey) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rooms, ok := h.clients[client]
	if !ok {
		return
	}
	rooms[key] = struct{}{}

	members, ok := h.rooms[key]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[key] = members
	}
	members[client] = struct{}{}
	h.log.Debug().Stringer("room", key).Msg("client joined room")
}

func (h *Hub) leaveLocked(client *Client, key RoomKey) {
	members, ok := h.rooms[key]
	if !ok {
		return
	}
	delete(members, client)
	if len(members) == 0 {
		delete(h.rooms, key)
	}
}

// RoomSize reports how many clients are in the room.
func (h *Hub) RoomSize(key RoomKey) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[key])
}

// Broadcast emits an event to every client in the room. An empty room is a
// no-op, not an error.
func (h *Hub) Broadcast(key RoomKey, event *Event) {
	h.broadcast(key, nil, uuid.Nil, event)
}

// BroadcastExcept emits an event to every client in the room except the
// originator. The exclusion covers the whole user, not just the one
// connection: the originator's other tabs are also skipped, because they
// already carry the event through whatever local action produced it.
func (h *Hub) BroadcastExcept(key RoomKey, except *Client, event *Event) {
	var exceptUser uuid.UUID
	if except != nil {
		exceptUser = except.UserID()
	}
	h.broadcast(key, except, exceptUser, event)
}

// deliver queues an event on one client. Channel closes happen under the
// write lock after the client leaves the registry, so holding the read lock
// and checking membership here rules out a send on a closed channel.
func (h *Hub) deliver(client *Client, event *Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Str("type", string(event.Type)).Msg("marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	select {
	case client.send <- payload:
		h.metrics.EventsEmitted.WithLabelValues(string(event.Type)).Inc()
	default:
		h.log.Warn().Msg("send buffer full, event dropped")
	}
}

func (h *Hub) broadcast(key RoomKey, except *Client, exceptUser uuid.UUID, event *Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Str("type", string(event.Type)).Msg("marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[key] {
		if client == except {
			continue
		}
		if exceptUser != uuid.Nil && client.UserID() == exceptUser {
			continue
		}
		select {
		case client.send <- payload:
			h.metrics.EventsEmitted.WithLabelValues(string(event.Type)).Inc()
		default:
			// Slow consumer; drop the event rather than block the
			// hub. The durable record, if any, is in the database.
			h.log.Warn().Stringer("room", key).Msg("send buffer full, event dropped")
		}
	}
}

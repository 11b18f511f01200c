package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer; attachments ride the REST
	// path, so socket frames stay small.
	maxMessageSize = 64 * 1024
)

// Client is one live websocket connection. A user may hold several at once
// (one per tab or device); each joins the same user room after setup.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	userID uuid.UUID

	log zerolog.Logger
}

// NewClient wraps an upgraded connection. The caller registers it with the
// hub and starts the pumps.
func NewClient(hub *Hub, conn *websocket.Conn, log zerolog.Logger) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
		log:  log.With().Str("component", "client").Logger(),
	}
}

// UserID returns the identity bound at setup, or uuid.Nil before setup.
func (c *Client) UserID() uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *Client) setUserID(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = id
}

// Start registers the client and launches its pumps.
func (c *Client) Start() {
	c.hub.Register <- c
	go c.writePump()
	go c.readPump()
}

// readPump pumps events from the websocket connection into the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug().Err(err).Msg("websocket closed")
			}
			break
		}

		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			c.log.Debug().Err(err).Msg("malformed event ignored")
			continue
		}
		c.handleEvent(&event)
	}
}

func (c *Client) handleEvent(event *Event) {
	switch event.Type {
	case EventSetup:
		c.handleSetup(event)
	case EventJoinChat:
		c.handleJoinChat(event)
	case EventNewMessage:
		c.handleNewMessage(event)
	case EventTyping, EventStopTyping:
		c.handleTyping(event)
	default:
		c.log.Debug().Str("type", string(event.Type)).Msg("unknown event type")
	}
}

// handleSetup binds the connection to a user room and acknowledges. A
// missing or malformed id makes the event a silent no-op.
func (c *Client) handleSetup(event *Event) {
	var data SetupData
	if err := event.ParseData(&data); err != nil || data.ID == uuid.Nil {
		return
	}

	c.setUserID(data.ID)
	c.hub.Join(c, UserRoom(data.ID))

	ack, err := NewEvent(EventConnected, nil)
	if err != nil {
		return
	}
	c.sendEvent(ack)
}

func (c *Client) handleJoinChat(event *Event) {
	var data ChatRef
	if err := event.ParseData(&data); err != nil || data.ChatID == uuid.Nil {
		return
	}
	c.hub.Join(c, ChatRoom(data.ChatID))
}

// handleNewMessage rebroadcasts a just-sent message into the chat room so
// other participants with that conversation open see it immediately. The
// canonical fan-out to user rooms happens in the dispatcher on the REST
// send path.
func (c *Client) handleNewMessage(event *Event) {
	var data ChatRef
	if err := event.ParseData(&data); err != nil || data.ChatID == uuid.Nil {
		return
	}
	out := &Event{Type: EventMessageReceived, Data: event.Data}
	c.hub.BroadcastExcept(ChatRoom(data.ChatID), c, out)
}

// handleTyping forwards typing indicators to everyone else with the chat
// open. Not persisted.
func (c *Client) handleTyping(event *Event) {
	var data ChatRef
	if err := event.ParseData(&data); err != nil || data.ChatID == uuid.Nil {
		return
	}
	out, err := NewEvent(event.Type, TypingData{ChatID: data.ChatID, UserID: c.UserID()})
	if err != nil {
		return
	}
	c.hub.BroadcastExcept(ChatRoom(data.ChatID), c, out)
}

func (c *Client) sendEvent(event *Event) {
	c.hub.deliver(c, event)
}

// writePump pumps events from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

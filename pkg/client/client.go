// Package client speaks the murmur realtime protocol: it connects, binds
// to the caller's user room, and routes inbound events to handlers. It also
// carries the client-side state that keeps the unread badge and an open
// chat window consistent with the server.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/murmurnet/murmur/internal/realtime"
)

const connectTimeout = 10 * time.Second

// Client is one live connection to the server.
type Client struct {
	conn *websocket.Conn
	log  zerolog.Logger

	mu       sync.Mutex
	handlers map[realtime.EventType][]func(json.RawMessage)
	writeMu  sync.Mutex

	done chan struct{}
}

// Dial connects, performs setup for the given user, and waits for the
// server's connected acknowledgement before returning.
func Dial(ctx context.Context, url string, userID uuid.UUID, log zerolog.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{
		conn:     conn,
		log:      log.With().Str("component", "client").Logger(),
		handlers: make(map[realtime.EventType][]func(json.RawMessage)),
		done:     make(chan struct{}),
	}

	if err := c.emit(realtime.EventSetup, realtime.SetupData{ID: userID}); err != nil {
		conn.Close()
		return nil, err
	}
	if err := c.awaitConnected(); err != nil {
		conn.Close()
		return nil, err
	}

	go c.readLoop()
	return c, nil
}

func (c *Client) awaitConnected() error {
	deadline := time.Now().Add(connectTimeout)
	c.conn.SetReadDeadline(deadline)
	defer c.conn.SetReadDeadline(time.Time{})

	for {
		var event realtime.Event
		if err := c.conn.ReadJSON(&event); err != nil {
			return fmt.Errorf("await connected: %w", err)
		}
		if event.Type == realtime.EventConnected {
			return nil
		}
		// Anything arriving before the ack is dispatched normally.
		c.dispatch(&event)
	}
}

// On registers a handler for an event type. Handlers run on the read loop
// goroutine, in registration order.
func (c *Client) On(eventType realtime.EventType, fn func(json.RawMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[eventType] = append(c.handlers[eventType], fn)
}

// JoinChat subscribes this connection to a conversation's room, enabling
// typing indicators and scoped message delivery for that chat.
func (c *Client) JoinChat(chatID uuid.UUID) error {
	return c.emit(realtime.EventJoinChat, realtime.ChatRef{ChatID: chatID})
}

// AnnounceMessage tells the chat room about a message that the REST send
// call just persisted.
func (c *Client) AnnounceMessage(msg json.RawMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(realtime.Event{Type: realtime.EventNewMessage, Data: msg})
}

// Typing signals that the user is composing in the given chat.
func (c *Client) Typing(chatID uuid.UUID) error {
	return c.emit(realtime.EventTyping, realtime.ChatRef{ChatID: chatID})
}

// StopTyping clears the typing indicator.
func (c *Client) StopTyping(chatID uuid.UUID) error {
	return c.emit(realtime.EventStopTyping, realtime.ChatRef{ChatID: chatID})
}

func (c *Client) emit(eventType realtime.EventType, data any) error {
	event, err := realtime.NewEvent(eventType, data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(event); err != nil {
		return fmt.Errorf("emit %s: %w", eventType, err)
	}
	return nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		var event realtime.Event
		if err := c.conn.ReadJSON(&event); err != nil {
			c.log.Debug().Err(err).Msg("connection closed")
			return
		}
		c.dispatch(&event)
	}
}

func (c *Client) dispatch(event *realtime.Event) {
	c.mu.Lock()
	handlers := append([]func(json.RawMessage){}, c.handlers[event.Type]...)
	c.mu.Unlock()

	for _, fn := range handlers {
		fn(event.Data)
	}
}

// Done is closed when the connection drops.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close tears down the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

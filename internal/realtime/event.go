package realtime

import (
	"encoding/json"

	"github.com/google/uuid"
)

// EventType names the events of the realtime protocol.
type EventType string

const (
	// Client -> server.
	EventSetup      EventType = "setup"
	EventJoinChat   EventType = "join chat"
	EventNewMessage EventType = "new message"
	EventTyping     EventType = "typing"
	EventStopTyping EventType = "stop typing"

	// Server -> client.
	EventConnected            EventType = "connected"
	EventMessageReceived      EventType = "message received"
	EventNotificationReceived EventType = "notification received"
	EventUnreadCount          EventType = "unread count"
)

// Event is the wire envelope. Payloads are full JSON documents, not deltas.
type Event struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent wraps a payload in an envelope.
func NewEvent(eventType EventType, data any) (*Event, error) {
	if data == nil {
		return &Event{Type: eventType}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Event{Type: eventType, Data: raw}, nil
}

// ParseData unmarshals the payload into v.
func (e *Event) ParseData(v any) error {
	return json.Unmarshal(e.Data, v)
}

// SetupData carries the user identity on setup. The field name matches the
// document id the browser client sends.
type SetupData struct {
	ID uuid.UUID `json:"_id"`
}

// ChatRef names a chat in join/typing events.
type ChatRef struct {
	ChatID uuid.UUID `json:"chatId"`
}

// TypingData is forwarded to the chat room, excluding its sender.
type TypingData struct {
	ChatID uuid.UUID `json:"chatId"`
	UserID uuid.UUID `json:"userId"`
}

// UnreadCountData carries an authoritative unread badge value.
type UnreadCountData struct {
	Count int `json:"count"`
}

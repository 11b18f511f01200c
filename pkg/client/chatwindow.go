package client

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/murmurnet/murmur/internal/models"
)

// WindowState is the delivery state of an open chat window.
type WindowState int

const (
	// StateLoading: the history fetch is in flight.
	StateLoading WindowState = iota
	// StateIdle: ready and listening.
	StateIdle
	// StateSending: input cleared optimistically, awaiting the server.
	StateSending
)

// HistoryFunc fetches a chat's message history over REST.
type HistoryFunc func(ctx context.Context, chatID uuid.UUID) ([]*models.Message, error)

// SendFunc persists a message over REST and returns the stored document.
type SendFunc func(ctx context.Context, chatID uuid.UUID, text string) (*models.Message, error)

// ChatWindow models one open conversation view. Sends are optimistic: the
// input clears immediately and is restored if the server rejects the send.
// Inbound broadcasts append whenever the chat id matches, regardless of the
// send state.
type ChatWindow struct {
	chatID  uuid.UUID
	history HistoryFunc
	send    SendFunc

	mu       sync.Mutex
	state    WindowState
	input    string
	messages []*models.Message
}

// NewChatWindow creates a window in the loading state.
func NewChatWindow(chatID uuid.UUID, history HistoryFunc, send SendFunc) *ChatWindow {
	return &ChatWindow{
		chatID:  chatID,
		history: history,
		send:    send,
		state:   StateLoading,
	}
}

// Open performs the history fetch. Success or failure both leave the
// window idle; a failed fetch just shows an empty list.
func (w *ChatWindow) Open(ctx context.Context) error {
	messages, err := w.history(ctx, w.chatID)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = StateIdle
	if err != nil {
		w.messages = nil
		return err
	}
	w.messages = messages
	return nil
}

// SetInput replaces the composer text.
func (w *ChatWindow) SetInput(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.input = text
}

// Input returns the composer text.
func (w *ChatWindow) Input() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.input
}

// State returns the window's current state.
func (w *ChatWindow) State() WindowState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Messages returns a snapshot of the transcript.
func (w *ChatWindow) Messages() []*models.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*models.Message{}, w.messages...)
}

// Send submits the composer text. The input clears before the server
// answers; on rejection it is restored and nothing is appended.
func (w *ChatWindow) Send(ctx context.Context) (*models.Message, error) {
	w.mu.Lock()
	if w.state != StateIdle || w.input == "" {
		w.mu.Unlock()
		return nil, nil
	}
	text := w.input
	w.input = ""
	w.state = StateSending
	w.mu.Unlock()

	msg, err := w.send(ctx, w.chatID, text)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = StateIdle
	if err != nil {
		// Compensating action, not a retry: the user resubmits.
		w.input = text
		return nil, err
	}
	w.messages = append(w.messages, msg)
	return msg, nil
}

// Receive appends a broadcast message if it belongs to this chat; events
// for other chats are dropped to avoid cross-chat leakage.
func (w *ChatWindow) Receive(msg *models.Message) {
	if msg == nil || msg.ChatID != w.chatID {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, msg)
}

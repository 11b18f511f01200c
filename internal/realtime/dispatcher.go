package realtime

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/murmurnet/murmur/internal/metrics"
	"github.com/murmurnet/murmur/internal/models"
)

// NotificationStore is the slice of the database the dispatcher needs.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	HasUnreadLike(ctx context.Context, recipientID, senderID, postID uuid.UUID) (bool, error)
}

// Dispatcher turns domain events into room broadcasts and durable
// notification rows. It is constructed once and handed to whatever needs to
// emit; there is no ambient global socket.
type Dispatcher struct {
	hub     *Hub
	store   NotificationStore
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewDispatcher creates a dispatcher over the hub and store.
func NewDispatcher(hub *Hub, store NotificationStore, log zerolog.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		hub:     hub,
		store:   store,
		log:     log.With().Str("component", "dispatcher").Logger(),
		metrics: m,
	}
}

// DispatchMessage delivers a new chat message to every participant except
// the sender: a "message received" event for any open chat window, and a
// persisted "notification received" for the bell. The two emits are
// independent; a client subscribed to both handles each once. Recipients
// with no live session simply keep the database row for their next load.
func (d *Dispatcher) DispatchMessage(ctx context.Context, msg *models.Message, chat *models.Chat, senderName string) {
	event, err := NewEvent(EventMessageReceived, msg)
	if err != nil {
		d.log.Error().Err(err).Msg("marshal message event")
		return
	}

	for _, participant := range chat.Users {
		if participant == msg.SenderID {
			continue
		}
		d.hub.Broadcast(UserRoom(participant), event)

		notification := &models.Notification{
			RecipientID: participant,
			SenderID:    msg.SenderID,
			SenderName:  senderName,
			Type:        models.NotificationMessage,
			Message:     fmt.Sprintf("%s sent you a message", senderName),
		}
		if err := d.persistAndNotify(ctx, notification); err != nil {
			d.log.Error().Err(err).Stringer("recipient", participant).Msg("dispatch message notification")
		}
	}
	d.metrics.MessagesSent.Inc()
}

// DispatchSocial persists a like/comment/follow notification and emits it
// to the recipient's sessions. Self-notifications are skipped entirely, and
// a like is suppressed while an unread like from the same sender for the
// same post is still pending. Returns nil, nil when nothing was dispatched.
func (d *Dispatcher) DispatchSocial(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	if n.RecipientID == n.SenderID {
		return nil, nil
	}

	if n.Type == models.NotificationLike && n.PostID != nil {
		pending, err := d.store.HasUnreadLike(ctx, n.RecipientID, n.SenderID, *n.PostID)
		if err != nil {
			return nil, err
		}
		if pending {
			return nil, nil
		}
	}

	if err := d.persistAndNotify(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (d *Dispatcher) persistAndNotify(ctx context.Context, n *models.Notification) error {
	if err := d.store.CreateNotification(ctx, n); err != nil {
		// No emit without a durable row; the client would show a
		// notification that vanishes on the next page load.
		return err
	}
	d.metrics.NotificationsPersisted.Inc()

	event, err := NewEvent(EventNotificationReceived, n)
	if err != nil {
		return err
	}
	d.hub.Broadcast(UserRoom(n.RecipientID), event)
	return nil
}

// BroadcastUnreadCount pushes an authoritative unread badge value to every
// session the user has open. Issued after bulk mark-read or clear-all so
// all tabs converge on the same number.
func (d *Dispatcher) BroadcastUnreadCount(userID uuid.UUID, count int) {
	event, err := NewEvent(EventUnreadCount, UnreadCountData{Count: count})
	if err != nil {
		d.log.Error().Err(err).Msg("marshal unread count event")
		return
	}
	d.hub.Broadcast(UserRoom(userID), event)
}

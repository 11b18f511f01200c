package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/murmurnet/murmur/internal/models"
)

func (e *env) seedNotification(t *testing.T, recipientID, senderID uuid.UUID) {
	t.Helper()
	require.NoError(t, e.store.CreateNotification(context.Background(), &models.Notification{
		RecipientID: recipientID,
		SenderID:    senderID,
		SenderName:  "Someone",
		Type:        models.NotificationFollow,
		Message:     "Someone started following you",
	}))
}

func TestUnreadCountReflectsStore(t *testing.T) {
	e := newEnv(t)
	alice := e.seedUser(t, "Alice", "alice")
	bob := e.seedUser(t, "Bob", "bob")
	e.seedNotification(t, alice.ID, bob.ID)
	e.seedNotification(t, alice.ID, bob.ID)

	rec := httptest.NewRecorder()
	e.h.UnreadCountHandler(rec, request(http.MethodGet, "/api/notifications/unread", alice.ID, nil, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]int
	decode(t, rec, &body)
	assert.Equal(t, 2, body["count"])
}

func TestMarkAllReadZeroesUnread(t *testing.T) {
	e := newEnv(t)
	alice := e.seedUser(t, "Alice", "alice")
	bob := e.seedUser(t, "Bob", "bob")
	e.seedNotification(t, alice.ID, bob.ID)
	e.seedNotification(t, alice.ID, bob.ID)

	rec := httptest.NewRecorder()
	e.h.MarkReadHandler(rec, request(http.MethodPut, "/api/notifications/read", alice.ID, nil, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	count, err := e.store.CountUnread(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	// The rows survive, only the read flag changes.
	assert.Len(t, e.store.notificationsFor(alice.ID), 2)
}

func TestClearNotificationsRemovesRows(t *testing.T) {
	e := newEnv(t)
	alice := e.seedUser(t, "Alice", "alice")
	bob := e.seedUser(t, "Bob", "bob")
	e.seedNotification(t, alice.ID, bob.ID)
	e.seedNotification(t, bob.ID, alice.ID)

	rec := httptest.NewRecorder()
	e.h.ClearNotificationsHandler(rec, request(http.MethodDelete, "/api/notifications", alice.ID, nil, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Empty(t, e.store.notificationsFor(alice.ID))
	assert.Len(t, e.store.notificationsFor(bob.ID), 1, "other users keep theirs")
}

func TestListNotificationsNewestFirst(t *testing.T) {
	e := newEnv(t)
	alice := e.seedUser(t, "Alice", "alice")
	bob := e.seedUser(t, "Bob", "bob")
	require.NoError(t, e.store.CreateNotification(context.Background(), &models.Notification{
		RecipientID: alice.ID, SenderID: bob.ID, Type: models.NotificationFollow, Message: "first",
	}))
	require.NoError(t, e.store.CreateNotification(context.Background(), &models.Notification{
		RecipientID: alice.ID, SenderID: bob.ID, Type: models.NotificationComment, Message: "second",
	}))

	rec := httptest.NewRecorder()
	e.h.ListNotificationsHandler(rec, request(http.MethodGet, "/api/notifications", alice.ID, nil, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Notifications []*models.Notification `json:"notifications"`
	}
	decode(t, rec, &body)
	require.Len(t, body.Notifications, 2)
	assert.Equal(t, "second", body.Notifications[0].Message)
	assert.Equal(t, "first", body.Notifications[1].Message)
}

func TestNotificationEndpointsRequireIdentity(t *testing.T) {
	e := newEnv(t)

	for _, handler := range []http.HandlerFunc{
		e.h.ListNotificationsHandler,
		e.h.UnreadCountHandler,
		e.h.MarkReadHandler,
		e.h.ClearNotificationsHandler,
	} {
		rec := httptest.NewRecorder()
		handler(rec, request(http.MethodGet, "/api/notifications", uuid.Nil, nil, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

package handlers

import (
	"net/http"

	"github.com/murmurnet/murmur/internal/models"
)

// ListNotificationsHandler returns the caller's notifications, newest first.
func (h *Handler) ListNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	notifications, err := h.store.ListNotifications(r.Context(), userID)
	if err != nil {
		h.internalError(w, err, "list notifications")
		return
	}
	if notifications == nil {
		notifications = []*models.Notification{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"notifications": notifications})
}

// UnreadCountHandler returns the authoritative unread badge value.
func (h *Handler) UnreadCountHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	count, err := h.store.CountUnread(r.Context(), userID)
	if err != nil {
		h.internalError(w, err, "count unread")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"count": count})
}

// MarkReadHandler marks every notification read and pushes the zero badge
// to all of the caller's open sessions.
func (h *Handler) MarkReadHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	if err := h.store.MarkAllRead(r.Context(), userID); err != nil {
		h.internalError(w, err, "mark notifications read")
		return
	}
	h.dispatcher.BroadcastUnreadCount(userID, 0)
	respondJSON(w, http.StatusOK, map[string]string{"message": "All notifications marked read."})
}

// ClearNotificationsHandler deletes every notification for the caller and
// pushes the zero badge to all open sessions.
func (h *Handler) ClearNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	if err := h.store.ClearNotifications(r.Context(), userID); err != nil {
		h.internalError(w, err, "clear notifications")
		return
	}
	h.dispatcher.BroadcastUnreadCount(userID, 0)
	respondJSON(w, http.StatusOK, map[string]string{"message": "Notifications cleared."})
}

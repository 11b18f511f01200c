package handlers

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/murmurnet/murmur/internal/models"
)

// GetUserHandler returns a profile with follower/following counts.
func (h *Handler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, mux.Vars(r), "id")
	if !ok {
		return
	}

	user, err := h.store.GetUserByID(r.Context(), userID)
	if err != nil {
		h.internalError(w, err, "get user")
		return
	}
	if user == nil {
		respondError(w, http.StatusNotFound, "User not found.")
		return
	}

	user.Followers, user.Following, err = h.store.FollowCounts(r.Context(), userID)
	if err != nil {
		h.internalError(w, err, "count follows")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// SearchUsersHandler matches names and usernames by prefix.
func (h *Handler) SearchUsersHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		respondJSON(w, http.StatusOK, map[string]any{"users": []*models.User{}})
		return
	}
	users, err := h.store.SearchUsers(r.Context(), query)
	if err != nil {
		h.internalError(w, err, "search users")
		return
	}
	if users == nil {
		users = []*models.User{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"users": users})
}

// UpdateUserHandler edits profile fields; callers may only edit themselves.
func (h *Handler) UpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := identity(w, r)
	if !ok {
		return
	}
	userID, ok := pathID(w, mux.Vars(r), "id")
	if !ok {
		return
	}
	if callerID != userID {
		respondError(w, http.StatusForbidden, "You can only edit your own profile.")
		return
	}

	user, err := h.store.GetUserByID(r.Context(), userID)
	if err != nil {
		h.internalError(w, err, "get user")
		return
	}
	if user == nil {
		respondError(w, http.StatusNotFound, "User not found.")
		return
	}

	var req struct {
		Name    *string `json:"name"`
		Picture *string `json:"picture"`
		Bio     *string `json:"bio"`
		DOB     *string `json:"dob"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Picture != nil {
		user.Picture = *req.Picture
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}
	if req.DOB != nil {
		user.DOB = *req.DOB
	}

	if err := h.store.UpdateUser(r.Context(), user); err != nil {
		h.internalError(w, err, "update user")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// FollowHandler makes the caller follow the target. Repeating the call is
// a 400: the follow edge is a set, not a counter.
func (h *Handler) FollowHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := identity(w, r)
	if !ok {
		return
	}
	targetID, ok := pathID(w, mux.Vars(r), "id")
	if !ok {
		return
	}
	if callerID == targetID {
		respondError(w, http.StatusBadRequest, "You cannot follow yourself.")
		return
	}

	target, err := h.store.GetUserByID(r.Context(), targetID)
	if err != nil {
		h.internalError(w, err, "get user")
		return
	}
	if target == nil {
		respondError(w, http.StatusNotFound, "User not found.")
		return
	}

	created, err := h.store.FollowUser(r.Context(), callerID, targetID)
	if err != nil {
		h.internalError(w, err, "follow user")
		return
	}
	if !created {
		respondError(w, http.StatusBadRequest, "You already follow this user.")
		return
	}

	if actor, err := h.store.GetUserByID(r.Context(), callerID); err == nil && actor != nil {
		if _, err := h.dispatcher.DispatchSocial(r.Context(), &models.Notification{
			RecipientID: targetID,
			SenderID:    callerID,
			SenderName:  actor.Name,
			Type:        models.NotificationFollow,
			Message:     fmt.Sprintf("%s started following you", actor.Name),
		}); err != nil {
			h.log.Error().Err(err).Msg("dispatch follow notification")
		}
	}

	target.Followers, target.Following, err = h.store.FollowCounts(r.Context(), targetID)
	if err != nil {
		h.internalError(w, err, "count follows")
		return
	}
	respondJSON(w, http.StatusOK, target)
}

// UnfollowHandler removes the follow edge.
func (h *Handler) UnfollowHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := identity(w, r)
	if !ok {
		return
	}
	targetID, ok := pathID(w, mux.Vars(r), "id")
	if !ok {
		return
	}

	target, err := h.store.GetUserByID(r.Context(), targetID)
	if err != nil {
		h.internalError(w, err, "get user")
		return
	}
	if target == nil {
		respondError(w, http.StatusNotFound, "User not found.")
		return
	}

	removed, err := h.store.UnfollowUser(r.Context(), callerID, targetID)
	if err != nil {
		h.internalError(w, err, "unfollow user")
		return
	}
	if !removed {
		respondError(w, http.StatusBadRequest, "You do not follow this user.")
		return
	}

	target.Followers, target.Following, err = h.store.FollowCounts(r.Context(), targetID)
	if err != nil {
		h.internalError(w, err, "count follows")
		return
	}
	respondJSON(w, http.StatusOK, target)
}

// DeleteUserHandler removes the caller's own account.
func (h *Handler) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := identity(w, r)
	if !ok {
		return
	}
	userID, ok := pathID(w, mux.Vars(r), "id")
	if !ok {
		return
	}
	if callerID != userID {
		respondError(w, http.StatusForbidden, "You can only delete your own account.")
		return
	}

	if err := h.store.DeleteUser(r.Context(), userID); err != nil {
		h.internalError(w, err, "delete user")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Account deleted."})
}

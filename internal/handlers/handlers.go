// Package handlers implements the REST surface.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/murmurnet/murmur/internal/auth"
	"github.com/murmurnet/murmur/internal/models"
	"github.com/murmurnet/murmur/internal/realtime"
)

// Store is everything the handlers need from the database.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	SearchUsers(ctx context.Context, query string) ([]*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
	MarkVerified(ctx context.Context, email string) error
	FollowUser(ctx context.Context, followerID, followeeID uuid.UUID) (bool, error)
	UnfollowUser(ctx context.Context, followerID, followeeID uuid.UUID) (bool, error)
	FollowCounts(ctx context.Context, id uuid.UUID) (followers, following int, err error)

	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	ListPosts(ctx context.Context, page, perPage int) ([]*models.Post, error)
	SearchPosts(ctx context.Context, query string, tags []string) ([]*models.Post, error)
	UpdatePost(ctx context.Context, post *models.Post) error
	DeletePost(ctx context.Context, id uuid.UUID) error
	TogglePostLike(ctx context.Context, postID, userID uuid.UUID) (bool, error)
	AddComment(ctx context.Context, comment *models.Comment) error
	ToggleCommentLike(ctx context.Context, commentID, userID uuid.UUID) (bool, error)
	IncrementShareCount(ctx context.Context, postID uuid.UUID) (int, error)

	CreateDirectChat(ctx context.Context, a, b uuid.UUID) (*models.Chat, error)
	CreateGroupChat(ctx context.Context, name string, creatorID uuid.UUID, memberIDs []uuid.UUID) (*models.Chat, error)
	GetChatByID(ctx context.Context, id uuid.UUID) (*models.Chat, error)
	ListChatsForUser(ctx context.Context, userID uuid.UUID) ([]*models.Chat, error)
	IsChatMember(ctx context.Context, chatID, userID uuid.UUID) (bool, error)
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessageByID(ctx context.Context, id uuid.UUID) (*models.Message, error)
	ListMessages(ctx context.Context, chatID uuid.UUID) ([]*models.Message, error)
	DeleteMessage(ctx context.Context, id uuid.UUID) error

	ListNotifications(ctx context.Context, recipientID uuid.UUID) ([]*models.Notification, error)
	CountUnread(ctx context.Context, recipientID uuid.UUID) (int, error)
	MarkAllRead(ctx context.Context, recipientID uuid.UUID) error
	ClearNotifications(ctx context.Context, recipientID uuid.UUID) error
}

// Handler holds the store and the collaborators HTTP handlers need.
type Handler struct {
	store      Store
	dispatcher *realtime.Dispatcher
	hub        *realtime.Hub
	tokens     *auth.Tokens
	otp        *auth.OTP
	limiter    *ipLimiter
	log        zerolog.Logger
}

// New creates a Handler.
func New(store Store, dispatcher *realtime.Dispatcher, hub *realtime.Hub, tokens *auth.Tokens, otp *auth.OTP, log zerolog.Logger) *Handler {
	return &Handler{
		store:      store,
		dispatcher: dispatcher,
		hub:        hub,
		tokens:     tokens,
		otp:        otp,
		limiter:    newIPLimiter(authRatePerSecond, authBurst),
		log:        log.With().Str("component", "handlers").Logger(),
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respondError always answers a JSON {"message": ...} body, per the error
// taxonomy: 401 auth, 400 validation, 403 ownership, 404 missing, 500 rest.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"message": message})
}

func (h *Handler) internalError(w http.ResponseWriter, err error, what string) {
	h.log.Error().Err(err).Msg(what)
	respondError(w, http.StatusInternalServerError, "Something went wrong.")
}

// identity returns the authenticated caller. The auth middleware guarantees
// it is present on protected routes.
func identity(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication required.")
		return uuid.Nil, false
	}
	return userID, true
}

// pathID parses a uuid path variable; a malformed id reads as not-found.
func pathID(w http.ResponseWriter, vars map[string]string, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(vars[name])
	if err != nil {
		respondError(w, http.StatusNotFound, "Not found.")
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return false
	}
	return true
}

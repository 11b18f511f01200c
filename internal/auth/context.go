package auth

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity adds the authenticated user id to the context.
func WithIdentity(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, identityKey, userID)
}

// IdentityFromContext retrieves the authenticated user id from the context.
func IdentityFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(identityKey).(uuid.UUID)
	return userID, ok
}

package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type contextKey string

const userIDKey contextKey = "userID"

// ContextWithUserID returns a new context that carries the authenticated user scope.
func ContextWithUserID(ctx context.Context, id uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromContext retrieves the authenticated user scope from the context, if any.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	value := ctx.Value(userIDKey)
	if value == nil {
		return uuid.Nil, false
	}
	id, ok := value.(uuid.UUID)
	if !ok {
		return uuid.Nil, false
	}
	if id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// EnforceUserScope ensures the provided user matches the authenticated scope when present.
func EnforceUserScope(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return fmt.Errorf("userId is required")
	}
	scopedID, ok := UserIDFromContext(ctx)
	if !ok {
		return nil
	}
	if scopedID != userID {
		return fmt.Errorf("userId %s does not match authenticated scope", userID)
	}
	return nil
}

package auth

import (
	"context"
	"errors"
	"strings"
)

type contextKey string

const userIDKey contextKey = "userID"

var (
	// ErrUnauthenticated is returned when no caller identity is present.
	ErrUnauthenticated = errors.New("caller identity is required")
	// ErrForbidden is returned when the caller does not own the requested resource.
	ErrForbidden = errors.New("resource belongs to another user")
)

// ContextWithUserID returns a new context that carries the authenticated caller.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, userIDKey, strings.TrimSpace(userID))
}

// UserIDFromContext retrieves the authenticated caller from the context, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(userIDKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// RequireUserID returns the caller or ErrUnauthenticated.
func RequireUserID(ctx context.Context) (string, error) {
	id, ok := UserIDFromContext(ctx)
	if !ok {
		return "", ErrUnauthenticated
	}
	return id, nil
}

// EnforceOwnership ensures the authenticated caller, when present, owns a resource.
// Contexts without a caller (CLI, background workers) are not restricted.
func EnforceOwnership(ctx context.Context, ownerID string) error {
	callerID, ok := UserIDFromContext(ctx)
	if !ok {
		return nil
	}
	if callerID != ownerID {
		return ErrForbidden
	}
	return nil
}

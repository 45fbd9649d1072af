package authstate

import (
	"context"

	"github.com/goliatone/go-router"
)

var userCtxKey = &contextKey{"user"}
var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// WithUserContext sets the AuthenticatedUser in the given context
func WithUserContext(r context.Context, user *AuthenticatedUser) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// UserFromContext finds the user from the context.
func UserFromContext(ctx context.Context) (*AuthenticatedUser, bool) {
	raw, ok := ctx.Value(userCtxKey).(*AuthenticatedUser)
	return raw, ok
}

// WithSessionContext sets the Session in the given context
func WithSessionContext(r context.Context, session *Session) context.Context {
	return context.WithValue(r, sessionCtxKey, session)
}

// SessionFromContext extracts the Session from the standard context
func SessionFromContext(ctx context.Context) (*Session, bool) {
	raw, ok := ctx.Value(sessionCtxKey).(*Session)
	return raw, ok
}

// UserFromRouter extracts the AuthenticatedUser from the router context
func UserFromRouter(ctx router.Context, key string) (*AuthenticatedUser, bool) {
	if key == "" {
		key = "current_user"
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	user, ok := raw.(*AuthenticatedUser)
	return user, ok
}

// Can is a convenience function to check role permissions directly from
// the standard context.
// Use CanFromRouter for router-based contexts.
func Can(ctx context.Context, permission string) bool {
	user, ok := UserFromContext(ctx)
	if !ok || user == nil {
		return false
	}
	return can(user.Role, permission)
}

// CanFromRouter is a convenience function to check role permissions
// directly from the router context
func CanFromRouter(ctx router.Context, permission string) bool {
	user, ok := UserFromRouter(ctx, "")
	if !ok || user == nil {
		return false
	}
	return can(user.Role, permission)
}

func can(role UserRole, permission string) bool {
	checks := Checks(role)
	switch permission {
	case "read":
		return checks.CanRead()
	case "edit":
		return checks.CanEdit()
	case "create":
		return checks.CanCreate()
	case "delete":
		return checks.CanDelete()
	case "manage_users":
		return checks.CanManageUsers()
	default:
		return false
	}
}

package authstate

import (
	"context"
	"fmt"
	"time"

	repository "github.com/goliatone/go-repository-bun"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// IdentityClient is the surface we consume from the hosted identity
// provider. Implementations live in provider/ or, for development and
// tests, in LocalIdentityClient.
type IdentityClient interface {
	// CurrentSession returns the active session, or nil when the provider
	// holds none. A nil session with a nil error is a valid answer.
	CurrentSession(ctx context.Context) (*Session, error)

	// SignInWithPassword exchanges credentials for a session.
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)

	// SignOut asks the provider to terminate the current session. The
	// provider emits a signed_out change regardless of server-side outcome.
	SignOut(ctx context.Context) error

	// Subscribe registers a change listener and returns an unsubscribe
	// function. Changes are delivered in the order the provider emits them.
	Subscribe(fn func(Change)) func()
}

// IdentityAdmin is the privileged provider surface used by the admin
// operation commands. Only admin-authorized code paths may hold one.
type IdentityAdmin interface {
	GetUserByID(ctx context.Context, id string) (*ProviderUser, error)
	CreateUser(ctx context.Context, email, password string) (*ProviderUser, error)
	DeleteUser(ctx context.Context, id string) error
}

// ProviderUser is the provider-level account record, distinct from the
// application Profile.
type ProviderUser struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Confirmed bool       `json:"confirmed"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// ProfileStore is the application-owned profile record store keyed by the
// provider user id. The bun-backed Profiles repository implements it, so
// Upsert carries the repository's variadic criteria.
type ProfileStore interface {
	GetByUserID(ctx context.Context, id string) (*Profile, error)
	Upsert(ctx context.Context, record *Profile, criteria ...repository.UpdateCriteria) (*Profile, error)
	UpdateRole(ctx context.Context, id string, role UserRole) error
	Touch(ctx context.Context, id string, seenAt time.Time) error
	DeleteByUserID(ctx context.Context, id string) error
}

// Config holds the options the HTTP layer needs
type Config interface {
	GetLoginRoute() string
	GetAdminRoute() string
	GetRejectedRouteKey() string
	GetRejectedRouteDefault() string
}

// SimpleConfig is a plain-struct Config for callers without a config system.
type SimpleConfig struct {
	LoginRoute           string
	AdminRoute           string
	RejectedRouteKey     string
	RejectedRouteDefault string
}

func (c SimpleConfig) GetLoginRoute() string {
	if c.LoginRoute == "" {
		return "/login"
	}
	return c.LoginRoute
}

func (c SimpleConfig) GetAdminRoute() string {
	if c.AdminRoute == "" {
		return "/admin"
	}
	return c.AdminRoute
}

func (c SimpleConfig) GetRejectedRouteKey() string {
	if c.RejectedRouteKey == "" {
		return "rejected_route"
	}
	return c.RejectedRouteKey
}

func (c SimpleConfig) GetRejectedRouteDefault() string {
	if c.RejectedRouteDefault == "" {
		return c.GetAdminRoute()
	}
	return c.RejectedRouteDefault
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTHSTATE "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTHSTATE "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTHSTATE "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTHSTATE "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

package authstate

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess    ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure    ActivityEventType = "auth.login.failure"
	ActivityEventSignOut         ActivityEventType = "auth.signout"
	ActivityEventProfileFallback ActivityEventType = "auth.profile.fallback"
	ActivityEventUserCreated     ActivityEventType = "admin.user.created"
	ActivityEventUserInvited     ActivityEventType = "admin.user.invited"
	ActivityEventUserDeleted     ActivityEventType = "admin.user.deleted"
	ActivityEventRoleChanged     ActivityEventType = "admin.user.role_changed"
)

// ActorRef identifies who/what triggered an event.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink receives auth events best-effort; record errors are logged
// by the caller, never propagated.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function into an ActivitySink.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error { return nil }

func normalizeActivitySink(sink ActivitySink) ActivitySink {
	if sink == nil {
		return noopActivitySink{}
	}
	return sink
}

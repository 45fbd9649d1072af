package authstate

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type UpdateUserRoleMessage struct {
	UserID string   `json:"userId"`
	Role   UserRole `json:"role"`

	Actor ActorRef
}

func (e UpdateUserRoleMessage) Type() string { return "admin.user.update_role" }

type UpdateUserRoleHandler struct {
	profiles ProfileStore
	sink     ActivitySink
}

func NewUpdateUserRoleHandler(profiles ProfileStore, sink ActivitySink) *UpdateUserRoleHandler {
	return &UpdateUserRoleHandler{
		profiles: profiles,
		sink:     normalizeActivitySink(sink),
	}
}

func (h *UpdateUserRoleHandler) Execute(ctx context.Context, event UpdateUserRoleMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during role update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateUserRoleHandler) execute(ctx context.Context, event UpdateUserRoleMessage) error {
	if event.UserID == "" {
		return goerrors.New("userId is required", goerrors.CategoryValidation).
			WithTextCode("MISSING_USER_ID")
	}

	if _, ok := ParseRole(event.Role); !ok {
		return goerrors.New("unknown role", goerrors.CategoryValidation).
			WithTextCode("INVALID_ROLE").
			WithMetadata(map[string]any{"role": event.Role})
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := h.profiles.UpdateRole(ctx, event.UserID, event.Role); err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not update role")
	}

	_ = h.sink.Record(ctx, ActivityEvent{
		EventType: ActivityEventRoleChanged,
		Actor:     event.Actor,
		UserID:    event.UserID,
		Metadata: map[string]any{
			"role": event.Role,
		},
	})

	return nil
}

package authstate

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type DeleteUserMessage struct {
	UserID string `json:"userId"`

	Actor ActorRef
}

func (e DeleteUserMessage) Type() string { return "admin.user.delete" }

// DeleteUserHandler removes the provider account first and then
// soft-deletes the profile. A missing profile is not an error; the
// provider account is the source of truth for existence.
type DeleteUserHandler struct {
	admin    IdentityAdmin
	profiles ProfileStore
	sink     ActivitySink
	logger   Logger
}

func NewDeleteUserHandler(admin IdentityAdmin, profiles ProfileStore, sink ActivitySink) *DeleteUserHandler {
	return &DeleteUserHandler{
		admin:    admin,
		profiles: profiles,
		sink:     normalizeActivitySink(sink),
		logger:   defLogger{},
	}
}

func (h *DeleteUserHandler) Execute(ctx context.Context, event DeleteUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user deletion",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *DeleteUserHandler) execute(ctx context.Context, event DeleteUserMessage) error {
	if event.UserID == "" {
		return goerrors.New("userId is required", goerrors.CategoryValidation).
			WithTextCode("MISSING_USER_ID")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := h.admin.DeleteUser(ctx, event.UserID); err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not delete provider user")
	}

	if err := h.profiles.DeleteByUserID(ctx, event.UserID); err != nil {
		if !goerrors.IsNotFound(err) {
			h.logger.Warn("profile cleanup after delete failed", "error", err)
		}
	}

	_ = h.sink.Record(ctx, ActivityEvent{
		EventType: ActivityEventUserDeleted,
		Actor:     event.Actor,
		UserID:    event.UserID,
	})

	return nil
}

package authstate

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type GetUserMessage struct {
	UserID     string `json:"userId"`
	OnResponse func(*ProviderUser)
}

func (e GetUserMessage) Type() string { return "admin.user.get" }

type GetUserHandler struct {
	admin IdentityAdmin
}

func NewGetUserHandler(admin IdentityAdmin) *GetUserHandler {
	return &GetUserHandler{admin: admin}
}

func (h *GetUserHandler) Execute(ctx context.Context, event GetUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user lookup",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *GetUserHandler) execute(ctx context.Context, event GetUserMessage) error {
	if event.UserID == "" {
		return goerrors.New("userId is required", goerrors.CategoryValidation).
			WithTextCode("MISSING_USER_ID")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.admin.GetUserByID(ctx, event.UserID)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "provider user lookup failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}

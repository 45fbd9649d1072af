package authstate

import (
	"context"
	"crypto/rand"
	"encoding/base64"

	goerrors "github.com/goliatone/go-errors"
)

type InviteUserMessage struct {
	Email string   `json:"email"`
	Role  UserRole `json:"role"`

	Actor      ActorRef
	OnResponse func(*Profile)
}

func (e InviteUserMessage) Type() string { return "admin.user.invite" }

// InviteUserHandler creates an account with a throwaway password. The
// invitee is expected to go through the provider's recovery flow before
// first login; the password is never shown to anyone.
type InviteUserHandler struct {
	admin    IdentityAdmin
	profiles ProfileStore
	sink     ActivitySink
}

func NewInviteUserHandler(admin IdentityAdmin, profiles ProfileStore, sink ActivitySink) *InviteUserHandler {
	return &InviteUserHandler{
		admin:    admin,
		profiles: profiles,
		sink:     normalizeActivitySink(sink),
	}
}

func (h *InviteUserHandler) Execute(ctx context.Context, event InviteUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user invite",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InviteUserHandler) execute(ctx context.Context, event InviteUserMessage) error {
	if event.Email == "" {
		return goerrors.New("email is required", goerrors.CategoryValidation).
			WithTextCode("MISSING_EMAIL")
	}

	password, err := randomPassword()
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not generate invite password")
	}

	create := NewCreateUserHandler(h.admin, h.profiles, noopActivitySink{})

	var profile *Profile
	err = create.Execute(ctx, CreateUserMessage{
		Email:    event.Email,
		Password: password,
		Role:     CoerceRole(event.Role),
		Actor:    event.Actor,
		OnResponse: func(p *Profile) {
			profile = p
		},
	})
	if err != nil {
		return err
	}

	_ = h.sink.Record(ctx, ActivityEvent{
		EventType: ActivityEventUserInvited,
		Actor:     event.Actor,
		UserID:    profile.ID.String(),
		Metadata: map[string]any{
			"email": event.Email,
			"role":  profile.Role,
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(profile)
	}

	return nil
}

func randomPassword() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

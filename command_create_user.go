package authstate

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

type CreateUserMessage struct {
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Role     UserRole `json:"role"`
	Avatar   string   `json:"avatar"`

	// Actor is the admin performing the operation, for the audit trail.
	Actor      ActorRef
	OnResponse func(*Profile)
}

func (e CreateUserMessage) Type() string { return "admin.user.create" }

// CreateUserHandler provisions a provider account and its matching
// profile record. The profile starts with name set to the email and,
// absent a caller-supplied avatar, a generated one mirroring what the
// resolver would derive.
type CreateUserHandler struct {
	admin    IdentityAdmin
	profiles ProfileStore
	sink     ActivitySink
}

func NewCreateUserHandler(admin IdentityAdmin, profiles ProfileStore, sink ActivitySink) *CreateUserHandler {
	return &CreateUserHandler{
		admin:    admin,
		profiles: profiles,
		sink:     normalizeActivitySink(sink),
	}
}

func (h *CreateUserHandler) Execute(ctx context.Context, event CreateUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user creation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *CreateUserHandler) execute(ctx context.Context, event CreateUserMessage) error {
	if err := validateEmailPassword(event.Email, event.Password); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.admin.CreateUser(ctx, event.Email, event.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create provider user")
	}

	avatar := event.Avatar
	if avatar == "" {
		avatar = DefaultAvatarURL(event.Email)
	}

	profile := &Profile{
		ID:     profileID(user.ID, event.Email),
		Name:   event.Email,
		Email:  event.Email,
		Role:   CoerceRole(event.Role),
		Avatar: avatar,
	}

	if _, err := h.profiles.Upsert(ctx, profile); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create profile")
	}

	h.record(ctx, event.Actor, user.ID, map[string]any{
		"email": event.Email,
		"role":  profile.Role,
	})

	if event.OnResponse != nil {
		event.OnResponse(profile)
	}

	return nil
}

func (h *CreateUserHandler) record(ctx context.Context, actor ActorRef, userID string, metadata map[string]any) {
	_ = h.sink.Record(ctx, ActivityEvent{
		EventType: ActivityEventUserCreated,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	})
}

// profileID keeps the profile primary key aligned with the provider
// account id; providers that don't hand ids back get a deterministic
// one derived from the email.
func profileID(providerID, email string) uuid.UUID {
	if id, err := uuid.Parse(providerID); err == nil {
		return id
	}

	if id, err := hashid.NewUUID(email); err == nil {
		return id
	}

	return uuid.New()
}

func validateEmailPassword(email, password string) error {
	if email == "" {
		return goerrors.New("email is required", goerrors.CategoryValidation).
			WithTextCode("MISSING_EMAIL")
	}

	if password == "" {
		return goerrors.New("password is required", goerrors.CategoryValidation).
			WithTextCode("MISSING_PASSWORD")
	}

	return nil
}

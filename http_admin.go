package authstate

import (
	"encoding/json"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// Admin operation action names. These are the wire-level identifiers
// clients put in the request envelope.
const (
	AdminActionGetUserByID    = "getUserById"
	AdminActionDeleteUser     = "deleteUser"
	AdminActionUpdateUserRole = "updateUserRole"
	AdminActionCreateUser     = "createUser"
	AdminActionInviteUser     = "inviteUser"
)

// AdminOperationRequest is the RPC envelope: one action name plus an
// action-specific payload.
type AdminOperationRequest struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// AdminController is the single privileged boundary. Every operation
// goes through the same admin check before any payload is even parsed;
// there is no per-action authorization.
type AdminController struct {
	Debug    bool
	Logger   Logger
	Store    *Store
	Admin    IdentityAdmin
	Profiles ProfileStore
	Sink     ActivitySink
	Route    string
}

type AdminControllerOption func(*AdminController) *AdminController

func WithAdminStore(store *Store) AdminControllerOption {
	return func(c *AdminController) *AdminController {
		c.Store = store
		return c
	}
}

func WithAdminIdentity(admin IdentityAdmin) AdminControllerOption {
	return func(c *AdminController) *AdminController {
		c.Admin = admin
		return c
	}
}

func WithAdminProfiles(profiles ProfileStore) AdminControllerOption {
	return func(c *AdminController) *AdminController {
		c.Profiles = profiles
		return c
	}
}

func WithAdminActivitySink(sink ActivitySink) AdminControllerOption {
	return func(c *AdminController) *AdminController {
		c.Sink = normalizeActivitySink(sink)
		return c
	}
}

func WithAdminLogger(logger Logger) AdminControllerOption {
	return func(c *AdminController) *AdminController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func NewAdminController(opts ...AdminControllerOption) *AdminController {
	c := &AdminController{
		Logger: defLogger{},
		Sink:   noopActivitySink{},
		Route:  "/admin/operations",
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Store == nil {
		panic("Missing Store in admin controller...")
	}

	if c.Admin == nil {
		panic("Missing IdentityAdmin in admin controller...")
	}

	if c.Profiles == nil {
		panic("Missing ProfileStore in admin controller...")
	}

	return c
}

// RegisterAdminRoutes mounts the privileged operations endpoint.
func RegisterAdminRoutes[T any](app router.Router[T], opts ...AdminControllerOption) {
	controller := NewAdminController(opts...)

	app.Post(controller.Route, controller.Handle).SetName("admin-operations.post")
}

// Handle dispatches one admin operation. The caller's role comes from
// the store snapshot, never from the request payload.
func (a *AdminController) Handle(ctx router.Context) error {
	actor, err := a.requireAdmin()
	if err != nil {
		return a.renderError(ctx, http.StatusForbidden, err)
	}

	req := new(AdminOperationRequest)
	if err := ctx.Bind(req); err != nil {
		return a.renderError(ctx, http.StatusBadRequest,
			goerrors.Wrap(err, goerrors.CategoryBadInput, "could not parse operation request"))
	}

	if a.Debug {
		a.Logger.Debug("admin operation: %s %s", req.Action, print.MaybePrettyJSON(req.Data))
	}

	result, err := a.dispatch(ctx, actor, req)
	if err != nil {
		a.Logger.Error("admin operation failed", "action", req.Action, "error", err)
		return a.renderError(ctx, http.StatusBadRequest, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"data": result,
	})
}

func (a *AdminController) dispatch(ctx router.Context, actor ActorRef, req *AdminOperationRequest) (any, error) {
	switch req.Action {
	case AdminActionGetUserByID:
		return a.getUserByID(ctx, req.Data)
	case AdminActionDeleteUser:
		return a.deleteUser(ctx, actor, req.Data)
	case AdminActionUpdateUserRole:
		return a.updateUserRole(ctx, actor, req.Data)
	case AdminActionCreateUser:
		return a.createUser(ctx, actor, req.Data)
	case AdminActionInviteUser:
		return a.inviteUser(ctx, actor, req.Data)
	default:
		return nil, goerrors.New("invalid action", goerrors.CategoryBadInput).
			WithTextCode("INVALID_ACTION").
			WithMetadata(map[string]any{"action": req.Action})
	}
}

// requireAdmin resolves the acting user from local state and verifies
// the admin role. An unauthenticated or non-admin caller gets the same
// error either way.
func (a *AdminController) requireAdmin() (ActorRef, error) {
	state := a.Store.Current()

	if !state.IsAuthenticated || state.User == nil {
		return ActorRef{}, ErrUnauthorizedAdminOperation
	}

	if !Checks(state.User.Role).CanManageUsers() {
		return ActorRef{}, ErrUnauthorizedAdminOperation
	}

	return ActorRef{ID: state.User.ID, Type: "admin"}, nil
}

func (a *AdminController) getUserByID(ctx router.Context, data json.RawMessage) (any, error) {
	msg := GetUserMessage{}
	if err := decodePayload(data, &msg); err != nil {
		return nil, err
	}

	var user *ProviderUser
	msg.OnResponse = func(u *ProviderUser) { user = u }

	handler := NewGetUserHandler(a.Admin)
	if err := handler.Execute(ctx.Context(), msg); err != nil {
		return nil, err
	}

	return map[string]any{"user": user}, nil
}

func (a *AdminController) deleteUser(ctx router.Context, actor ActorRef, data json.RawMessage) (any, error) {
	msg := DeleteUserMessage{}
	if err := decodePayload(data, &msg); err != nil {
		return nil, err
	}
	msg.Actor = actor

	handler := NewDeleteUserHandler(a.Admin, a.Profiles, a.Sink)
	if err := handler.Execute(ctx.Context(), msg); err != nil {
		return nil, err
	}

	return map[string]any{"success": true}, nil
}

func (a *AdminController) updateUserRole(ctx router.Context, actor ActorRef, data json.RawMessage) (any, error) {
	msg := UpdateUserRoleMessage{}
	if err := decodePayload(data, &msg); err != nil {
		return nil, err
	}
	msg.Actor = actor

	handler := NewUpdateUserRoleHandler(a.Profiles, a.Sink)
	if err := handler.Execute(ctx.Context(), msg); err != nil {
		return nil, err
	}

	return map[string]any{"success": true}, nil
}

func (a *AdminController) createUser(ctx router.Context, actor ActorRef, data json.RawMessage) (any, error) {
	msg := CreateUserMessage{}
	if err := decodePayload(data, &msg); err != nil {
		return nil, err
	}
	msg.Actor = actor

	var profile *Profile
	msg.OnResponse = func(p *Profile) { profile = p }

	handler := NewCreateUserHandler(a.Admin, a.Profiles, a.Sink)
	if err := handler.Execute(ctx.Context(), msg); err != nil {
		return nil, err
	}

	return map[string]any{"profile": profile}, nil
}

func (a *AdminController) inviteUser(ctx router.Context, actor ActorRef, data json.RawMessage) (any, error) {
	msg := InviteUserMessage{}
	if err := decodePayload(data, &msg); err != nil {
		return nil, err
	}
	msg.Actor = actor

	var profile *Profile
	msg.OnResponse = func(p *Profile) { profile = p }

	handler := NewInviteUserHandler(a.Admin, a.Profiles, a.Sink)
	if err := handler.Execute(ctx.Context(), msg); err != nil {
		return nil, err
	}

	return map[string]any{"profile": profile}, nil
}

func (a *AdminController) renderError(ctx router.Context, status int, err error) error {
	message := err.Error()

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		message = richErr.Message
	}

	return ctx.JSON(status, map[string]any{
		"error": message,
	})
}

func decodePayload(data json.RawMessage, out any) error {
	if len(data) == 0 {
		return goerrors.New("missing operation data", goerrors.CategoryBadInput).
			WithTextCode("MISSING_DATA")
	}

	if err := json.Unmarshal(data, out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "could not decode operation data")
	}

	return nil
}

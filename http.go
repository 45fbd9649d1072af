package authstate

import (
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RouteGuard gates HTTP routes on the Store's current snapshot. While
// the snapshot is loading it renders a placeholder instead of deciding;
// once settled it either forwards the request or redirects to login with
// the rejected route remembered in a cookie.
type RouteGuard struct {
	store            *Store
	cfg              Config
	Logger           Logger
	ContextKey       string
	LoadingHandler   func(c router.Context) error
	AuthErrorHandler func(c router.Context, err error) error
	ErrorHandler     func(c router.Context, err error) error
}

func NewRouteGuard(store *Store, cfg Config) (*RouteGuard, error) {
	if store == nil {
		return nil, errors.New("route guard requires a store", errors.CategoryBadInput)
	}

	if cfg == nil {
		cfg = SimpleConfig{}
	}

	g := &RouteGuard{
		store:      store,
		cfg:        cfg,
		Logger:     defLogger{},
		ContextKey: "current_user",
	}

	g.LoadingHandler = g.defaultLoadingHandler
	g.ErrorHandler = g.defaultErrHandler
	g.AuthErrorHandler = g.defaultAuthErrHandler

	return g, nil
}

// Protected returns middleware that only lets authenticated requests
// through. An in-flight session check never produces a redirect; the
// request gets the loading placeholder and the client retries.
func (g *RouteGuard) Protected() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			state := g.store.Current()

			if state.IsLoading {
				return g.LoadingHandler(c)
			}

			if !state.IsAuthenticated {
				return g.AuthErrorHandler(c, ErrUnableToFindSession)
			}

			c.Locals(g.ContextKey, state.User)
			c.SetContext(WithUserContext(c.Context(), state.User))
			if sess := g.store.Session(); sess != nil {
				c.SetContext(WithSessionContext(c.Context(), sess))
			}

			return hf(c)
		}
	}
}

// RequireRole layers a minimum-role check on top of Protected. Use it
// after Protected so the user is already in the context.
func (g *RouteGuard) RequireRole(role UserRole) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			user, ok := UserFromRouter(c, g.ContextKey)
			if !ok || !Checks(user.Role).IsAtLeast(role) {
				return g.ErrorHandler(c, ErrUnauthorizedAdminOperation.Clone().WithMetadata(map[string]any{
					"required_role": role,
				}))
			}
			return hf(c)
		}
	}
}

// RedirectAuthenticated sends already-authenticated users away from
// entry pages like /login, honoring any remembered rejected route.
func (g *RouteGuard) RedirectAuthenticated() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			state := g.store.Current()

			if state.IsLoading {
				return g.LoadingHandler(c)
			}

			if state.IsAuthenticated {
				return c.Redirect(g.GetRedirect(c, g.cfg.GetRejectedRouteDefault()), http.StatusFound)
			}

			return hf(c)
		}
	}
}

func (g *RouteGuard) GetRedirect(ctx router.Context, def ...string) string {
	rejectedRoute := g.cfg.GetRejectedRouteKey()
	r := ctx.Cookies(rejectedRoute)
	if r == "" {
		return def[0]
	}
	g.cookieDel(ctx, rejectedRoute)
	return r
}

func (g *RouteGuard) GetRedirectOrDefault(ctx router.Context) string {
	rejectedRoute := g.cfg.GetRejectedRouteKey()
	refererHeader := string(ctx.Referer())

	r := ctx.Cookies(rejectedRoute, refererHeader)
	if r == "" {
		r = g.cfg.GetRejectedRouteDefault()
	}
	g.cookieDel(ctx, rejectedRoute)
	return r
}

func (g *RouteGuard) SetRedirect(ctx router.Context) {
	rejectedRoute := g.cfg.GetRejectedRouteKey()

	g.Logger.Info("Setting redirect cookie", "key", rejectedRoute, "path", ctx.OriginalURL())

	ctx.Cookie(&router.Cookie{
		Name:     rejectedRoute,
		Value:    ctx.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (g *RouteGuard) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (g *RouteGuard) defaultLoadingHandler(c router.Context) error {
	c.SetHeader("Retry-After", "1")
	return c.Status(http.StatusServiceUnavailable).Render("auth/loading", router.ViewContext{
		"message": "Checking your session...",
	})
}

func (g *RouteGuard) defaultAuthErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "An unexpected authentication error").
			WithCode(errors.CodeUnauthorized)
	}

	g.Logger.Info(
		"Authentication error, redirecting to login",
		"error", richErr.Message,
		"text_code", richErr.TextCode,
		"path", c.OriginalURL(),
	)

	g.SetRedirect(c)

	statusCode := http.StatusSeeOther
	if c.Method() == string(router.GET) {
		statusCode = http.StatusFound
	}
	return c.Redirect(g.cfg.GetLoginRoute(), statusCode)
}

func (g *RouteGuard) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	g.Logger.Info(
		"Middleware error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	switch richErr.Category {
	case errors.CategoryAuth:
		return g.AuthErrorHandler(c, richErr)
	case errors.CategoryAuthz:
		return c.Status(http.StatusForbidden).Render("errors/403", router.ViewContext{
			"error": richErr,
		})
	default:
		return c.Status(richErr.Code).Render("errors/500", router.ViewContext{
			"error": richErr,
		})
	}
}

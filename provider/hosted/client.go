package hosted

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	authstate "github.com/printworks/go-authstate"
)

// Client implements authstate.IdentityClient and authstate.IdentityAdmin
// against the hosted service. It keeps the active session in memory and
// notifies subscribers in emit order on the caller's goroutine.
type Client struct {
	config Config
	http   *http.Client

	mu      sync.Mutex
	session *authstate.Session

	subMu   sync.Mutex
	subs    map[int]func(authstate.Change)
	nextSub int
}

var (
	_ authstate.IdentityClient = (*Client)(nil)
	_ authstate.IdentityAdmin  = (*Client)(nil)
)

// NewClient creates a hosted identity client.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &Client{
		config: cfg,
		http:   cfg.httpClient(),
		subs:   map[int]func(authstate.Change){},
	}, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
}

type errorResponse struct {
	Message     string `json:"msg"`
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

func (e errorResponse) text() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Description != "" {
		return e.Description
	}
	return e.Error
}

// CurrentSession returns the held session. A session within the refresh
// margin of expiry gets refreshed first; if the refresh fails the stale
// session is dropped and nil is returned.
func (c *Client) CurrentSession(ctx context.Context) (*authstate.Session, error) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil {
		return nil, nil
	}

	stale := time.Now().Add(c.config.refreshMargin())
	if !session.Expired(stale) {
		return session, nil
	}

	refreshed, err := c.refresh(ctx, session.RefreshToken)
	if err != nil {
		c.mu.Lock()
		c.session = nil
		c.mu.Unlock()
		return nil, nil
	}

	return refreshed, nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*authstate.Session, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}

	res := tokenResponse{}
	err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", c.config.APIKey, body, &res)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "sign in failed").
			WithCode(goerrors.CodeUnauthorized)
	}

	session := c.sessionFromToken(res)

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	c.emit(authstate.Change{Kind: authstate.ChangeSignedIn, Session: session})

	return session, nil
}

// SignOut posts to the logout endpoint and drops the local session. The
// signed_out change is emitted before any server error is returned, so
// subscribers always observe the sign-out.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	c.session = nil
	c.mu.Unlock()

	c.emit(authstate.Change{Kind: authstate.ChangeSignedOut})

	if session == nil {
		return nil
	}

	err := c.do(ctx, http.MethodPost, "/auth/v1/logout", session.AccessToken, nil, nil)
	if err != nil {
		signOutErr := authstate.ErrSignOutFailed.Clone()
		signOutErr.Source = err
		return signOutErr
	}

	return nil
}

func (c *Client) Subscribe(fn func(authstate.Change)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Client) emit(change authstate.Change) {
	c.subMu.Lock()
	listeners := make([]func(authstate.Change), 0, len(c.subs))
	for _, fn := range c.subs {
		listeners = append(listeners, fn)
	}
	c.subMu.Unlock()

	for _, fn := range listeners {
		fn(change)
	}
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (*authstate.Session, error) {
	body := map[string]string{
		"refresh_token": refreshToken,
	}

	res := tokenResponse{}
	err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", c.config.APIKey, body, &res)
	if err != nil {
		return nil, err
	}

	session := c.sessionFromToken(res)

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	c.emit(authstate.Change{Kind: authstate.ChangeTokenRefreshed, Session: session})

	return session, nil
}

type adminUserResponse struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at"`
	CreatedAt        *time.Time `json:"created_at"`
}

func (u adminUserResponse) providerUser() *authstate.ProviderUser {
	return &authstate.ProviderUser{
		ID:        u.ID,
		Email:     u.Email,
		Confirmed: u.EmailConfirmedAt != nil,
		CreatedAt: u.CreatedAt,
	}
}

// GetUserByID implements authstate.IdentityAdmin.
func (c *Client) GetUserByID(ctx context.Context, id string) (*authstate.ProviderUser, error) {
	if err := c.requireServiceKey(); err != nil {
		return nil, err
	}

	res := adminUserResponse{}
	err := c.do(ctx, http.MethodGet, "/auth/v1/admin/users/"+id, c.config.ServiceKey, nil, &res)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, authstate.ErrProviderUserNotFound.Clone().
				WithMetadata(map[string]any{"user_id": id})
		}
		return nil, err
	}

	return res.providerUser(), nil
}

// CreateUser implements authstate.IdentityAdmin. Accounts are created
// pre-confirmed; the invite flow relies on password recovery, not email
// confirmation.
func (c *Client) CreateUser(ctx context.Context, email, password string) (*authstate.ProviderUser, error) {
	if err := c.requireServiceKey(); err != nil {
		return nil, err
	}

	body := map[string]any{
		"email":         email,
		"password":      password,
		"email_confirm": true,
	}

	res := adminUserResponse{}
	err := c.do(ctx, http.MethodPost, "/auth/v1/admin/users", c.config.ServiceKey, body, &res)
	if err != nil {
		return nil, err
	}

	return res.providerUser(), nil
}

// DeleteUser implements authstate.IdentityAdmin.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	if err := c.requireServiceKey(); err != nil {
		return err
	}

	err := c.do(ctx, http.MethodDelete, "/auth/v1/admin/users/"+id, c.config.ServiceKey, nil, nil)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return authstate.ErrProviderUserNotFound.Clone().
				WithMetadata(map[string]any{"user_id": id})
		}
		return err
	}

	return nil
}

func (c *Client) requireServiceKey() error {
	if c.config.ServiceKey == "" {
		return goerrors.New("service key not configured", goerrors.CategoryAuthz).
			WithTextCode("MISSING_SERVICE_KEY").
			WithCode(goerrors.CodeForbidden)
	}
	return nil
}

func (c *Client) sessionFromToken(res tokenResponse) *authstate.Session {
	issuedAt := time.Now()
	expiresAt := issuedAt.Add(time.Duration(res.ExpiresIn) * time.Second)

	return &authstate.Session{
		UserID:         res.User.ID,
		Email:          res.User.Email,
		AccessToken:    res.AccessToken,
		RefreshToken:   res.RefreshToken,
		IssuedAt:       &issuedAt,
		ExpirationDate: &expiresAt,
		Data: map[string]any{
			"role": res.User.Role,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not encode request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.baseURL()+path, reader)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not build request")
	}

	req.Header.Set("apikey", c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "identity service unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "could not read response")
	}

	if resp.StatusCode >= 400 {
		apiErr := errorResponse{}
		_ = json.Unmarshal(raw, &apiErr)

		message := apiErr.text()
		if message == "" {
			message = fmt.Sprintf("identity service returned %d", resp.StatusCode)
		}

		category := goerrors.CategoryOperation
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
			category = goerrors.CategoryAuth
		}

		return goerrors.New(message, category).
			WithCode(resp.StatusCode).
			WithMetadata(map[string]any{
				"status": resp.StatusCode,
				"path":   path,
			})
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "could not decode response")
		}
	}

	return nil
}

func isStatus(err error, status int) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.Code == status
}

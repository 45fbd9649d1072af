package authstate

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
)

// LocalIdentityClient is an in-process identity provider for development
// and tests. It keeps accounts in memory, mints HS256 tokens, and
// delivers changes to subscribers in call order on the caller's
// goroutine. It implements both IdentityClient and IdentityAdmin.
type LocalIdentityClient struct {
	signingKey []byte
	tokenTTL   time.Duration
	logger     Logger

	mu       sync.Mutex
	accounts map[string]*localAccount // keyed by email
	session  *Session

	subMu   sync.Mutex
	subs    map[int]func(Change)
	nextSub int
}

type localAccount struct {
	ID           string
	Email        string
	PasswordHash string
	Role         UserRole
	Confirmed    bool
	CreatedAt    time.Time
}

var (
	_ IdentityClient = (*LocalIdentityClient)(nil)
	_ IdentityAdmin  = (*LocalIdentityClient)(nil)
)

func NewLocalIdentityClient(signingKey string) *LocalIdentityClient {
	return &LocalIdentityClient{
		signingKey: []byte(signingKey),
		tokenTTL:   time.Hour,
		logger:     defLogger{},
		accounts:   map[string]*localAccount{},
		subs:       map[int]func(Change){},
	}
}

func (c *LocalIdentityClient) WithTokenTTL(ttl time.Duration) *LocalIdentityClient {
	if ttl > 0 {
		c.tokenTTL = ttl
	}
	return c
}

func (c *LocalIdentityClient) WithLogger(logger Logger) *LocalIdentityClient {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// RegisterAccount seeds an account. Intended for bootstrap and tests;
// runtime account creation goes through the IdentityAdmin surface.
func (c *LocalIdentityClient) RegisterAccount(email, password string, role UserRole) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	id, err := hashid.NewUUID(email)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not derive account id")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.accounts[email]; ok {
		return goerrors.New("account already exists", goerrors.CategoryConflict).
			WithTextCode("ACCOUNT_EXISTS").
			WithMetadata(map[string]any{"email": email})
	}

	c.accounts[email] = &localAccount{
		ID:           id.String(),
		Email:        email,
		PasswordHash: hash,
		Role:         CoerceRole(role),
		Confirmed:    true,
		CreatedAt:    time.Now(),
	}

	return nil
}

func (c *LocalIdentityClient) CurrentSession(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil && c.session.Expired(time.Now()) {
		c.session = nil
	}

	return c.session, nil
}

func (c *LocalIdentityClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	c.mu.Lock()
	account, ok := c.accounts[email]
	c.mu.Unlock()

	if !ok {
		return nil, ErrMismatchedHashAndPassword
	}

	if err := ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		return nil, err
	}

	session, err := c.mintSession(account)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	c.emit(Change{Kind: ChangeSignedIn, Session: session})

	return session, nil
}

// SignOut clears the held session and always emits a signed_out change,
// even when no session was held. Local state consumers rely on that.
func (c *LocalIdentityClient) SignOut(ctx context.Context) error {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()

	c.emit(Change{Kind: ChangeSignedOut})
	return nil
}

func (c *LocalIdentityClient) Subscribe(fn func(Change)) func() {
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

// RefreshSession re-mints the current session's token and emits a
// token_refreshed change. No-op without a session.
func (c *LocalIdentityClient) RefreshSession(ctx context.Context) error {
	c.mu.Lock()
	current := c.session
	c.mu.Unlock()

	if current == nil {
		return ErrUnableToFindSession
	}

	account, err := c.findByID(current.UserID)
	if err != nil {
		return err
	}

	session, err := c.mintSession(account)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	c.emit(Change{Kind: ChangeTokenRefreshed, Session: session})
	return nil
}

func (c *LocalIdentityClient) GetUserByID(ctx context.Context, id string) (*ProviderUser, error) {
	account, err := c.findByID(id)
	if err != nil {
		return nil, err
	}
	return providerUser(account), nil
}

func (c *LocalIdentityClient) CreateUser(ctx context.Context, email, password string) (*ProviderUser, error) {
	if err := c.RegisterAccount(email, password, RoleViewer); err != nil {
		return nil, err
	}

	c.mu.Lock()
	account := c.accounts[email]
	c.mu.Unlock()

	return providerUser(account), nil
}

func (c *LocalIdentityClient) DeleteUser(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for email, account := range c.accounts {
		if account.ID == id {
			delete(c.accounts, email)
			return nil
		}
	}

	return ErrProviderUserNotFound.Clone().WithMetadata(map[string]any{"user_id": id})
}

func (c *LocalIdentityClient) findByID(id string) (*localAccount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, account := range c.accounts {
		if account.ID == id {
			return account, nil
		}
	}

	return nil, ErrProviderUserNotFound.Clone().WithMetadata(map[string]any{"user_id": id})
}

func (c *LocalIdentityClient) mintSession(account *localAccount) (*Session, error) {
	issuedAt := time.Now()
	expiresAt := issuedAt.Add(c.tokenTTL)

	claims := jwt.MapClaims{
		"sub":   account.ID,
		"email": account.Email,
		"role":  string(account.Role),
		"iat":   issuedAt.Unix(),
		"exp":   expiresAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.signingKey)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not sign token")
	}

	return &Session{
		UserID:         account.ID,
		Email:          account.Email,
		AccessToken:    signed,
		RefreshToken:   RandomPasswordHash(),
		IssuedAt:       &issuedAt,
		ExpirationDate: &expiresAt,
		Data: map[string]any{
			"role": string(account.Role),
		},
	}, nil
}

func (c *LocalIdentityClient) emit(change Change) {
	c.subMu.Lock()
	listeners := make([]func(Change), 0, len(c.subs))
	for _, fn := range c.subs {
		listeners = append(listeners, fn)
	}
	c.subMu.Unlock()

	for _, fn := range listeners {
		fn(change)
	}
}

func providerUser(account *localAccount) *ProviderUser {
	createdAt := account.CreatedAt
	return &ProviderUser{
		ID:        account.ID,
		Email:     account.Email,
		Confirmed: account.Confirmed,
		CreatedAt: &createdAt,
	}
}

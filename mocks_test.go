package authstate_test

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	authstate "github.com/printworks/go-authstate"
)

// fakeIdentity implements authstate.IdentityClient with scriptable
// behavior. Change emission is driven explicitly by tests.
type fakeIdentity struct {
	mu           sync.Mutex
	session      *authstate.Session
	currentErr   error
	signIn       func(email, password string) (*authstate.Session, error)
	signOutErr   error
	signOutCalls int

	subMu   sync.Mutex
	subs    map[int]func(authstate.Change)
	nextSub int
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{subs: map[int]func(authstate.Change){}}
}

func (f *fakeIdentity) CurrentSession(ctx context.Context) (*authstate.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session, f.currentErr
}

func (f *fakeIdentity) SignInWithPassword(ctx context.Context, email, password string) (*authstate.Session, error) {
	f.mu.Lock()
	signIn := f.signIn
	f.mu.Unlock()

	if signIn == nil {
		return nil, authstate.ErrMismatchedHashAndPassword
	}
	return signIn(email, password)
}

func (f *fakeIdentity) SignOut(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOutCalls++
	return f.signOutErr
}

func (f *fakeIdentity) Subscribe(fn func(authstate.Change)) func() {
	f.subMu.Lock()
	defer f.subMu.Unlock()

	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn

	return func() {
		f.subMu.Lock()
		defer f.subMu.Unlock()
		delete(f.subs, id)
	}
}

func (f *fakeIdentity) emit(change authstate.Change) {
	f.subMu.Lock()
	listeners := make([]func(authstate.Change), 0, len(f.subs))
	for _, fn := range f.subs {
		listeners = append(listeners, fn)
	}
	f.subMu.Unlock()

	for _, fn := range listeners {
		fn(change)
	}
}

func (f *fakeIdentity) signOuts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signOutCalls
}

// fakeProfiles implements authstate.ProfileStore with function hooks.
// Nil hooks default to not-found lookups and echoing writes.
type fakeProfiles struct {
	mu             sync.Mutex
	getFunc        func(ctx context.Context, id string) (*authstate.Profile, error)
	upsertFunc     func(ctx context.Context, record *authstate.Profile) (*authstate.Profile, error)
	updateRoleFunc func(ctx context.Context, id string, role authstate.UserRole) error
	touchErr       error
	deleteErr      error

	upserts []*authstate.Profile
	touches []string
	deletes []string
}

func notFoundErr(id string) error {
	return goerrors.New("profile not found", goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound).
		WithMetadata(map[string]any{"profile_id": id})
}

func (f *fakeProfiles) GetByUserID(ctx context.Context, id string) (*authstate.Profile, error) {
	f.mu.Lock()
	get := f.getFunc
	f.mu.Unlock()

	if get == nil {
		return nil, notFoundErr(id)
	}
	return get(ctx, id)
}

func (f *fakeProfiles) Upsert(ctx context.Context, record *authstate.Profile, criteria ...repository.UpdateCriteria) (*authstate.Profile, error) {
	f.mu.Lock()
	upsert := f.upsertFunc
	f.upserts = append(f.upserts, record)
	f.mu.Unlock()

	if upsert == nil {
		return record, nil
	}
	return upsert(ctx, record)
}

func (f *fakeProfiles) UpdateRole(ctx context.Context, id string, role authstate.UserRole) error {
	f.mu.Lock()
	update := f.updateRoleFunc
	f.mu.Unlock()

	if update == nil {
		return nil
	}
	return update(ctx, id, role)
}

func (f *fakeProfiles) Touch(ctx context.Context, id string, seenAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touches = append(f.touches, id)
	return f.touchErr
}

func (f *fakeProfiles) DeleteByUserID(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	return f.deleteErr
}

func (f *fakeProfiles) upsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserts)
}

func (f *fakeProfiles) touchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.touches)
}

// recordingNotifier captures user-facing notifications.
type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
	infos     []string
}

func (n *recordingNotifier) Success(ctx context.Context, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, msg)
}

func (n *recordingNotifier) Error(ctx context.Context, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

func (n *recordingNotifier) Info(ctx context.Context, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.infos = append(n.infos, msg)
}

// recordingSink captures activity events.
type recordingSink struct {
	mu     sync.Mutex
	events []authstate.ActivityEvent
}

func (s *recordingSink) Record(ctx context.Context, event authstate.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) byType(t authstate.ActivityEventType) []authstate.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []authstate.ActivityEvent
	for _, e := range s.events {
		if e.EventType == t {
			out = append(out, e)
		}
	}
	return out
}

// stubBase aliases the router context interface so stubContext can embed
// it without the embedded field name colliding with the Context method.
type stubBase = router.Context

// stubContext is a minimal router.Context for handler tests. It embeds
// the interface so unimplemented methods panic loudly if reached.
type stubContext struct {
	stubBase

	ctx     context.Context
	method  string
	url     string
	referer string
	locals  map[any]any
	cookies map[string]string

	status      int
	headers     map[string]string
	setCookies  []*router.Cookie
	rendered    string
	renderData  any
	redirectTo  string
	redirectVia int
	jsonStatus  int
	jsonBody    any
	bindFunc    func(out any) error
}

func newStubContext() *stubContext {
	return &stubContext{
		ctx:     context.Background(),
		method:  "GET",
		url:     "/protected",
		locals:  map[any]any{},
		cookies: map[string]string{},
		headers: map[string]string{},
	}
}

func (s *stubContext) Context() context.Context       { return s.ctx }
func (s *stubContext) SetContext(ctx context.Context) { s.ctx = ctx }
func (s *stubContext) Method() string                 { return s.method }
func (s *stubContext) OriginalURL() string            { return s.url }
func (s *stubContext) Referer() string                { return s.referer }

func (s *stubContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		s.locals[key] = value[0]
		return nil
	}
	return s.locals[key]
}

func (s *stubContext) Cookies(key string, defaultValue ...string) string {
	if v, ok := s.cookies[key]; ok && v != "" {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (s *stubContext) Cookie(cookie *router.Cookie) {
	s.setCookies = append(s.setCookies, cookie)
	if cookie.Expires.Before(time.Now()) {
		delete(s.cookies, cookie.Name)
		return
	}
	s.cookies[cookie.Name] = cookie.Value
}

func (s *stubContext) Status(code int) router.Context {
	s.status = code
	return s
}

func (s *stubContext) SetHeader(key, val string) router.Context {
	s.headers[key] = val
	return s
}

func (s *stubContext) Render(name string, bind any, layout ...string) error {
	s.rendered = name
	s.renderData = bind
	return nil
}

func (s *stubContext) Redirect(path string, status ...int) error {
	s.redirectTo = path
	if len(status) > 0 {
		s.redirectVia = status[0]
	}
	return nil
}

func (s *stubContext) JSON(code int, val any) error {
	s.jsonStatus = code
	s.jsonBody = val
	return nil
}

func (s *stubContext) Bind(out any) error {
	if s.bindFunc == nil {
		return nil
	}
	return s.bindFunc(out)
}

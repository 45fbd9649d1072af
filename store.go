package authstate

import (
	"context"
	"sync"
)

// Store owns the application's AuthState: it is the single writer, every
// other component holds a read/subscribe relationship. Provider change
// events are reduced sequentially by one worker goroutine; sign-outs are
// applied inline so a user never observes stale authenticated state after
// an explicit logout.
type Store struct {
	identity IdentityClient
	resolver *ProfileResolver
	notifier Notifier
	sink     ActivitySink
	logger   Logger

	mu      sync.RWMutex
	state   AuthState
	session *Session
	// epoch tags each resolution with the session swap that started it;
	// commits whose epoch no longer matches are discarded, which is what
	// keeps late completions from overwriting newer state.
	epoch uint64
	// resets counts inline sign-out clears. Queued changes are stamped
	// with the count at enqueue time; the worker drops any change that
	// was enqueued before the latest clear, since the sign-out arrived
	// after it and wins.
	resets uint64

	changes chan queuedChange
	done    chan struct{}
	unsub   func()
	closeMu sync.Mutex
	closed  bool
	baseCtx context.Context
	wg      sync.WaitGroup

	subMu   sync.Mutex
	subs    map[int]func(AuthState)
	nextSub int
}

// NewStore returns a Store in its loading state. Call Start to run the
// initial session check and begin consuming provider changes.
func NewStore(identity IdentityClient, resolver *ProfileResolver) *Store {
	return &Store{
		identity: identity,
		resolver: resolver,
		notifier: noopNotifier{},
		sink:     noopActivitySink{},
		logger:   defLogger{},
		state:    AuthState{IsLoading: true},
		changes:  make(chan queuedChange, 16),
		done:     make(chan struct{}),
		subs:     map[int]func(AuthState){},
	}
}

func (s *Store) WithLogger(logger Logger) *Store {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithNotifier configures the user-visible notification channel.
func (s *Store) WithNotifier(n Notifier) *Store {
	s.notifier = normalizeNotifier(n)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Store) WithActivitySink(sink ActivitySink) *Store {
	s.sink = normalizeActivitySink(sink)
	return s
}

// Start registers the provider subscription, runs the initial session
// check, and launches the change worker. The subscription is registered
// before the initial check so no notification is dropped; anything that
// arrives while the check runs is queued behind it.
func (s *Store) Start(ctx context.Context) error {
	s.baseCtx = ctx
	s.unsub = s.identity.Subscribe(s.dispatch)

	session, err := s.identity.CurrentSession(ctx)
	if err != nil {
		s.logger.Warn("initial session check failed", "error", err)
	}

	if session == nil {
		s.clearSession()
	} else {
		s.resolveInto(ctx, session)
	}

	s.wg.Add(1)
	go s.run(ctx)

	return nil
}

// Close stops the worker and detaches from the provider. Safe to call
// more than once.
func (s *Store) Close() {
	s.closeMu.Lock()
	if !s.closed {
		s.closed = true
		if s.unsub != nil {
			s.unsub()
		}
		close(s.done)
	}
	s.closeMu.Unlock()
	s.wg.Wait()
}

// Current returns the present snapshot. Readers never observe a
// half-updated tuple; the whole value is replaced atomically.
func (s *Store) Current() AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Session returns the credential currently held, or nil.
func (s *Store) Session() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Subscribe registers a snapshot listener and returns an unsubscribe
// function. Listeners run synchronously on the mutating goroutine; keep
// them cheap.
func (s *Store) Subscribe(fn func(AuthState)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

// Apply feeds a change through the same path as provider notifications.
// Exposed for provider adapters that deliver changes out-of-band.
func (s *Store) Apply(change Change) {
	s.dispatch(change)
}

// Login exchanges credentials for a session and resolves the profile.
// Provider rejections surface as ErrInvalidCredentials with the provider
// message attached; local state is untouched on failure.
func (s *Store) Login(ctx context.Context, email, password string) error {
	s.beginLoading()

	session, err := s.identity.SignInWithPassword(ctx, email, password)
	if err != nil {
		s.endLoading()
		s.notifier.Error(ctx, "Login failed. Please check your credentials.")
		s.record(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": email,
			"error":      err.Error(),
		})

		loginErr := ErrInvalidCredentials.Clone()
		loginErr.Source = err
		return loginErr.WithMetadata(map[string]any{"provider_message": err.Error()})
	}

	s.resolveInto(ctx, session)

	// Best-effort reconciliation; must not block or fail the login.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.resolver.RecordLogin(context.WithoutCancel(ctx), session.UserID)
	}()

	s.notifier.Success(ctx, "Login successful")
	s.record(ctx, ActivityEventLoginSuccess, ActorRef{ID: session.UserID, Type: "user"}, session.UserID, map[string]any{
		"identifier": email,
	})

	return nil
}

// Logout is fire-and-forget: it requests provider-side termination and
// lets the resulting signed_out change clear local state. A provider
// failure becomes a notification and never resurrects cleared state.
// Calling it while already unauthenticated is harmless.
func (s *Store) Logout(ctx context.Context) {
	userID := ""
	if sess := s.Session(); sess != nil {
		userID = sess.UserID
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx := context.WithoutCancel(ctx)
		if err := s.identity.SignOut(ctx); err != nil {
			s.logger.Warn("provider sign out failed", "error", err)
			s.notifier.Error(ctx, "Sign out did not complete cleanly.")
		} else {
			s.notifier.Info(ctx, "Logged out successfully")
		}

		s.record(ctx, ActivityEventSignOut, ActorRef{ID: userID, Type: "user"}, userID, nil)
	}()
}

// queuedChange carries a change through the worker queue together with
// the reset count at enqueue time, so an inline sign-out can invalidate
// everything that was already waiting.
type queuedChange struct {
	change Change
	resets uint64
}

// dispatch is the subscription entry point. Sign-outs clear state inline,
// synchronously, without waiting behind queued resolutions; everything
// else is ordered through the worker.
func (s *Store) dispatch(change Change) {
	if change.clearsSession() {
		s.clearAndInvalidate()
		return
	}

	if change.Kind == ChangeSignedIn && s.Session().Same(change.Session) {
		// Provider echo of a session Login already resolved.
		return
	}

	s.mu.RLock()
	resets := s.resets
	s.mu.RUnlock()

	select {
	case s.changes <- queuedChange{change: change, resets: resets}:
	case <-s.done:
	}
}

func (s *Store) run(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case queued := <-s.changes:
			s.mu.RLock()
			stale := queued.resets != s.resets
			s.mu.RUnlock()

			if stale {
				// A sign-out cleared state while this change waited;
				// the clear is the later event and wins.
				s.logger.Debug("dropping change queued before sign-out", "kind", queued.change.Kind)
				continue
			}

			s.resolveInto(ctx, queued.change.Session)
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// resolveInto swaps the held session and resolves it into a user. The
// commit is epoch-guarded: if a sign-out or a newer swap happened while
// the resolution ran, the result is discarded.
func (s *Store) resolveInto(ctx context.Context, session *Session) {
	if session == nil {
		s.clearSession()
		return
	}

	epoch := s.swapSession(session)
	user := s.resolver.Resolve(ctx, session)
	s.commit(epoch, session, user)
}

func (s *Store) swapSession(session *Session) uint64 {
	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	s.session = session
	s.state = AuthState{
		User:            s.state.User,
		IsLoading:       true,
		IsAuthenticated: s.state.IsAuthenticated,
	}
	s.mu.Unlock()

	s.publish()
	return epoch
}

func (s *Store) commit(epoch uint64, session *Session, user *AuthenticatedUser) {
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		s.logger.Debug("discarding stale resolution", "epoch", epoch)
		return
	}
	s.state = newAuthState(user, session, false)
	s.mu.Unlock()

	s.publish()
}

func (s *Store) clearSession() {
	s.mu.Lock()
	s.epoch++
	s.session = nil
	s.state = newAuthState(nil, nil, false)
	s.mu.Unlock()

	s.publish()
}

// clearAndInvalidate applies an inline sign-out: it clears state and
// drops every change already sitting in the queue, all of which the
// sign-out jumped. Clears that ride the queue itself (a nil-session
// change, the initial check) use clearSession and leave the queue
// alone, since anything behind them arrived later and still wins.
func (s *Store) clearAndInvalidate() {
	s.mu.Lock()
	s.epoch++
	s.resets++
	s.session = nil
	s.state = newAuthState(nil, nil, false)
	s.mu.Unlock()

	s.publish()
}

func (s *Store) beginLoading() {
	s.mu.Lock()
	s.state = AuthState{
		User:            s.state.User,
		IsLoading:       true,
		IsAuthenticated: s.state.IsAuthenticated,
	}
	s.mu.Unlock()

	s.publish()
}

func (s *Store) endLoading() {
	s.mu.Lock()
	s.state = newAuthState(s.state.User, s.session, false)
	s.mu.Unlock()

	s.publish()
}

func (s *Store) publish() {
	snapshot := s.Current()

	s.subMu.Lock()
	listeners := make([]func(AuthState), 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	s.subMu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}

func (s *Store) record(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := s.sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

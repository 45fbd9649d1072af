package authstate

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// DefaultResolveTimeout bounds how long a profile fetch may hold up a
// session resolution before the fallback identity wins.
const DefaultResolveTimeout = 3 * time.Second

// ProfileResolver maps a Session into an AuthenticatedUser. Resolve never
// fails: latency and backend errors degrade to a least-privilege identity
// built from the session alone, they never block or break the caller.
type ProfileResolver struct {
	profiles ProfileStore
	timeout  time.Duration
	logger   Logger
	sink     ActivitySink
	now      func() time.Time
}

type ResolverOption func(*ProfileResolver)

// WithResolveTimeout overrides the fetch-vs-fallback race window.
func WithResolveTimeout(d time.Duration) ResolverOption {
	return func(r *ProfileResolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithResolverLogger overrides the logger used for swallowed failures.
func WithResolverLogger(logger Logger) ResolverOption {
	return func(r *ProfileResolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithResolverActivitySink publishes fallback events for observability.
func WithResolverActivitySink(sink ActivitySink) ResolverOption {
	return func(r *ProfileResolver) {
		r.sink = normalizeActivitySink(sink)
	}
}

// WithResolverClock injects a custom clock (useful for tests).
func WithResolverClock(clock func() time.Time) ResolverOption {
	return func(r *ProfileResolver) {
		if clock != nil {
			r.now = clock
		}
	}
}

// NewProfileResolver returns a resolver backed by the given profile store.
func NewProfileResolver(profiles ProfileStore, opts ...ResolverOption) *ProfileResolver {
	r := &ProfileResolver{
		profiles: profiles,
		timeout:  DefaultResolveTimeout,
		logger:   defLogger{},
		sink:     noopActivitySink{},
		now:      time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

type profileResult struct {
	profile *Profile
	err     error
}

// Resolve races the profile fetch against the configured timeout. The
// slow fetch is abandoned, not awaited; the Store discards its eventual
// completion through the epoch guard.
func (r *ProfileResolver) Resolve(ctx context.Context, session *Session) *AuthenticatedUser {
	if session == nil {
		return nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	results := make(chan profileResult, 1)
	go func() {
		profile, err := r.profiles.GetByUserID(fetchCtx, session.UserID)
		results <- profileResult{profile: profile, err: err}
	}()

	select {
	case res := <-results:
		return r.resolveFetched(ctx, session, res)
	case <-fetchCtx.Done():
		r.logger.Warn("profile fetch lost the timeout race, using fallback",
			"user_id", session.UserID, "timeout", r.timeout)
		r.recordFallback(ctx, session, ErrProfileFetchTimeout)
		return DeriveFallbackUser(session)
	}
}

func (r *ProfileResolver) resolveFetched(ctx context.Context, session *Session, res profileResult) *AuthenticatedUser {
	if res.err != nil {
		if goerrors.IsNotFound(res.err) {
			return r.ensureDefaultProfile(ctx, session)
		}

		r.logger.Warn("profile fetch failed, using fallback",
			"user_id", session.UserID, "error", res.err)
		r.recordFallback(ctx, session, ErrProfileFetchFailed)
		return DeriveFallbackUser(session)
	}

	if res.profile == nil {
		return r.ensureDefaultProfile(ctx, session)
	}

	user := UserFromProfile(res.profile, session)

	go r.tryRecordLastSeen(context.WithoutCancel(ctx), session.UserID)

	return user
}

// ensureDefaultProfile creates a viewer profile for a session whose record
// is missing. Creation is best-effort: if it also fails we still hand back
// the fallback identity rather than propagate.
func (r *ProfileResolver) ensureDefaultProfile(ctx context.Context, session *Session) *AuthenticatedUser {
	record := defaultProfile(session)

	created, err := r.profiles.Upsert(ctx, record)
	if err != nil {
		r.logger.Warn("default profile creation failed, using fallback",
			"user_id", session.UserID, "error", err)
		r.recordFallback(ctx, session, ErrProfileWriteFailed)
		return DeriveFallbackUser(session)
	}

	return UserFromProfile(created, session)
}

// tryRecordLastSeen is the single seam through which the best-effort
// last-seen write flows. Failures are logged and swallowed here so the
// main resolution path stays free of ad hoc recovery.
func (r *ProfileResolver) tryRecordLastSeen(ctx context.Context, userID string) {
	if err := r.profiles.Touch(ctx, userID, r.now()); err != nil {
		r.logger.Debug("last seen write failed", "user_id", userID, "error", err)
	}
}

// RecordLogin is the best-effort post-login reconciliation: stamp the
// profile's login time. Failure must never fail the login that caused it.
func (r *ProfileResolver) RecordLogin(ctx context.Context, userID string) {
	now := r.now()
	profile, err := r.profiles.GetByUserID(ctx, userID)
	if err != nil || profile == nil {
		r.logger.Debug("login reconciliation skipped", "user_id", userID, "error", err)
		return
	}

	profile.LoggedInAt = &now
	if _, err := r.profiles.Upsert(ctx, profile); err != nil {
		r.logger.Debug("login reconciliation write failed", "user_id", userID, "error", err)
	}
}

func (r *ProfileResolver) recordFallback(ctx context.Context, session *Session, cause error) {
	event := ActivityEvent{
		EventType:  ActivityEventProfileFallback,
		Actor:      ActorRef{ID: session.UserID, Type: "user"},
		UserID:     session.UserID,
		OccurredAt: r.now(),
		Metadata:   map[string]any{"cause": cause.Error()},
	}

	if err := r.sink.Record(ctx, event); err != nil {
		r.logger.Warn("activity sink record error: %v", err)
	}
}

// DeriveFallbackUser builds the minimal least-privilege identity from
// session data alone. It is the named, independently testable fallback
// policy: display name from the email local part, role viewer.
func DeriveFallbackUser(session *Session) *AuthenticatedUser {
	if session == nil {
		return nil
	}

	name := DisplayNameFromEmail(session.Email)
	if name == "" {
		name = session.UserID
	}

	return &AuthenticatedUser{
		ID:     session.UserID,
		Name:   name,
		Email:  session.Email,
		Role:   RoleViewer,
		Avatar: DefaultAvatarURL(name),
	}
}

// UserFromProfile projects a profile record onto the session identity,
// coercing out-of-enum roles to viewer.
func UserFromProfile(profile *Profile, session *Session) *AuthenticatedUser {
	email := profile.Email
	if email == "" {
		email = session.Email
	}

	name := profile.Name
	if name == "" {
		name = DisplayNameFromEmail(email)
	}

	avatar := profile.Avatar
	if avatar == "" {
		avatar = DefaultAvatarURL(name)
	}

	return &AuthenticatedUser{
		ID:     session.UserID,
		Name:   name,
		Email:  email,
		Role:   CoerceRole(profile.Role),
		Avatar: avatar,
	}
}

func defaultProfile(session *Session) *Profile {
	name := DisplayNameFromEmail(session.Email)
	if name == "" {
		name = session.UserID
	}

	record := &Profile{
		Name:   name,
		Email:  session.Email,
		Role:   RoleViewer,
		Avatar: DefaultAvatarURL(name),
	}

	if id, err := session.GetUserUUID(); err == nil {
		record.ID = id
	}

	return record
}

package authstate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	authstate "github.com/printworks/go-authstate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveNilSession(t *testing.T) {
	resolver := authstate.NewProfileResolver(&fakeProfiles{})
	assert.Nil(t, resolver.Resolve(context.Background(), nil))
}

func TestResolveFoundProfile(t *testing.T) {
	profiles := &fakeProfiles{
		getFunc: func(ctx context.Context, id string) (*authstate.Profile, error) {
			return &authstate.Profile{
				Name:   "Sam Editor",
				Email:  "sam@example.com",
				Role:   authstate.RoleEditor,
				Avatar: "https://cdn.example.com/sam.png",
			}, nil
		},
	}

	resolver := authstate.NewProfileResolver(profiles)
	user := resolver.Resolve(context.Background(), testSession("user-1", "sam@example.com"))

	require.NotNil(t, user)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, "Sam Editor", user.Name)
	assert.Equal(t, authstate.RoleEditor, user.Role)
	assert.Equal(t, "https://cdn.example.com/sam.png", user.Avatar)

	waitFor(t, func() bool { return profiles.touchCount() == 1 }, "successful resolve records last seen")
}

func TestResolveTimeoutFallsBackToViewer(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	profiles := &fakeProfiles{
		getFunc: func(ctx context.Context, id string) (*authstate.Profile, error) {
			<-release
			// The record says admin, but it arrived too late to matter.
			return &authstate.Profile{Role: authstate.RoleAdmin}, nil
		},
	}

	sink := &recordingSink{}
	resolver := authstate.NewProfileResolver(profiles,
		authstate.WithResolveTimeout(20*time.Millisecond),
		authstate.WithResolverActivitySink(sink),
	)

	start := time.Now()
	user := resolver.Resolve(context.Background(), testSession("user-1", "pat@example.com"))

	require.NotNil(t, user)
	assert.Equal(t, authstate.RoleViewer, user.Role, "timeout must never grant above viewer")
	assert.Equal(t, "pat", user.Name)
	assert.Less(t, time.Since(start), 2*time.Second)

	assert.Len(t, sink.byType(authstate.ActivityEventProfileFallback), 1)
}

func TestResolveMissingProfileCreatesDefault(t *testing.T) {
	profiles := &fakeProfiles{}

	resolver := authstate.NewProfileResolver(profiles)
	user := resolver.Resolve(context.Background(), testSession("user-1", "new@example.com"))

	require.NotNil(t, user)
	assert.Equal(t, authstate.RoleViewer, user.Role)
	assert.Equal(t, "new", user.Name)
	assert.Equal(t, 1, profiles.upsertCount(), "missing profile should be created")
}

func TestResolveDefaultProfileCreationFailureFallsBack(t *testing.T) {
	profiles := &fakeProfiles{
		upsertFunc: func(ctx context.Context, record *authstate.Profile) (*authstate.Profile, error) {
			return nil, errors.New("db full")
		},
	}

	sink := &recordingSink{}
	resolver := authstate.NewProfileResolver(profiles,
		authstate.WithResolverActivitySink(sink),
	)

	user := resolver.Resolve(context.Background(), testSession("user-1", "new@example.com"))

	require.NotNil(t, user)
	assert.Equal(t, authstate.RoleViewer, user.Role)
	assert.Len(t, sink.byType(authstate.ActivityEventProfileFallback), 1)
}

func TestResolveFetchErrorFallsBack(t *testing.T) {
	profiles := &fakeProfiles{
		getFunc: func(ctx context.Context, id string) (*authstate.Profile, error) {
			return nil, errors.New("connection refused")
		},
	}

	resolver := authstate.NewProfileResolver(profiles)
	user := resolver.Resolve(context.Background(), testSession("user-7", "kit@example.com"))

	require.NotNil(t, user)
	assert.Equal(t, "user-7", user.ID)
	assert.Equal(t, authstate.RoleViewer, user.Role)
	assert.Equal(t, "kit", user.Name)
	assert.Contains(t, user.Avatar, "ui-avatars.com")
}

func TestResolveCoercesUnknownRole(t *testing.T) {
	profiles := &fakeProfiles{
		getFunc: func(ctx context.Context, id string) (*authstate.Profile, error) {
			return &authstate.Profile{Email: "x@example.com", Role: "superuser"}, nil
		},
	}

	resolver := authstate.NewProfileResolver(profiles)
	user := resolver.Resolve(context.Background(), testSession("user-1", "x@example.com"))

	require.NotNil(t, user)
	assert.Equal(t, authstate.RoleViewer, user.Role)
}

func TestResolveLastSeenFailureIsSwallowed(t *testing.T) {
	profiles := &fakeProfiles{
		getFunc: func(ctx context.Context, id string) (*authstate.Profile, error) {
			return &authstate.Profile{Email: "x@example.com", Role: authstate.RoleViewer}, nil
		},
		touchErr: errors.New("write failed"),
	}

	resolver := authstate.NewProfileResolver(profiles)
	user := resolver.Resolve(context.Background(), testSession("user-1", "x@example.com"))

	require.NotNil(t, user)
	waitFor(t, func() bool { return profiles.touchCount() == 1 }, "touch attempted")
}

func TestDeriveFallbackUser(t *testing.T) {
	t.Run("name from email local part", func(t *testing.T) {
		user := authstate.DeriveFallbackUser(testSession("user-1", "pat.doe@example.com"))
		require.NotNil(t, user)
		assert.Equal(t, "pat.doe", user.Name)
		assert.Equal(t, authstate.RoleViewer, user.Role)
	})

	t.Run("no email falls back to user id", func(t *testing.T) {
		user := authstate.DeriveFallbackUser(testSession("user-1", ""))
		require.NotNil(t, user)
		assert.Equal(t, "user-1", user.Name)
	})

	t.Run("nil session", func(t *testing.T) {
		assert.Nil(t, authstate.DeriveFallbackUser(nil))
	})
}

func TestRecordLogin(t *testing.T) {
	var saved *authstate.Profile
	profiles := &fakeProfiles{
		getFunc: func(ctx context.Context, id string) (*authstate.Profile, error) {
			return &authstate.Profile{Email: "x@example.com", Role: authstate.RoleViewer}, nil
		},
		upsertFunc: func(ctx context.Context, record *authstate.Profile) (*authstate.Profile, error) {
			saved = record
			return record, nil
		},
	}

	stamp := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	resolver := authstate.NewProfileResolver(profiles,
		authstate.WithResolverClock(func() time.Time { return stamp }),
	)

	resolver.RecordLogin(context.Background(), "user-1")

	require.NotNil(t, saved)
	require.NotNil(t, saved.LoggedInAt)
	assert.Equal(t, stamp, *saved.LoggedInAt)
}

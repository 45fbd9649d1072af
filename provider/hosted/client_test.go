package hosted_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	authstate "github.com/printworks/go-authstate"
	"github.com/printworks/go-authstate/provider/hosted"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenPayload(userID, email string) map[string]any {
	return map[string]any{
		"access_token":  "access-" + userID,
		"refresh_token": "refresh-" + userID,
		"token_type":    "bearer",
		"expires_in":    3600,
		"user": map[string]any{
			"id":    userID,
			"email": email,
			"role":  "authenticated",
		},
	}
}

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *hosted.Client) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := hosted.DefaultConfig(server.URL, "anon-key")
	cfg.ServiceKey = "service-key"

	client, err := hosted.NewClient(cfg)
	require.NoError(t, err)

	return server, client
}

func TestClientSignInWithPassword(t *testing.T) {
	var gotPath, gotAPIKey string
	var gotBody map[string]string

	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		gotAPIKey = r.Header.Get("apikey")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		_ = json.NewEncoder(w).Encode(tokenPayload("user-1", "pat@example.com"))
	})

	var changes []authstate.Change
	client.Subscribe(func(c authstate.Change) { changes = append(changes, c) })

	session, err := client.SignInWithPassword(context.Background(), "pat@example.com", "secret")
	require.NoError(t, err)

	assert.Equal(t, "/auth/v1/token?grant_type=password", gotPath)
	assert.Equal(t, "anon-key", gotAPIKey)
	assert.Equal(t, "pat@example.com", gotBody["email"])

	assert.Equal(t, "user-1", session.UserID)
	assert.Equal(t, "access-user-1", session.AccessToken)
	require.NotNil(t, session.ExpirationDate)
	assert.False(t, session.Expired(time.Now()))

	require.Len(t, changes, 1)
	assert.Equal(t, authstate.ChangeSignedIn, changes[0].Kind)

	current, err := client.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.True(t, session.Same(current))
}

func TestClientSignInRejected(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"msg": "Invalid login credentials"})
	})

	_, err := client.SignInWithPassword(context.Background(), "pat@example.com", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid login credentials")

	current, err := client.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestClientSignOutAlwaysEmits(t *testing.T) {
	var loggedOut bool
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/v1/logout" {
			loggedOut = true
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_ = json.NewEncoder(w).Encode(tokenPayload("user-1", "pat@example.com"))
	})

	_, err := client.SignInWithPassword(context.Background(), "pat@example.com", "secret")
	require.NoError(t, err)

	var changes []authstate.Change
	client.Subscribe(func(c authstate.Change) { changes = append(changes, c) })

	require.NoError(t, client.SignOut(context.Background()))
	assert.True(t, loggedOut)

	require.Len(t, changes, 1)
	assert.Equal(t, authstate.ChangeSignedOut, changes[0].Kind)

	// Signing out with no session is a quiet no-op on the server side
	// but still notifies subscribers.
	changes = nil
	require.NoError(t, client.SignOut(context.Background()))
	require.Len(t, changes, 1)
	assert.Equal(t, authstate.ChangeSignedOut, changes[0].Kind)
}

func TestClientSignOutServerFailureStillClears(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/v1/logout" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(tokenPayload("user-1", "pat@example.com"))
	})

	_, err := client.SignInWithPassword(context.Background(), "pat@example.com", "secret")
	require.NoError(t, err)

	err = client.SignOut(context.Background())
	require.Error(t, err)

	current, err := client.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current, "local session cleared despite server failure")
}

func TestClientRefreshesStaleSession(t *testing.T) {
	calls := 0
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		grant := r.URL.Query().Get("grant_type")
		if grant == "refresh_token" {
			_ = json.NewEncoder(w).Encode(tokenPayload("user-1b", "pat@example.com"))
			return
		}

		// First token expires immediately so CurrentSession must refresh.
		payload := tokenPayload("user-1", "pat@example.com")
		payload["expires_in"] = 1
		_ = json.NewEncoder(w).Encode(payload)
	})

	var changes []authstate.Change
	client.Subscribe(func(c authstate.Change) { changes = append(changes, c) })

	_, err := client.SignInWithPassword(context.Background(), "pat@example.com", "secret")
	require.NoError(t, err)

	session, err := client.CurrentSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "access-user-1b", session.AccessToken)
	assert.Equal(t, 2, calls)

	require.Len(t, changes, 2)
	assert.Equal(t, authstate.ChangeTokenRefreshed, changes[1].Kind)
}

func TestClientAdminOperations(t *testing.T) {
	confirmedAt := time.Now().UTC()

	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/auth/v1/admin/users":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			assert.Equal(t, true, body["email_confirm"])

			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":                 "new-user",
				"email":              body["email"],
				"email_confirmed_at": confirmedAt,
			})
		case r.Method == http.MethodGet && r.URL.Path == "/auth/v1/admin/users/new-user":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":                 "new-user",
				"email":              "kit@example.com",
				"email_confirmed_at": confirmedAt,
			})
		case r.Method == http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"msg": "User not found"})
		case r.Method == http.MethodDelete && r.URL.Path == "/auth/v1/admin/users/new-user":
			w.WriteHeader(http.StatusOK)
		}
	})

	created, err := client.CreateUser(context.Background(), "kit@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "new-user", created.ID)
	assert.True(t, created.Confirmed)

	found, err := client.GetUserByID(context.Background(), "new-user")
	require.NoError(t, err)
	assert.Equal(t, "kit@example.com", found.Email)

	_, err = client.GetUserByID(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider user not found")

	require.NoError(t, client.DeleteUser(context.Background(), "new-user"))
}

func TestClientAdminRequiresServiceKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request should reach the server")
	}))
	t.Cleanup(server.Close)

	client, err := hosted.NewClient(hosted.DefaultConfig(server.URL, "anon-key"))
	require.NoError(t, err)

	_, err = client.GetUserByID(context.Background(), "x")
	assert.Error(t, err)

	_, err = client.CreateUser(context.Background(), "x@example.com", "secret123")
	assert.Error(t, err)

	assert.Error(t, client.DeleteUser(context.Background(), "x"))
}

func TestNewClientValidation(t *testing.T) {
	_, err := hosted.NewClient(hosted.Config{})
	assert.Error(t, err)

	_, err = hosted.NewClient(hosted.Config{BaseURL: "https://x.example.com"})
	assert.Error(t, err)
}

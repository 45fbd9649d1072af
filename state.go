package authstate

// AuthState is the externally observable snapshot owned by the Store.
// IsAuthenticated requires both a resolved user and a live session; a
// stale cached profile must never outlive a revoked session.
type AuthState struct {
	User            *AuthenticatedUser
	IsLoading       bool
	IsAuthenticated bool
}

func newAuthState(user *AuthenticatedUser, session *Session, loading bool) AuthState {
	return AuthState{
		User:            user,
		IsLoading:       loading,
		IsAuthenticated: user != nil && session != nil,
	}
}

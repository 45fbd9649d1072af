package authstate

// ChangeKind identifies a provider-level session lifecycle event.
type ChangeKind string

const (
	ChangeSignedIn       ChangeKind = "signed_in"
	ChangeSignedOut      ChangeKind = "signed_out"
	ChangeTokenRefreshed ChangeKind = "token_refreshed"
	// ChangeUnknown covers provider events we do not model; a session
	// present means re-resolve, absent means signed out.
	ChangeUnknown ChangeKind = "other"
)

// Change is the inbound message the Store reduces over. Session may be nil.
type Change struct {
	Kind    ChangeKind
	Session *Session
}

// clearsSession reports whether this change must synchronously drop local
// state instead of triggering a resolution.
func (c Change) clearsSession() bool {
	return c.Kind == ChangeSignedOut || c.Session == nil
}

package authstate

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Session is the credential bundle issued by the identity provider. The
// core only depends on presence plus the subject id; everything else is
// carried for the provider adapters.
type Session struct {
	UserID         string         `json:"user_id,omitempty"`
	Email          string         `json:"email,omitempty"`
	AccessToken    string         `json:"access_token,omitempty"`
	RefreshToken   string         `json:"refresh_token,omitempty"`
	IssuedAt       *time.Time     `json:"issued_at,omitempty"`
	ExpirationDate *time.Time     `json:"expiration_date,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

func (s *Session) GetUserID() string {
	return s.UserID
}

func (s *Session) GetUserUUID() (uuid.UUID, error) {
	return uuid.Parse(s.UserID)
}

// Expired reports whether the session's expiry, if any, has passed.
func (s *Session) Expired(now time.Time) bool {
	if s.ExpirationDate == nil {
		return false
	}
	return now.After(*s.ExpirationDate)
}

// Same reports whether other carries the same credential. Used to dedupe
// provider echoes of sessions we already hold.
func (s *Session) Same(other *Session) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.AccessToken != "" || other.AccessToken != "" {
		return s.AccessToken == other.AccessToken
	}
	return s.UserID == other.UserID
}

// TODO: enable only in development!
func (s Session) String() string {
	issuedAt := "<nil>"
	if s.IssuedAt != nil {
		issuedAt = s.IssuedAt.Format(time.RFC1123)
	}
	return fmt.Sprintf(
		"user=%s email=%s iat=%s data=%v",
		s.UserID,
		s.Email,
		issuedAt,
		s.Data,
	)
}

// SessionFromClaims builds a Session from decoded access-token claims.
// Provider adapters use it after validating the raw token.
func SessionFromClaims(claims jwt.MapClaims) (*Session, error) {
	if claims == nil {
		return nil, ErrUnableToDecodeSession
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, ErrUnableToDecodeSession.Clone()
	}

	session := &Session{
		UserID: sub,
		Data:   map[string]any{},
	}

	if email, ok := claims["email"].(string); ok {
		session.Email = email
	}

	if role, ok := claims["role"].(string); ok {
		session.Data["role"] = role
	}

	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		t := iat.Time
		session.IssuedAt = &t
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		session.ExpirationDate = &t
	}

	return session, nil
}

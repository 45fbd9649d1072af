package authstate

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the application-level role stored on the profile record
type UserRole = string

const (
	// RoleViewer can browse admin content but not change it. It is also the
	// least-privilege default every ambiguous or failed resolution lands on.
	RoleViewer UserRole = "viewer"
	// RoleEditor can create and edit catalog products and articles
	RoleEditor UserRole = "editor"
	// RoleAdmin can do everything, including managing users
	RoleAdmin UserRole = "admin"
)

// AuthenticatedUser is the application identity derived from a Session plus
// a profile record. It is recomputed, never incrementally mutated.
type AuthenticatedUser struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Role   UserRole `json:"role"`
	Avatar string   `json:"avatar,omitempty"`
}

// Profile is the application-owned record keyed by the provider user id,
// distinct from provider-level identity.
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:prf"`
	ID            uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string         `bun:"name,notnull" json:"name,omitempty"`
	Email         string         `bun:"email,notnull,unique" json:"email,omitempty"`
	Role          UserRole       `bun:"user_role,notnull" json:"user_role,omitempty"`
	Avatar        string         `bun:"avatar" json:"avatar,omitempty"`
	Metadata      map[string]any `bun:"metadata" json:"metadata,omitempty"`
	LastSeenAt    *time.Time     `bun:"last_seen_at,nullzero" json:"last_seen_at,omitempty"`
	LoggedInAt    *time.Time     `bun:"loggedin_at,nullzero" json:"loggedin_at,omitempty"`
	CreatedAt     *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time     `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// EnsureRole coerces any value outside the enum to viewer
func (p *Profile) EnsureRole() {
	if _, ok := ParseRole(p.Role); !ok {
		p.Role = RoleViewer
	}
}

// AddMetadata will append information to a metadata attribute
func (p *Profile) AddMetadata(key string, val any) *Profile {
	if p.Metadata == nil {
		p.Metadata = make(map[string]any)
	}
	p.Metadata[key] = val
	return p
}

// DisplayNameFromEmail derives a readable name from the email local part.
// Used for fallback identities and for default profiles.
func DisplayNameFromEmail(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}

// DefaultAvatarURL builds a deterministic placeholder avatar for a name.
func DefaultAvatarURL(name string) string {
	return fmt.Sprintf("https://ui-avatars.com/api/?name=%s&background=random&color=fff", url.QueryEscape(name))
}

package authstate

// RoleValidator defines the checks consumers run against a user's role
type RoleValidator interface {
	CanRead() bool
	CanEdit() bool
	CanCreate() bool
	CanDelete() bool
	CanManageUsers() bool
	HasRole(role string) bool
	IsAtLeast(minRole UserRole) bool
}

// IsValid checks if the role is one of the predefined valid roles
func (r roleChecks) IsValid() bool {
	switch UserRole(r) {
	case RoleViewer, RoleEditor, RoleAdmin:
		return true
	default:
		return false
	}
}

type roleChecks UserRole

// Checks wraps a role value with the RoleValidator behavior. Unknown role
// strings behave as a role below viewer: every check fails.
func Checks(r UserRole) RoleValidator {
	return roleChecks(r)
}

// CanRead checks if this role can view admin content
func (r roleChecks) CanRead() bool {
	switch UserRole(r) {
	case RoleViewer, RoleEditor, RoleAdmin:
		return true
	default:
		return false
	}
}

// CanEdit checks if this role can edit products and articles
func (r roleChecks) CanEdit() bool {
	switch UserRole(r) {
	case RoleEditor, RoleAdmin:
		return true
	default:
		return false
	}
}

// CanCreate checks if this role can create products and articles
func (r roleChecks) CanCreate() bool {
	switch UserRole(r) {
	case RoleEditor, RoleAdmin:
		return true
	default:
		return false
	}
}

// CanDelete checks if this role can delete records
func (r roleChecks) CanDelete() bool {
	return UserRole(r) == RoleAdmin
}

// CanManageUsers gates the privileged-operations boundary
func (r roleChecks) CanManageUsers() bool {
	return UserRole(r) == RoleAdmin
}

// HasRole checks for an exact role match
func (r roleChecks) HasRole(role string) bool {
	return string(r) == role
}

// IsAtLeast checks if this role meets the minimum required level
func (r roleChecks) IsAtLeast(minRole UserRole) bool {
	roleHierarchy := map[UserRole]int{
		RoleViewer: 0,
		RoleEditor: 1,
		RoleAdmin:  2,
	}

	currentLevel, exists := roleHierarchy[UserRole(r)]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleViewer,
		RoleEditor,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a UserRole
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, roleChecks(role).IsValid()
}

// CoerceRole applies the least-privilege default: anything outside the
// enum resolves to viewer rather than failing.
func CoerceRole(roleStr string) UserRole {
	if role, ok := ParseRole(roleStr); ok {
		return role
	}
	return RoleViewer
}

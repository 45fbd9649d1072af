package authstate

import (
	"github.com/goliatone/go-router"
)

var TemplateUserKey = "current_user"

// TemplateHelpers returns helper functions and data for template
// renderers that accept global data maps.
//
// In templates:
//
//	{% if current_user %}
//	{% if current_user|has_role:"admin" %}
//	{% if current_user|can_create %}
func TemplateHelpers() map[string]any {
	return map[string]any{
		"is_authenticated": isAuthenticatedHelper,
		"has_role":         hasRoleHelper,
		"is_at_least":      isAtLeastHelper,
		"can_read":         func(user any) bool { return canAccessHelper(user, "read") },
		"can_edit":         func(user any) bool { return canAccessHelper(user, "edit") },
		"can_create":       func(user any) bool { return canAccessHelper(user, "create") },
		"can_delete":       func(user any) bool { return canAccessHelper(user, "delete") },
		"can_manage_users": func(user any) bool { return canAccessHelper(user, "manage_users") },
		"can_access":       canAccessHelper,

		"roles": map[string]string{
			"viewer": string(RoleViewer),
			"editor": string(RoleEditor),
			"admin":  string(RoleAdmin),
		},
	}
}

// TemplateHelpersWithUser returns template helpers with a specific user
// injected as current_user.
func TemplateHelpersWithUser(user *AuthenticatedUser) map[string]any {
	helpers := TemplateHelpers()
	helpers[TemplateUserKey] = user
	return helpers
}

// TemplateHelpersWithRouter returns template helpers with the user
// pulled from the router context, where the route guard put it.
func TemplateHelpersWithRouter(ctx router.Context, userKey string) map[string]any {
	if userKey == "" {
		userKey = TemplateUserKey
	}

	helpers := TemplateHelpers()

	if user := ctx.Locals(userKey); user != nil {
		helpers[TemplateUserKey] = user
	}

	return helpers
}

func isAuthenticatedHelper(user any) bool {
	return templateUserRole(user) != nil
}

func hasRoleHelper(user any, role string) bool {
	r := templateUserRole(user)
	if r == nil {
		return false
	}
	return Checks(*r).HasRole(UserRole(role))
}

func isAtLeastHelper(user any, minRole string) bool {
	r := templateUserRole(user)
	if r == nil {
		return false
	}
	return Checks(*r).IsAtLeast(UserRole(minRole))
}

func canAccessHelper(user any, action string) bool {
	r := templateUserRole(user)
	if r == nil {
		return false
	}
	return can(*r, action)
}

// templateUserRole normalizes the user value a template hands back,
// which may be a struct, a pointer, or a JSON-converted map.
func templateUserRole(user any) *UserRole {
	switch u := user.(type) {
	case *AuthenticatedUser:
		if u == nil {
			return nil
		}
		role := CoerceRole(u.Role)
		return &role
	case AuthenticatedUser:
		role := CoerceRole(u.Role)
		return &role
	case map[string]any:
		if raw, exists := u["role"]; exists {
			if roleStr, ok := raw.(string); ok {
				role := CoerceRole(UserRole(roleStr))
				return &role
			}
		}
		return nil
	default:
		return nil
	}
}

// Package authstate owns the authentication and session core of the
// storefront-and-admin application: one authoritative, reactive AuthState,
// the session lifecycle against a hosted identity provider, least-privilege
// profile resolution, route guarding, and the privileged admin-operations
// boundary.
//
// Session lifecycle:
//   - Store is the single writer of AuthState. It subscribes to provider
//     change events (signed_in, signed_out, token_refreshed) and processes
//     them sequentially, tagging every profile resolution with an epoch so a
//     stale completion can never overwrite the state produced by a later
//     event.
//   - ProfileResolver maps a Session into an AuthenticatedUser and never
//     fails: fetch timeouts and errors fall back to a minimal viewer-role
//     identity derived from the session itself (see DeriveFallbackUser).
//
// Route guarding:
//   - RouteGuard gates protected routes on the current snapshot: loading
//     renders a placeholder, unauthenticated redirects to the login entry
//     point (replacing history via the redirect cookie), authenticated
//     passes through. RedirectAuthenticated bounces logged-in visitors away
//     from the landing and login surfaces.
//
// Admin operations:
//   - AdminController exposes the RPC-style {action, data} endpoint backed
//     by command handlers (create, invite, delete, role change, lookup).
//     Callers must hold the admin role; everything else is rejected without
//     touching AuthState.
package authstate

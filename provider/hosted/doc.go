// Package hosted talks to a hosted GoTrue-style identity service over
// REST: password grant, refresh grant, logout, and the service-key
// admin user endpoints.
//
// Use Client anywhere an authstate.IdentityClient or
// authstate.IdentityAdmin is expected.
package hosted

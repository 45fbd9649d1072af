package authstate

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ErrInvalidCredentials is returned from Login when the provider rejects
// the credential exchange. Recovered locally; never fatal.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode("INVALID_CREDENTIALS").
	WithCode(goerrors.CodeUnauthorized)

// ErrProfileFetchTimeout marks a profile lookup that lost the race against
// the resolver timeout. Absorbed into a fallback profile, logged only.
var ErrProfileFetchTimeout = goerrors.New("profile fetch timed out", goerrors.CategoryOperation).
	WithTextCode("PROFILE_FETCH_TIMEOUT")

// ErrProfileFetchFailed marks any other profile lookup failure. Absorbed
// into a fallback profile, logged only.
var ErrProfileFetchFailed = goerrors.New("profile fetch failed", goerrors.CategoryOperation).
	WithTextCode("PROFILE_FETCH_FAILED")

// ErrProfileWriteFailed marks a best-effort profile write (default-profile
// creation, last-seen touch) that did not stick. Fully swallowed.
var ErrProfileWriteFailed = goerrors.New("profile write failed", goerrors.CategoryOperation).
	WithTextCode("PROFILE_WRITE_FAILED")

// ErrSignOutFailed is surfaced as a notification when the provider cannot
// terminate server-side state; local clearing proceeds regardless.
var ErrSignOutFailed = goerrors.New("sign out failed", goerrors.CategoryAuth).
	WithTextCode("SIGN_OUT_FAILED")

// ErrUnauthorizedAdminOperation is returned by the privileged-operations
// boundary when the caller does not hold the admin role.
var ErrUnauthorizedAdminOperation = goerrors.New("only admins can perform this operation", goerrors.CategoryAuthz).
	WithTextCode("UNAUTHORIZED_ADMIN_OPERATION").
	WithCode(goerrors.CodeForbidden)

// ErrProviderUserNotFound is returned by admin lookups for unknown ids.
var ErrProviderUserNotFound = goerrors.New("provider user not found", goerrors.CategoryNotFound).
	WithTextCode("PROVIDER_USER_NOT_FOUND").
	WithCode(goerrors.CodeNotFound)

// ErrUnableToFindSession is the error when no session is present
var ErrUnableToFindSession = goerrors.New("unable to find session", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnableToDecodeSession marks an access token we could not decode
var ErrUnableToDecodeSession = goerrors.New("unable to decode session", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnableToMapClaims marks token claims of an unexpected shape
var ErrUnableToMapClaims = goerrors.New("unable to map claims", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString guards hash helpers against empty input
var ErrNoEmptyString = goerrors.New("string cannot be empty", goerrors.CategoryBadInput)

// ErrMismatchedHashAndPassword is the single error surfaced for bad
// credentials so callers cannot distinguish unknown user from bad password.
var ErrMismatchedHashAndPassword = goerrors.New("credentials do not match", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired marks an access token past its expiry
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode("TOKEN_EXPIRED").
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed marks an access token we could not parse
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode("TOKEN_MALFORMED").
	WithCode(goerrors.CodeUnauthorized)

// IsTimeoutError checks for deadline-style failures from foreign clients
// where all we have is the message.
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "context deadline exceeded") ||
		strings.Contains(err.Error(), "timed out")
}

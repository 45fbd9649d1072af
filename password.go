package authstate

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DefaultPasswordCost is the bcrypt work factor used when callers do not
// pick one. Seeded dev accounts, invites, and registrations all hash
// through it.
const DefaultPasswordCost = bcrypt.DefaultCost

// HashPassword hashes a cleartext password at DefaultPasswordCost.
func HashPassword(password string) (string, error) {
	return HashPasswordCost(password, DefaultPasswordCost)
}

// HashPasswordCost hashes a cleartext password at the given bcrypt work
// factor. Costs outside the bcrypt range are clamped rather than
// rejected, so a misconfigured deployment degrades instead of breaking
// account creation.
func HashPasswordCost(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	if cost < bcrypt.MinCost {
		cost = DefaultPasswordCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "could not hash password").
			WithMetadata(map[string]any{"cost": cost})
	}

	return string(h), nil
}

// ComparePasswordAndHash validates the cleartext password against the
// stored hash. A mismatch maps to ErrMismatchedHashAndPassword so the
// sign-in path can treat it as a credential failure; anything else means
// the stored hash itself is unusable.
func ComparePasswordAndHash(password, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return nil
	}

	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrMismatchedHashAndPassword
	}

	return goerrors.Wrap(err, goerrors.CategoryBadInput, "malformed password hash")
}

// RandomPasswordHash hashes a throwaway random password, for columns
// that must be filled but must never match a login attempt.
func RandomPasswordHash() string {
	pwd, err := randomPassword()
	if err != nil {
		pwd = uuid.NewString()
	}

	h, _ := HashPassword(pwd)
	return h
}

// This file wraps bcrypt for password accounts.
//
// bcrypt is deliberately slow and salts every hash, so a leaked users table does not
// give up passwords cheaply. It only looks at the first 72 bytes of its input, which
// is why longer passwords are rejected instead of being silently truncated.

package identity

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/trentd187/beach-club/internal/apperr"
)

// Password length limits, in bytes.
const (
	minPasswordLength = 8
	maxPasswordLength = 72 // bcrypt ignores everything past 72 bytes
)

// validatePassword enforces the length limits.
func validatePassword(pw string) error {
	switch {
	case len(pw) < minPasswordLength:
		return apperr.Validation("password must be at least %d characters", minPasswordLength)
	case len(pw) > maxPasswordLength:
		return apperr.Validation("password must be at most %d bytes", maxPasswordLength)
	}
	return nil
}

// hashPassword returns the bcrypt hash of pw at the default cost.
func hashPassword(pw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// checkPassword reports whether pw matches hash. bcrypt compares in constant time.
func checkPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// dummyHash is compared against when there is no real hash to check, so a login for an
// unknown email costs about as much as one with a wrong password.
var dummyHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("beach-club-placeholder"), bcrypt.DefaultCost)
	return h
})

// burnPasswordCheck runs a comparison whose result is thrown away.
func burnPasswordCheck(pw string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(pw))
}

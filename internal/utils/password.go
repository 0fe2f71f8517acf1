package utils

import (
    "fmt"

    "golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password Register accepts.
const MinPasswordLength = 8

// maxPasswordLength matches bcrypt's input limit; longer input would be
// silently truncated by the hash, so it is refused instead.
const maxPasswordLength = 72

// ValidatePassword enforces the account password policy before hashing.
func ValidatePassword(plain string) error {
    if len(plain) < MinPasswordLength {
        return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
    }
    if len(plain) > maxPasswordLength {
        return fmt.Errorf("password must be at most %d characters", maxPasswordLength)
    }
    return nil
}

// HashPassword returns the bcrypt hash of plain.  A cost outside bcrypt's
// supported range falls back to the library default, so a misconfigured
// BCRYPT_COST degrades to a safe cost instead of failing every
// registration.
func HashPassword(plain string, cost int) (string, error) {
    if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
        cost = bcrypt.DefaultCost
    }
    b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
    if err != nil {
        return "", err
    }
    return string(b), nil
}

// VerifyPassword reports whether plain matches the stored bcrypt hash.
func VerifyPassword(hash, plain string) bool {
    return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

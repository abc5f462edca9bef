package auth

import (
	"crypto/sha256"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plaintext password using bcrypt with DefaultCost.
func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

// CheckPassword compares a bcrypt hash with a candidate plaintext password.
func CheckPassword(hash, pw string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw))
}

// HashRefreshToken produces the salted hash stored in a session row. The token
// is SHA-256'd first because bcrypt caps its input at 72 bytes and a signed JWT
// is longer. The salt means equal tokens hash differently, so sessions are
// matched by comparison, not lookup.
func HashRefreshToken(token string) (string, error) {
	sum := sha256.Sum256([]byte(token))
	b, err := bcrypt.GenerateFromPassword(sum[:], bcrypt.DefaultCost)
	return string(b), err
}

// CompareRefreshToken reports whether hash was produced from token.
func CompareRefreshToken(hash, token string) bool {
	sum := sha256.Sum256([]byte(token))
	return bcrypt.CompareHashAndPassword([]byte(hash), sum[:]) == nil
}

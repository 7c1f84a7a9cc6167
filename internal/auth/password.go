package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// APIKeyDigest produces the one-way digest stored as an automated account's
// api_key. Signed tokens exceed bcrypt's 72-byte input limit, so a plain
// sha256 digest with constant-time comparison is used instead.
func APIKeyDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// CheckAPIKeyDigest reports whether a presented token matches the stored
// digest without ever handling a stored plaintext token.
func CheckAPIKeyDigest(token, storedDigest string) bool {
	digest := APIKeyDigest(token)
	return subtle.ConstantTimeCompare([]byte(digest), []byte(storedDigest)) == 1
}

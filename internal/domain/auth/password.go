package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

const saltBytes = 16

// HashPassword derives a salted digest in the form "salt:digest", both hex.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate password salt: %w", err)
	}
	return hex.EncodeToString(salt) + ":" + digest(salt, password), nil
}

// VerifyPassword checks a candidate password against a stored hash.
func VerifyPassword(stored, password string) bool {
	salt, want, ok := strings.Cut(stored, ":")
	if !ok {
		return false
	}
	rawSalt, err := hex.DecodeString(salt)
	if err != nil {
		return false
	}
	got := digest(rawSalt, password)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func digest(salt []byte, password string) string {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(password))
	return hex.EncodeToString(h.Sum(nil))
}

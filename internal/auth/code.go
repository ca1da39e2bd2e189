package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the work factor for all credential hashes.
const BcryptCost = 10

// confusableReplacer rewrites characters that are easy to misread when a
// code is transcribed from an email. The replacements stay inside A-Z, so
// every generated code round-trips through Normalize unchanged.
var confusableReplacer = strings.NewReplacer(
	"0", "X",
	"O", "Y",
	"I", "Z",
	"l", "W",
	"1", "V",
	"5", "U",
	"S", "T",
)

// GenerateCode produces a human-transcribable one-time code of the given
// length. The code is derived from crypto/rand bytes, hex encoded, stripped
// of confusable characters, and uppercased.
func GenerateCode(length int) (string, error) {
	if length < 1 {
		return "", fmt.Errorf("code length must be positive, got %d", length)
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	code := strings.ToUpper(confusableReplacer.Replace(hex.EncodeToString(buf)))
	if length > len(code) {
		length = len(code)
	}
	return code[:length], nil
}

// Normalize prepares user-supplied code input for comparison: surrounding
// whitespace is trimmed and the input is uppercased.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// HashCode returns the bcrypt hash of a code for storage.
func HashCode(code string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash code: %w", err)
	}
	return string(hash), nil
}

// CompareCode checks normalized user input against a stored code hash.
func CompareCode(hash, input string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(Normalize(input))) == nil
}

// HashPassword returns the bcrypt hash of a password for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// ComparePassword checks a plaintext password against a stored hash.
func ComparePassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ScrambledPasswordHash returns the hash of a random password nobody knows.
// Used when locking out an account so the old password stops working even
// if the account is later re-enabled without a reset.
func ScrambledPasswordHash() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return HashPassword(hex.EncodeToString(buf))
}

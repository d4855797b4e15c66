package util

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
)

// CryptoRandomBytes generates cryptographically secure random bytes
func CryptoRandomBytes(length int) ([]byte, error) {
	buf := make([]byte, length)
	_, err := rand.Read(buf)
	return buf, err
}

// CryptoRandomString generates a random lowercase hex string of the given length
func CryptoRandomString(length int) (string, error) {
	bytes, err := CryptoRandomBytes((length + 1) / 2)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes)[:length], nil
}

// RandomState returns a URL-safe value suitable for the OAuth2 state parameter.
func RandomState() (string, error) {
	b, err := CryptoRandomBytes(32)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SHA256Hex returns the SHA-256 hash of s as a lowercase hex string.
// Intended for high-entropy values such as handshake tokens.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// SecureEqual compares two secrets in constant time.
func SecureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

package util

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	cipherKeySalt       = "socialflow:token-cipher:v1"
	cipherKDFIterations = 100000
	cipherKeyLength     = 32 // AES-256
	cipherDelimiter     = ":"
)

var (
	ErrMissingEncryptionKey = errors.New("cipher: encryption key is not configured")
	ErrMalformedCiphertext  = errors.New("cipher: malformed ciphertext")
	ErrDecryptFailed        = errors.New("cipher: decryption failed")
)

// TokenCipher encrypts provider credentials at rest with AES-256-GCM.
// Ciphertexts have the form <nonceHex>:<sealedHex>.
type TokenCipher struct {
	aead cipher.AEAD
}

// NewTokenCipher derives the AES key from secret with PBKDF2-SHA256 over a fixed salt.
func NewTokenCipher(secret string) (*TokenCipher, error) {
	if secret == "" {
		return nil, ErrMissingEncryptionKey
	}

	key := pbkdf2.Key(
		[]byte(secret),
		[]byte(cipherKeySalt),
		cipherKDFIterations,
		cipherKeyLength,
		sha256.New,
	)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher: create block: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher: create gcm: %w", err)
	}

	return &TokenCipher{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce. Empty input stays empty.
func (c *TokenCipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce, err := CryptoRandomBytes(c.aead.NonceSize())
	if err != nil {
		return "", fmt.Errorf("cipher: generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(nonce) + cipherDelimiter + hex.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. It fails on a missing delimiter, a malformed nonce,
// or a value sealed under a different key.
func (c *TokenCipher) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	nonceHex, sealedHex, ok := strings.Cut(ciphertext, cipherDelimiter)
	if !ok {
		return "", fmt.Errorf("%w: missing delimiter", ErrMalformedCiphertext)
	}

	nonce, err := hex.DecodeString(nonceHex)
	if err != nil || len(nonce) != c.aead.NonceSize() {
		return "", fmt.Errorf("%w: invalid nonce", ErrMalformedCiphertext)
	}

	sealed, err := hex.DecodeString(sealedHex)
	if err != nil {
		return "", fmt.Errorf("%w: invalid payload", ErrMalformedCiphertext)
	}

	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plaintext), nil
}

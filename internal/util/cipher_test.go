package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCipher(t *testing.T, secret string) *TokenCipher {
	t.Helper()
	c, err := NewTokenCipher(secret)
	require.NoError(t, err)
	return c
}

func TestNewTokenCipher_RequiresSecret(t *testing.T) {
	_, err := NewTokenCipher("")
	assert.ErrorIs(t, err, ErrMissingEncryptionKey)
}

func TestTokenCipher_RoundTrip(t *testing.T) {
	c := newTestCipher(t, "unit-test-secret")

	inputs := []string{
		"a",
		"ACCESS",
		"1234567890-abcdefghijklmnopqrstuvwxyz",
		"ünïcødé ✓ tokens",
		strings.Repeat("x", 4096),
		"value:with:delimiters",
	}

	for _, in := range inputs {
		ct, err := c.Encrypt(in)
		require.NoError(t, err)
		assert.NotEqual(t, in, ct)
		assert.Contains(t, ct, ":")

		out, err := c.Decrypt(ct)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}
}

func TestTokenCipher_FreshNoncePerCall(t *testing.T) {
	c := newTestCipher(t, "unit-test-secret")

	first, err := c.Encrypt("same-plaintext")
	require.NoError(t, err)
	second, err := c.Encrypt("same-plaintext")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)

	for _, ct := range []string{first, second} {
		pt, err := c.Decrypt(ct)
		require.NoError(t, err)
		assert.Equal(t, "same-plaintext", pt)
	}
}

func TestTokenCipher_Format(t *testing.T) {
	c := newTestCipher(t, "unit-test-secret")

	ct, err := c.Encrypt("token")
	require.NoError(t, err)

	nonceHex, payloadHex, ok := strings.Cut(ct, ":")
	require.True(t, ok)
	assert.Len(t, nonceHex, 24, "GCM nonce is 12 bytes")
	assert.NotEmpty(t, payloadHex)
}

func TestTokenCipher_EmptyValues(t *testing.T) {
	c := newTestCipher(t, "unit-test-secret")

	ct, err := c.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, ct)

	pt, err := c.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, pt)
}

func TestTokenCipher_DecryptFailures(t *testing.T) {
	c := newTestCipher(t, "unit-test-secret")
	other := newTestCipher(t, "another-secret")

	valid, err := c.Encrypt("secret-token")
	require.NoError(t, err)
	foreign, err := other.Encrypt("secret-token")
	require.NoError(t, err)

	t.Run("missing delimiter", func(t *testing.T) {
		_, err := c.Decrypt(strings.Replace(valid, ":", "", 1))
		assert.ErrorIs(t, err, ErrMalformedCiphertext)
	})

	t.Run("malformed nonce", func(t *testing.T) {
		_, err := c.Decrypt("zz" + valid)
		assert.ErrorIs(t, err, ErrMalformedCiphertext)
	})

	t.Run("short nonce", func(t *testing.T) {
		_, payload, _ := strings.Cut(valid, ":")
		_, err := c.Decrypt("abcd:" + payload)
		assert.ErrorIs(t, err, ErrMalformedCiphertext)
	})

	t.Run("invalid payload hex", func(t *testing.T) {
		nonce, _, _ := strings.Cut(valid, ":")
		_, err := c.Decrypt(nonce + ":not-hex")
		assert.ErrorIs(t, err, ErrMalformedCiphertext)
	})

	t.Run("different key", func(t *testing.T) {
		_, err := c.Decrypt(foreign)
		assert.ErrorIs(t, err, ErrDecryptFailed)
	})

	t.Run("tampered payload", func(t *testing.T) {
		tampered := []byte(valid)
		last := len(tampered) - 1
		if tampered[last] == '0' {
			tampered[last] = '1'
		} else {
			tampered[last] = '0'
		}
		_, err := c.Decrypt(string(tampered))
		assert.ErrorIs(t, err, ErrDecryptFailed)
	})
}

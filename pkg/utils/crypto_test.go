package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAESKey = "0123456789abcdef0123456789abcdef"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintext := `{"provider_tokens": {"github": {"token": "ghp_secret"}}}`

	ciphertext, err := EncryptSecret(testAESKey, plaintext)
	require.NoError(t, err)
	assert.NotContains(t, ciphertext, "ghp_secret")

	decrypted, err := DecryptSecret(testAESKey, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncryptRejectsBadKey(t *testing.T) {
	_, err := EncryptSecret("", "data")
	assert.Error(t, err)

	_, err = EncryptSecret("short-key", "data")
	assert.Error(t, err)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	ciphertext, err := EncryptSecret(testAESKey, "data")
	require.NoError(t, err)

	tampered := []byte(ciphertext)
	if tampered[0] == 'A' {
		tampered[0] = 'B'
	} else {
		tampered[0] = 'A'
	}
	_, err = DecryptSecret(testAESKey, string(tampered))
	assert.Error(t, err)

	_, err = DecryptSecret(testAESKey, "not-base64!!!")
	assert.Error(t, err)
}

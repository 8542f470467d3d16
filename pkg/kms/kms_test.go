package kms_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/orchestrator/pkg/kms"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	k := kms.NewLocal()
	plaintext := []byte("deliverable payload bytes")

	ciphertext, err := k.Encrypt("deliverable-key", plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)

	decrypted, err := k.Decrypt("deliverable-key", ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	k := kms.NewLocal()
	ciphertext, err := k.Encrypt("key-a", []byte("secret"))
	require.NoError(t, err)

	_, err = k.Decrypt("key-b", ciphertext)
	assert.Error(t, err)
}

func TestDecryptTooShortCiphertext(t *testing.T) {
	k := kms.NewLocal()
	_, err := k.Decrypt("key-a", []byte("x"))
	assert.Error(t, err)
}

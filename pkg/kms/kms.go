// Package kms implements the KMS capability (Encrypt/Decrypt by key id)
// as a local envelope-encryption shim. See DESIGN.md for why this is
// the one domain component built on the standard library rather than a
// third-party SDK.
package kms

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"
	"sync"

	apperrors "github.com/taskforge/orchestrator/internal/errors"
)

// KMS is the narrow two-method capability consumed by the rest of the
// system.
type KMS interface {
	Encrypt(keyID string, plaintext []byte) (ciphertext []byte, err error)
	Decrypt(keyID string, ciphertext []byte) (plaintext []byte, err error)
}

// Local is an in-process KMS backed by AES-256-GCM, keyed by an
// arbitrary key id. Suitable for tests and single-process deployments;
// production deployments would swap in a real KMS client behind the same
// interface.
type Local struct {
	mu   sync.RWMutex
	keys map[string][]byte
}

// NewLocal constructs an empty Local KMS. Keys are generated on first use
// of a given keyID.
func NewLocal() *Local {
	return &Local{keys: map[string][]byte{}}
}

func (l *Local) keyFor(keyID string) ([]byte, error) {
	l.mu.RLock()
	key, ok := l.keys[keyID]
	l.mu.RUnlock()
	if ok {
		return key, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if key, ok := l.keys[keyID]; ok {
		return key, nil
	}
	key = make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "kms: key generation failed")
	}
	l.keys[keyID] = key
	return key, nil
}

// Encrypt seals plaintext under keyID, prefixing the nonce to the
// returned ciphertext.
func (l *Local) Encrypt(keyID string, plaintext []byte) ([]byte, error) {
	key, err := l.keyFor(keyID)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "kms: cipher init failed")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "kms: gcm init failed")
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "kms: nonce generation failed")
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens ciphertext previously sealed by Encrypt under the same
// keyID.
func (l *Local) Decrypt(keyID string, ciphertext []byte) ([]byte, error) {
	key, err := l.keyFor(keyID)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "kms: cipher init failed")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "kms: gcm init failed")
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, apperrors.New(apperrors.ErrorTypeValidation, "kms: ciphertext too short")
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeValidation, "kms: decryption failed")
	}
	return plaintext, nil
}

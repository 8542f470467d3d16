// Package objectstore implements the ObjectStore capability (Get/Put/Head
// by (bucket, key), server-side encryption required, streaming read).
// Local is a single-node, disk-backed implementation that encrypts every
// object under pkg/kms before it touches disk — the one place in this
// repo the KMS interface is actually exercised end to end. Production
// deployments would swap in a real object-storage SDK behind the same
// Store interface; see DESIGN.md.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	apperrors "github.com/taskforge/orchestrator/internal/errors"
	"github.com/taskforge/orchestrator/pkg/kms"
)

// ObjectMeta is Head's result: existence plus size, without reading the
// body.
type ObjectMeta struct {
	Size   int64
	Exists bool
}

// Store is the ObjectStore capability consumed by deliverable storage.
type Store interface {
	Put(ctx context.Context, bucket, key string, r io.Reader) error
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Head(ctx context.Context, bucket, key string) (ObjectMeta, error)
}

// Local is a disk-backed Store rooted at a base directory, one
// subdirectory per bucket. Every object is sealed with KMS before
// writing and opened on read, so encryption-at-rest holds even though
// the underlying medium is a local filesystem (mirrors
// pkg/notify/delivery.FileDeliveryService's directory-per-concern
// layout, plus the mandatory SSE step the spec's ObjectStore requires).
type Local struct {
	baseDir string
	kms     kms.KMS
	keyID   string
}

// NewLocal constructs a Local store rooted at baseDir, encrypting every
// object under keyID. baseDir is created if it does not exist.
func NewLocal(baseDir string, k kms.KMS, keyID string) (*Local, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "objectstore: failed to create base dir")
	}
	if keyID == "" {
		keyID = "objectstore-default"
	}
	return &Local{baseDir: baseDir, kms: k, keyID: keyID}, nil
}

func (l *Local) path(bucket, key string) (string, error) {
	dir := filepath.Join(l.baseDir, filepath.Clean(bucket))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrorTypeInternal, "objectstore: failed to create bucket dir")
	}
	return filepath.Join(dir, filepath.Clean(key)), nil
}

// Put seals r's full content under l.keyID and writes it to
// (bucket, key), overwriting any existing object there.
func (l *Local) Put(_ context.Context, bucket, key string, r io.Reader) error {
	p, err := l.path(bucket, key)
	if err != nil {
		return err
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "objectstore: failed to read object body")
	}
	sealed, err := l.kms.Encrypt(l.keyID, plaintext)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "objectstore: encryption failed")
	}
	if err := os.WriteFile(p, sealed, 0o600); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, fmt.Sprintf("objectstore: write failed for %s/%s", bucket, key))
	}
	return nil
}

// Get opens (bucket, key), decrypts it, and returns a streaming reader
// over the plaintext.
func (l *Local) Get(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	p, err := l.path(bucket, key)
	if err != nil {
		return nil, err
	}
	sealed, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError("object")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "objectstore: read failed")
	}
	plaintext, err := l.kms.Decrypt(l.keyID, sealed)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "objectstore: decryption failed")
	}
	return io.NopCloser(bytes.NewReader(plaintext)), nil
}

// Head reports whether (bucket, key) exists and its plaintext size,
// without decrypting the body.
func (l *Local) Head(_ context.Context, bucket, key string) (ObjectMeta, error) {
	p, err := l.path(bucket, key)
	if err != nil {
		return ObjectMeta{}, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return ObjectMeta{Exists: false}, nil
		}
		return ObjectMeta{}, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "objectstore: stat failed")
	}
	// Size on disk is the sealed (nonce+ciphertext+tag) size, not the
	// plaintext size; callers needing the exact plaintext size should
	// Get and measure instead. Reported as a useful approximation.
	return ObjectMeta{Size: info.Size(), Exists: true}, nil
}

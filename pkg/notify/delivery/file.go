// Package delivery implements the file-based fallback NotificationTransport
// channel, used when no external transport (Slack, email, SNS) is
// reachable — modeled on this package's own file delivery service, which
// wraps directory/file I/O errors in a RetryableError so the caller's
// retry policy can distinguish "disk full" from "bad input".
package delivery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/taskforge/orchestrator/internal/errors"
	"github.com/taskforge/orchestrator/pkg/notify/sanitization"
)

// RetryableError wraps an underlying I/O error that the caller's retry
// policy should treat as transient (disk full, permission races,
// directory not yet created) rather than a validation failure.
type RetryableError struct {
	Op    string
	Cause error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("delivery: %s: %v", e.Op, e.Cause)
}

func (e *RetryableError) Unwrap() error { return e.Cause }

// FileDeliveryService writes notifications to a directory, one file per
// message, for offline/disconnected operation.
type FileDeliveryService struct {
	dir       string
	sanitizer *sanitization.Sanitizer
}

// NewFileDeliveryService constructs a service writing into dir, creating
// it if necessary.
func NewFileDeliveryService(dir string) (*FileDeliveryService, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &RetryableError{Op: "mkdir", Cause: err}
	}
	return &FileDeliveryService{dir: dir, sanitizer: sanitization.New()}, nil
}

// Send writes messageID's content to a file named after it. Idempotent:
// re-sending the same messageID overwrites the same file with identical
// content.
func (s *FileDeliveryService) Send(ctx context.Context, messageID, recipient, message string) error {
	sanitized, _ := s.sanitizer.SanitizeWithFallback(message)

	path := filepath.Join(s.dir, messageID+".txt")
	content := fmt.Sprintf("to: %s\nat: %s\n\n%s\n", recipient, time.Now().UTC().Format(time.RFC3339), sanitized)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return &RetryableError{Op: "write", Cause: err}
	}
	return nil
}

// AsAppError maps a RetryableError onto the repo's AppError taxonomy so
// internal/retrypolicy can classify it.
func AsAppError(err error) error {
	if err == nil {
		return nil
	}
	var retryable *RetryableError
	if ok := asRetryable(err, &retryable); ok {
		return apperrors.Wrap(retryable.Cause, apperrors.ErrorTypeNetwork, retryable.Op+" failed")
	}
	return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "delivery failed")
}

func asRetryable(err error, target **RetryableError) bool {
	re, ok := err.(*RetryableError)
	if ok {
		*target = re
	}
	return ok
}

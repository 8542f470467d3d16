package delivery

import (
	"context"

	"github.com/taskforge/orchestrator/pkg/notify"
)

// FileTransport adapts FileDeliveryService's 4-argument Send to
// notify.Transport's 6-argument shape, discarding channel and urgency
// (every message routed here already chose the file channel by virtue
// of reaching this transport, and the file backend has no concept of
// priority).
type FileTransport struct {
	svc *FileDeliveryService
}

// NewFileTransport wraps svc as a notify.Transport.
func NewFileTransport(svc *FileDeliveryService) *FileTransport {
	return &FileTransport{svc: svc}
}

// Send writes message to disk via the wrapped FileDeliveryService.
func (t *FileTransport) Send(ctx context.Context, messageID, recipient string, _ notify.Channel, message string, _ notify.Urgency) error {
	return t.svc.Send(ctx, messageID, recipient, message)
}

package notify

import (
	"context"

	"github.com/slack-go/slack"

	apperrors "github.com/taskforge/orchestrator/internal/errors"
	"github.com/taskforge/orchestrator/pkg/notify/sanitization"
)

// SlackClient is the subset of slack-go/slack this transport needs,
// narrowed for testability.
type SlackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackTransport delivers notifications via Slack. Every message passes
// through sanitization before it is sent.
type SlackTransport struct {
	client    SlackClient
	sanitizer *sanitization.Sanitizer
	seen      map[string]bool // idempotency by messageID
}

// NewSlackTransport constructs a SlackTransport over an authenticated
// slack.Client (or a test double satisfying SlackClient).
func NewSlackTransport(client SlackClient) *SlackTransport {
	return &SlackTransport{client: client, sanitizer: sanitization.New(), seen: map[string]bool{}}
}

// Send posts message to the Slack channel named by recipient. Idempotent
// on messageID: a repeated send with the same id is a no-op.
func (t *SlackTransport) Send(ctx context.Context, messageID, recipient string, channel Channel, message string, urgency Urgency) error {
	if t.seen[messageID] {
		return nil
	}

	sanitized, _ := t.sanitizer.SanitizeWithFallback(message)
	prefix := urgencyPrefix(urgency)

	_, _, err := t.client.PostMessageContext(ctx, recipient, slack.MsgOptionText(prefix+sanitized, false))
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeNetwork, "notify: slack delivery failed")
	}
	t.seen[messageID] = true
	return nil
}

func urgencyPrefix(u Urgency) string {
	switch u {
	case UrgencyCritical:
		return ":rotating_light: "
	case UrgencyHigh:
		return ":warning: "
	default:
		return ""
	}
}

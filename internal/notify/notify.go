// Package notify tells interested parties that a conversation has been
// parsed.
package notify

import (
	"context"
	"errors"
	"time"

	"github.io/infrasutra/threadparse/internal/sse"
	"github.io/infrasutra/threadparse/internal/store"
)

type Notifier interface {
	ConversationReady(ctx context.Context, conversation store.Conversation) error
}

// Multi calls every notifier and joins their errors.
type Multi []Notifier

func (m Multi) ConversationReady(ctx context.Context, conversation store.Conversation) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.ConversationReady(ctx, conversation); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HubNotifier publishes a "ready" server-sent event to the subscribers of
// the conversation.
type HubNotifier struct {
	Hub *sse.Hub
}

func (n HubNotifier) ConversationReady(_ context.Context, conversation store.Conversation) error {
	payload, err := ReadyEvent(conversation)
	if err != nil {
		return err
	}
	n.Hub.Publish(conversation.ID, payload)
	return nil
}

// ReadyEvent is the server-sent event announcing that conversation has
// been parsed.
func ReadyEvent(conversation store.Conversation) ([]byte, error) {
	event := map[string]any{
		"id":      conversation.ID,
		"subject": conversation.Subject,
	}
	if !conversation.ExpiresAt.IsZero() {
		event["expiresAt"] = conversation.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return sse.Event("ready", event)
}

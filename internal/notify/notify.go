// Package notify delivers short user-facing toasts.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Toast variants.
const (
	VariantDefault     = "default"
	VariantDestructive = "destructive"
)

// Toast is a short notification with a title and the error's message as description.
type Toast struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Variant     string    `json:"variant"`
	CreatedAt   time.Time `json:"created_at"`
}

// Notifier shows a toast to the user.
type Notifier interface {
	Notify(ctx context.Context, toast Toast) error
}

// LogNotifier writes toasts to a zerolog logger.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, toast Toast) error {
	ev := n.log.Info()
	if toast.Variant == VariantDestructive {
		ev = n.log.Error()
	}
	ev.Str("variant", toast.Variant).Str("description", toast.Description).Msg(toast.Title)
	return nil
}

// Publisher publishes a JSON message. Implemented by client.PubSubClient.
type Publisher interface {
	Publish(ctx context.Context, data any, attrs map[string]string) error
}

// PubSubNotifier fans toasts out to a Pub/Sub topic so other surfaces can show them.
type PubSubNotifier struct {
	publisher Publisher
	source    string
}

// NewPubSubNotifier creates a PubSubNotifier. source is sent as the `source` attribute.
func NewPubSubNotifier(publisher Publisher, source string) *PubSubNotifier {
	return &PubSubNotifier{publisher: publisher, source: source}
}

// Notify implements Notifier.
func (n *PubSubNotifier) Notify(ctx context.Context, toast Toast) error {
	return n.publisher.Publish(ctx, toast, map[string]string{
		"source":  n.source,
		"variant": toast.Variant,
	})
}

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, toast Toast) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, toast); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops every toast.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, Toast) error { return nil }

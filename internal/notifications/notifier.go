package notifications

import "context"

// Notifier delivers a human-readable message to an operator channel.
// Implementations log delivery failures instead of returning them.
type Notifier interface {
	Notify(ctx context.Context, msg string)
}

// Multi fans a message out to every notifier.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, msg string) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, msg)
		}
	}
}

// Nop discards messages.
type Nop struct{}

func (Nop) Notify(context.Context, string) {}

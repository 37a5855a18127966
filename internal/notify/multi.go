package notify

import (
	"context"
	"log/slog"
)

// MultiNotifier fans an event out to several notifiers. Failures of
// individual sinks are logged and do not stop the others.
type MultiNotifier struct {
	Notifiers []Notifier
	Logger    *slog.Logger
}

func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{
		Notifiers: notifiers,
		Logger:    slog.Default(),
	}
}

func (n *MultiNotifier) Notify(ctx context.Context, event Event) error {
	var lastErr error
	for _, notifier := range n.Notifiers {
		if err := notifier.Notify(ctx, event); err != nil {
			lastErr = err
			if n.Logger != nil {
				n.Logger.Warn("notifier failed",
					"error", err,
					"event_type", event.Type,
				)
			}
		}
	}
	return lastErr
}

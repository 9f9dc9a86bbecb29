// Package notify delivers new-match messages.
package notify

import (
	"context"
	"log/slog"
)

// Message is a rendered notification.
type Message struct {
	Subject string
	Text    string
	// HTML is an optional alternative body.
	HTML string
}

// Notifier delivers a Message.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// LogNotifier writes messages to a logger. It stands in for email when no
// email configuration is given.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a LogNotifier. A nil logger uses slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, msg Message) error {
	n.logger.InfoContext(ctx, "notification", "subject", msg.Subject, "body", msg.Text)
	return nil
}

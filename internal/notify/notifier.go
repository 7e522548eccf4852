// Package notify abstracts reminder delivery. The planner never talks to
// a transport directly; it hands a recipient and a rendered message to a
// Notifier and moves on to the next recipient regardless of the outcome.
package notify

import (
	"context"
	"log/slog"
)

// Recipient identifies where a message can be delivered. Adapters use
// whichever field they understand.
type Recipient struct {
	Name           string
	Email          string
	TelegramChatID int64
}

// Message is one rendered reminder.
type Message struct {
	Subject  string
	TextBody string
	HTMLBody string
	BCC      []string
}

// Notifier delivers a message to one recipient.
type Notifier interface {
	Send(ctx context.Context, to Recipient, msg Message) error
}

// LogNotifier writes messages to the structured log instead of sending
// them. It is the default adapter and the one batch tests run against.
// Bodies are not logged; they can carry raw auth tokens.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) Send(ctx context.Context, to Recipient, msg Message) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification",
		slog.String("to", to.Email),
		slog.String("name", to.Name),
		slog.String("subject", msg.Subject),
		slog.Int("text_len", len(msg.TextBody)),
	)
	return nil
}

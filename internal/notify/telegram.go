package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramNotifier delivers reminders as Telegram messages to members who
// registered a chat ID. Members without one are skipped with an error the
// planner logs and moves past.
type TelegramNotifier struct {
	api *tgbotapi.BotAPI
}

func NewTelegramNotifier(token string) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return &TelegramNotifier{api: api}, nil
}

func (n *TelegramNotifier) Send(ctx context.Context, to Recipient, msg Message) error {
	if to.TelegramChatID == 0 {
		return fmt.Errorf("recipient %q has no telegram chat", to.Name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	out := tgbotapi.NewMessage(to.TelegramChatID, msg.Subject+"\n\n"+msg.TextBody)
	if _, err := n.api.Send(out); err != nil {
		return fmt.Errorf("telegram send to %d: %w", to.TelegramChatID, err)
	}
	return nil
}

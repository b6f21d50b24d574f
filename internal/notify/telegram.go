package notify

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/arbwatch/internal/telegram"
)

// TelegramSender delivers operator notifications to one Telegram chat.
type TelegramSender struct {
	client *telegram.Client
	chatID string
}

// NewTelegramSender creates a TelegramSender posting to chatID through client.
func NewTelegramSender(client *telegram.Client, chatID string) *TelegramSender {
	return &TelegramSender{client: client, chatID: chatID}
}

// Send posts the title on its own line followed by the message.
func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	if err := t.client.SendMessage(ctx, t.chatID, title+"\n\n"+message); err != nil {
		return fmt.Errorf("notify: telegram: %w", err)
	}
	return nil
}

// Name returns the sender identifier.
func (t *TelegramSender) Name() string {
	return "telegram"
}

package adapter

import "context"

type TelegramBotAdapter interface {
	SendMessage(ctx context.Context, telegramID int64, text string) error
}

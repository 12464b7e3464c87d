package telegram

import (
	"context"
	"path"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-media-courier/internal/domain/ports/adapter"
)

var _ adapter.MediaDeliveryAdapter = (*MediaDeliveryAdapter)(nil)

// Telegram renders photos above this size unreliably; larger images go as
// documents to keep the original bytes intact.
const maxPhotoBytes = 10 * 1024 * 1024

// MediaDeliveryAdapter sends staged files into a chat, choosing the send
// method by file extension the way users expect media to render.
type MediaDeliveryAdapter struct {
	bot *tgbotapi.BotAPI
}

// NewMediaDeliveryAdapter owns its own API client. It shares the bot
// identity with the polling adapter but never calls GetUpdates, so the two
// clients do not conflict.
func NewMediaDeliveryAdapter(token string) (*MediaDeliveryAdapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &MediaDeliveryAdapter{bot: bot}, nil
}

func (a *MediaDeliveryAdapter) Deliver(ctx context.Context, d adapter.Delivery) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	file := tgbotapi.FileReader{Name: d.Filename, Reader: d.Content}

	var msg tgbotapi.Message
	var err error
	switch kind(d.Filename, d.Size) {
	case "photo":
		m := tgbotapi.NewPhoto(d.ChatID, file)
		m.Caption = d.Caption
		msg, err = a.bot.Send(m)
	case "video":
		m := tgbotapi.NewVideo(d.ChatID, file)
		m.Caption = d.Caption
		m.SupportsStreaming = true
		msg, err = a.bot.Send(m)
	default:
		m := tgbotapi.NewDocument(d.ChatID, file)
		m.Caption = d.Caption
		msg, err = a.bot.Send(m)
	}
	if err != nil {
		return "", err
	}
	return strconv.Itoa(msg.MessageID), nil
}

func kind(filename string, size int64) string {
	switch strings.ToLower(strings.TrimPrefix(path.Ext(filename), ".")) {
	case "jpg", "jpeg", "png", "webp":
		if size > maxPhotoBytes {
			return "document"
		}
		return "photo"
	case "mp4", "mov", "m4v":
		return "video"
	default:
		return "document"
	}
}

package telegram

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync/atomic"
	"time"

	"telegram-media-courier/internal/domain/ports/adapter"
)

var _ adapter.TelegramBotAdapter = (*NoopBotAdapter)(nil)

// NoopBotAdapter implements adapter.TelegramBotAdapter for local/dev testing.
// It logs messages instead of sending real Telegram messages.
type NoopBotAdapter struct{}

func NewNoopBotAdapter() *NoopBotAdapter {
	return &NoopBotAdapter{}
}

// SendMessage logs the message and simulates small delay.
func (b *NoopBotAdapter) SendMessage(ctx context.Context, tgID int64, text string) error {
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}
	log.Printf("[noop-telegram] To user %d: %s\n", tgID, text)
	return nil
}

var _ adapter.MediaDeliveryAdapter = (*NoopDeliveryAdapter)(nil)

// NoopDeliveryAdapter drains the staged content and logs the delivery.
type NoopDeliveryAdapter struct {
	seq atomic.Int64
}

func NewNoopDeliveryAdapter() *NoopDeliveryAdapter {
	return &NoopDeliveryAdapter{}
}

func (b *NoopDeliveryAdapter) Deliver(ctx context.Context, d adapter.Delivery) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	n, err := io.Copy(io.Discard, d.Content)
	if err != nil {
		return "", err
	}
	id := fmt.Sprintf("noop-%d", b.seq.Add(1))
	log.Printf("[noop-telegram] Delivered %s (%d bytes) to chat %d as %s\n", d.Filename, n, d.ChatID, id)
	return id, nil
}

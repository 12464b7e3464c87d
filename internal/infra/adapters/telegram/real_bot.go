package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-media-courier/internal/application"
	"telegram-media-courier/internal/config"
	"telegram-media-courier/internal/domain/ports/adapter"
	"telegram-media-courier/internal/infra/metrics"
	red "telegram-media-courier/internal/infra/redis"
)

var _ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)

// RealTelegramBotAdapter uses tgbotapi to poll updates and delegates to
// BotFacade. It is the only component that talks to users; job processors
// reach them through the adapter.TelegramBotAdapter port.
type RealTelegramBotAdapter struct {
	bot           *tgbotapi.BotAPI
	cfg           *config.BotConfig
	facade        *application.BotFacade
	rateLimiter   *red.RateLimiter
	sessionWindow time.Duration

	adminIDsMap   map[int64]struct{}
	updateWorkers int
	cancelPolling context.CancelFunc
	log           *zerolog.Logger
}

func NewRealTelegramBotAdapter(
	cfg *config.BotConfig,
	facade *application.BotFacade,
	rateLimiter *red.RateLimiter,
	sessionWindow time.Duration,
	logger *zerolog.Logger,
) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	if facade == nil {
		return nil, errors.New("bot facade is nil")
	}
	updateWorkers := cfg.Workers
	if updateWorkers <= 0 {
		updateWorkers = 5
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}

	adminMap := map[int64]struct{}{}
	for _, id := range cfg.AdminIDs {
		adminMap[id] = struct{}{}
	}

	botLog := logger.With().Str("component", "TelegramBot").Logger()
	return &RealTelegramBotAdapter{
		bot:           bot,
		cfg:           cfg,
		facade:        facade,
		rateLimiter:   rateLimiter,
		sessionWindow: sessionWindow,
		adminIDsMap:   adminMap,
		updateWorkers: updateWorkers,
		log:           &botLog,
	}, nil
}

func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel

	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)

	for i := 0; i < r.updateWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case up := <-updateChan:
					if err := r.handleUpdate(ctx, up); err != nil {
						r.log.Warn().Err(err).Int("worker", id).Msg("update handling failed")
					}
				}
			}
		}(i)
	}

	r.log.Info().Int("workers", r.updateWorkers).Msg("polling started")
	for {
		select {
		case <-ctx.Done():
			close(updateChan)
			wg.Wait()
			return ctx.Err()
		case up := <-updates:
			updateChan <- up
		}
	}
}

func (r *RealTelegramBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

// SendMessage implements the adapter port; job processors use it for final
// job notifications.
func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, tgID int64, text string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	msg := tgbotapi.NewMessage(tgID, text)
	_, err := r.bot.Send(msg)
	return err
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.Message == nil {
		return nil
	}
	msg := update.Message
	if msg.From == nil {
		return nil
	}

	command := "message"
	if msg.IsCommand() {
		command = "/" + msg.Command()
	}

	// Basic rate limiting per user per command
	if r.rateLimiter != nil {
		allowed, err := r.rateLimiter.Allow(ctx, red.UserCommandKey(msg.From.ID, command), 20, time.Minute)
		if err != nil {
			r.log.Warn().Err(err).Msg("rate limit check failed")
		} else if !allowed {
			metrics.IncBotCommand(command, "rate_limited")
			return r.SendMessage(ctx, msg.Chat.ID, "Rate limit exceeded. Please try again later.")
		}
	}

	if msg.IsCommand() {
		handler, ok := r.commandRoutes()[msg.Command()]
		if !ok {
			return r.SendMessage(ctx, msg.Chat.ID, "Unknown command. Use /help.")
		}
		if err := handler(ctx, msg); err != nil {
			metrics.IncBotCommand(command, "error")
			return err
		}
		metrics.IncBotCommand(command, "ok")
		return nil
	}

	return r.handlePlainMessage(ctx, msg)
}

// handlePlainMessage routes non-command text. A bare content link is treated
// as a download request; a JSON object is treated as a credential payload for
// an open submission window.
func (r *RealTelegramBotAdapter) handlePlainMessage(ctx context.Context, msg *tgbotapi.Message) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case text == "":
		return nil
	case strings.Contains(text, "instagram.com/"):
		reply, err := r.facade.HandleDownload(ctx, msg.From.ID, msg.From.UserName, text)
		if err != nil {
			return r.SendMessage(ctx, msg.Chat.ID, "Failed to queue the download.")
		}
		return r.SendMessage(ctx, msg.Chat.ID, reply)
	case strings.HasPrefix(text, "{"):
		reply, err := r.facade.HandleSessionPayload(ctx, msg.From.ID, text)
		if err != nil {
			return r.SendMessage(ctx, msg.Chat.ID, "Failed to store the session.")
		}
		// Scrub the raw payload from the chat history.
		if derr := r.deleteMessage(msg.Chat.ID, msg.MessageID); derr != nil {
			r.log.Debug().Err(derr).Msg("could not delete credential message")
		}
		return r.SendMessage(ctx, msg.Chat.ID, reply)
	default:
		return r.SendMessage(ctx, msg.Chat.ID, "Send a content link to download it, or use /help.")
	}
}

// deleteMessage removes the user's credential message from the chat so the
// raw payload does not linger in history.
func (r *RealTelegramBotAdapter) deleteMessage(chatID int64, messageID int) error {
	_, err := r.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return err
}

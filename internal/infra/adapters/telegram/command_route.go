package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-media-courier/internal/infra/metrics"
)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

// commandRoutes defines all available bot commands and their handlers.
func (r *RealTelegramBotAdapter) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start":    r.handleStartCommand,
		"download": r.handleDownloadCommand,
		"dl":       r.handleDownloadCommand,
		"job":      r.handleJobCommand,
		"status":   r.handleStatusCommand,
		"cancel":   r.handleCancelCommand,
		"help":     r.handleHelpCommand,

		"session_load":   r.handleSessionLoadCommand,
		"session_list":   r.handleSessionListCommand,
		"session_revoke": r.handleSessionRevokeCommand,

		"stats": r.adminOnly(r.handleStatsCommand),
	}
}

func (r *RealTelegramBotAdapter) adminOnly(next commandHandler) commandHandler {
	return func(ctx context.Context, message *tgbotapi.Message) error {
		if _, isAdmin := r.adminIDsMap[message.From.ID]; !isAdmin {
			metrics.IncBotCommand("/"+message.Command(), "unauthorized")
			return r.SendMessage(ctx, message.Chat.ID, "This command is restricted.")
		}
		return next(ctx, message)
	}
}

func (r *RealTelegramBotAdapter) handleStartCommand(ctx context.Context, message *tgbotapi.Message) error {
	reply, err := r.facade.HandleStart(ctx, message.From.ID, message.From.UserName)
	if err != nil {
		return r.SendMessage(ctx, message.Chat.ID, "Failed to initialize your account.")
	}
	return r.SendMessage(ctx, message.Chat.ID, reply)
}

func (r *RealTelegramBotAdapter) handleDownloadCommand(ctx context.Context, message *tgbotapi.Message) error {
	url := strings.TrimSpace(message.CommandArguments())
	if url == "" {
		return r.SendMessage(ctx, message.Chat.ID, "Usage: /download <content link>")
	}
	reply, err := r.facade.HandleDownload(ctx, message.From.ID, message.From.UserName, url)
	if err != nil {
		return r.SendMessage(ctx, message.Chat.ID, "Failed to queue the download.")
	}
	return r.SendMessage(ctx, message.Chat.ID, reply)
}

func (r *RealTelegramBotAdapter) handleJobCommand(ctx context.Context, message *tgbotapi.Message) error {
	jobID := strings.TrimSpace(message.CommandArguments())
	if jobID == "" {
		return r.SendMessage(ctx, message.Chat.ID, "Usage: /job <job id>")
	}
	reply, err := r.facade.HandleJobReport(ctx, jobID)
	if err != nil {
		return r.SendMessage(ctx, message.Chat.ID, "Failed to load the job report.")
	}
	return r.SendMessage(ctx, message.Chat.ID, reply)
}

func (r *RealTelegramBotAdapter) handleStatusCommand(ctx context.Context, message *tgbotapi.Message) error {
	reply, err := r.facade.HandleStatus(ctx, message.From.ID)
	if err != nil {
		return r.SendMessage(ctx, message.Chat.ID, "Failed to list your jobs.")
	}
	return r.SendMessage(ctx, message.Chat.ID, reply)
}

func (r *RealTelegramBotAdapter) handleCancelCommand(ctx context.Context, message *tgbotapi.Message) error {
	jobID := strings.TrimSpace(message.CommandArguments())
	if jobID == "" {
		return r.SendMessage(ctx, message.Chat.ID, "Usage: /cancel <job id>")
	}
	reply, err := r.facade.HandleCancel(ctx, jobID)
	if err != nil {
		return r.SendMessage(ctx, message.Chat.ID, "Failed to cancel the job.")
	}
	return r.SendMessage(ctx, message.Chat.ID, reply)
}

func (r *RealTelegramBotAdapter) handleSessionLoadCommand(ctx context.Context, message *tgbotapi.Message) error {
	reply, err := r.facade.HandleSessionLoadStart(ctx, message.From.ID, message.From.UserName, r.sessionWindow)
	if err != nil {
		return r.SendMessage(ctx, message.Chat.ID, "Failed to open a submission window.")
	}
	return r.SendMessage(ctx, message.Chat.ID, reply)
}

func (r *RealTelegramBotAdapter) handleSessionListCommand(ctx context.Context, message *tgbotapi.Message) error {
	reply, err := r.facade.HandleSessionList(ctx, message.From.ID)
	if err != nil {
		return r.SendMessage(ctx, message.Chat.ID, "Failed to list your sessions.")
	}
	return r.SendMessage(ctx, message.Chat.ID, reply)
}

func (r *RealTelegramBotAdapter) handleSessionRevokeCommand(ctx context.Context, message *tgbotapi.Message) error {
	sessionID := strings.TrimSpace(message.CommandArguments())
	if sessionID == "" {
		return r.SendMessage(ctx, message.Chat.ID, "Usage: /session_revoke <session id>")
	}
	reply, err := r.facade.HandleSessionRevoke(ctx, sessionID)
	if err != nil {
		return r.SendMessage(ctx, message.Chat.ID, "Failed to revoke the session.")
	}
	return r.SendMessage(ctx, message.Chat.ID, reply)
}

func (r *RealTelegramBotAdapter) handleStatsCommand(ctx context.Context, message *tgbotapi.Message) error {
	reply, err := r.facade.HandleStats(ctx)
	if err != nil {
		return r.SendMessage(ctx, message.Chat.ID, "Failed to build the stats report.")
	}
	return r.SendMessage(ctx, message.Chat.ID, reply)
}

func (r *RealTelegramBotAdapter) handleHelpCommand(ctx context.Context, message *tgbotapi.Message) error {
	reply := strings.Join([]string{
		"Commands:",
		"/download <url> - fetch the media behind a link and deliver it here",
		"/job <id> - per-file report for one job",
		"/status - your recent jobs",
		"/cancel <id> - stop a running job",
		"/session_load - store login cookies for private content",
		"/session_list - your stored sessions",
		"/session_revoke <id> - delete a stored session",
	}, "\n")
	return r.SendMessage(ctx, message.Chat.ID, reply)
}

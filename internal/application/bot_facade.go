package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"telegram-media-courier/internal/domain"
	"telegram-media-courier/internal/domain/model"
	"telegram-media-courier/internal/usecase"
)

// BotFacade composes usecases into high-level bot commands.
// Keep the facade methods returning strings so the Telegram adapter just
// forwards them to the chat.
type BotFacade struct {
	UserUC    UserUseCaseIface
	JobUC     JobUseCaseIface
	SessionUC SessionUseCaseIface
	StatsUC   StatsUseCaseIface
}

func NewBotFacade(
	userUC UserUseCaseIface,
	jobUC JobUseCaseIface,
	sessionUC SessionUseCaseIface,
	statsUC StatsUseCaseIface,
) *BotFacade {
	return &BotFacade{
		UserUC:    userUC,
		JobUC:     jobUC,
		SessionUC: sessionUC,
		StatsUC:   statsUC,
	}
}

// HandleStart registers or fetches the user and returns a welcome string.
func (b *BotFacade) HandleStart(ctx context.Context, tgID int64, username string) (string, error) {
	if b.UserUC == nil {
		return "", fmt.Errorf("user usecase not available")
	}
	u, err := b.UserUC.RegisterOrFetch(ctx, tgID, username)
	if err != nil {
		return "", fmt.Errorf("register/fetch user: %w", err)
	}
	return fmt.Sprintf("Hello %s!\nSend me a content link with /download <url> and I will fetch the media and deliver it here.\nUse /help for the full command list.", u.Username), nil
}

// HandleDownload submits a content link as a new job.
func (b *BotFacade) HandleDownload(ctx context.Context, tgID int64, username, sourceURL string) (string, error) {
	if b.UserUC == nil || b.JobUC == nil {
		return "", fmt.Errorf("usecases not available")
	}
	user, err := b.UserUC.RegisterOrFetch(ctx, tgID, username)
	if err != nil {
		return "", fmt.Errorf("register/fetch user: %w", err)
	}
	job, err := b.JobUC.Submit(ctx, user.ID, sourceURL)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			return "That does not look like a content link. Send the full URL.", nil
		}
		return "", fmt.Errorf("submit job: %w", err)
	}
	return fmt.Sprintf("Job queued.\nID: %s\nTrack it with /job %s", job.ID, job.ID), nil
}

// HandleJobReport renders the per-file report for one job.
func (b *BotFacade) HandleJobReport(ctx context.Context, jobID string) (string, error) {
	if b.JobUC == nil {
		return "", fmt.Errorf("job usecase not available")
	}
	report, err := b.JobUC.GetReport(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "No job with that ID.", nil
		}
		return "", fmt.Errorf("get report: %w", err)
	}
	return FormatReport(report), nil
}

// HandleStatus lists the user's recent jobs.
func (b *BotFacade) HandleStatus(ctx context.Context, tgID int64) (string, error) {
	if b.UserUC == nil || b.JobUC == nil {
		return "", fmt.Errorf("usecases not available")
	}
	user, err := b.UserUC.GetByTelegramID(ctx, tgID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "No account found. Try /start first.", nil
		}
		return "", fmt.Errorf("get user: %w", err)
	}
	jobs, err := b.JobUC.ListRecent(ctx, user.ID, 10)
	if err != nil {
		return "", fmt.Errorf("list jobs: %w", err)
	}
	if len(jobs) == 0 {
		return "No jobs yet. Submit one with /download <url>.", nil
	}
	var sb strings.Builder
	sb.WriteString("Your recent jobs:\n")
	for _, j := range jobs {
		sb.WriteString(fmt.Sprintf("%s %s - %s\n", statusIcon(j.Status), j.ID, j.Status))
	}
	sb.WriteString("\nDetails: /job <id>   Cancel: /cancel <id>")
	return sb.String(), nil
}

// HandleCancel requests sticky cancellation of one job.
func (b *BotFacade) HandleCancel(ctx context.Context, jobID string) (string, error) {
	if b.JobUC == nil {
		return "", fmt.Errorf("job usecase not available")
	}
	if err := b.JobUC.Cancel(ctx, jobID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "No job with that ID.", nil
		}
		return "", fmt.Errorf("cancel job: %w", err)
	}
	return fmt.Sprintf("Cancellation requested for %s. Files already delivered stay delivered.", jobID), nil
}

// HandleSessionLoadStart opens the bounded credential submission window.
func (b *BotFacade) HandleSessionLoadStart(ctx context.Context, tgID int64, username string, window time.Duration) (string, error) {
	if b.UserUC == nil || b.SessionUC == nil {
		return "", fmt.Errorf("usecases not available")
	}
	user, err := b.UserUC.RegisterOrFetch(ctx, tgID, username)
	if err != nil {
		return "", fmt.Errorf("register/fetch user: %w", err)
	}
	b.SessionUC.BeginSubmission(user.ID)
	return fmt.Sprintf("Send your session cookies as a JSON object within %s.\nThe payload is encrypted at rest and never echoed back.", window), nil
}

// HandleSessionPayload consumes an open submission window and validates the
// credential upstream.
func (b *BotFacade) HandleSessionPayload(ctx context.Context, tgID int64, payload string) (string, error) {
	if b.UserUC == nil || b.SessionUC == nil {
		return "", fmt.Errorf("usecases not available")
	}
	user, err := b.UserUC.GetByTelegramID(ctx, tgID)
	if err != nil {
		return "No account found. Try /start first.", nil
	}
	sess, err := b.SessionUC.Submit(ctx, user.ID, model.SessionSourceBrowser, payload)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			return "The payload is missing required cookies or no submission window is open. Start over with /session_load.", nil
		}
		return "", fmt.Errorf("submit session: %w", err)
	}
	if _, err := b.SessionUC.Validate(ctx, sess.ID); err != nil {
		if errors.Is(err, domain.ErrSessionInvalid) {
			return "The source rejected these credentials. Export a fresh session and try again.", nil
		}
		return "Stored, but validation could not reach the source. The session stays unvalidated; retry later.", nil
	}
	return "Session validated and active. Authenticated links will use it.", nil
}

// HandleSessionList renders the user's stored sessions without payloads.
func (b *BotFacade) HandleSessionList(ctx context.Context, tgID int64) (string, error) {
	if b.UserUC == nil || b.SessionUC == nil {
		return "", fmt.Errorf("usecases not available")
	}
	user, err := b.UserUC.GetByTelegramID(ctx, tgID)
	if err != nil {
		return "No account found. Try /start first.", nil
	}
	summaries, err := b.SessionUC.List(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("list sessions: %w", err)
	}
	if len(summaries) == 0 {
		return "No stored sessions. Load one with /session_load.", nil
	}
	var sb strings.Builder
	sb.WriteString("Your sessions:\n")
	for _, s := range summaries {
		line := fmt.Sprintf("- %s [%s] %s", s.ID, s.Source, s.State)
		if s.ExpiresAt != nil {
			line += " expires " + s.ExpiresAt.Format("2006-01-02")
		}
		sb.WriteString(line + "\n")
	}
	sb.WriteString("\nRevoke: /session_revoke <id>")
	return sb.String(), nil
}

// HandleSessionRevoke deletes a stored session. Revoking an absent session
// succeeds.
func (b *BotFacade) HandleSessionRevoke(ctx context.Context, sessionID string) (string, error) {
	if b.SessionUC == nil {
		return "", fmt.Errorf("session usecase not available")
	}
	if err := b.SessionUC.Revoke(ctx, sessionID); err != nil {
		return "", fmt.Errorf("revoke session: %w", err)
	}
	return "Session revoked and its credentials deleted.", nil
}

// HandleStats builds the admin-facing 24h report.
func (b *BotFacade) HandleStats(ctx context.Context) (string, error) {
	if b.StatsUC == nil {
		return "", fmt.Errorf("stats usecase not available")
	}
	stats, err := b.StatsUC.Daily(ctx)
	if err != nil {
		return "", fmt.Errorf("daily stats: %w", err)
	}
	var sb strings.Builder
	sb.WriteString("📊 Last 24 hours:\n\n")
	sb.WriteString(fmt.Sprintf("📥 Jobs: %d\n", stats.Total))
	for _, st := range []model.JobStatus{
		model.JobStatusCompleted, model.JobStatusPartiallyFailed,
		model.JobStatusFailed, model.JobStatusCancelled, model.JobStatusInterrupted,
	} {
		if n := stats.ByStatus[st]; n > 0 {
			sb.WriteString(fmt.Sprintf("  %s %s: %d\n", statusIcon(st), st, n))
		}
	}
	sb.WriteString(fmt.Sprintf("\n👥 Users: %d\n", stats.UserCount))
	return sb.String(), nil
}

// FormatReport renders a job report as chat text. Failed files are always
// enumerated with their causes.
func FormatReport(r *usecase.JobReport) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s Job %s - %s\n", statusIcon(r.Status), r.JobID, r.Status))
	sb.WriteString(fmt.Sprintf("Link: %s\n", r.SourceURL))
	sb.WriteString(fmt.Sprintf("Files: %d total, %d downloaded, %d delivered, %d failed",
		r.TotalFiles, r.Downloaded, r.Uploaded, r.Failed))
	if r.Pending > 0 {
		sb.WriteString(fmt.Sprintf(", %d in flight", r.Pending))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Elapsed: %s\n", r.Duration.Round(time.Second)))
	if r.Error != "" {
		sb.WriteString("Reason: " + r.Error + "\n")
	}
	var failed []usecase.ItemSummary
	for _, it := range r.Items {
		if it.FailureCause != "" {
			failed = append(failed, it)
		}
	}
	if len(failed) > 0 {
		sb.WriteString("\nFailed files:\n")
		for _, it := range failed {
			name := it.Filename
			if name == "" {
				name = fmt.Sprintf("file #%d", it.Seq+1)
			}
			sb.WriteString(fmt.Sprintf("- %s: %s\n", name, it.FailureCause))
		}
	}
	return sb.String()
}

func statusIcon(s model.JobStatus) string {
	switch s {
	case model.JobStatusCompleted:
		return "✅"
	case model.JobStatusPartiallyFailed:
		return "⚠️"
	case model.JobStatusFailed, model.JobStatusInterrupted:
		return "❌"
	case model.JobStatusCancelled:
		return "🚫"
	case model.JobStatusPending:
		return "⏳"
	default:
		return "⬇️"
	}
}

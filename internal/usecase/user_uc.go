package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telegram-media-courier/internal/domain"
	"telegram-media-courier/internal/domain/model"
	"telegram-media-courier/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

var _ UserUseCase = (*userUC)(nil)

// UserUseCase maps Telegram identities onto domain users. The user ID is the
// owner scope for jobs and sessions.
type UserUseCase interface {
	RegisterOrFetch(ctx context.Context, tgID int64, username string) (*model.User, error)
	GetByTelegramID(ctx context.Context, tgID int64) (*model.User, error)
}

type userUC struct {
	users repository.UserRepository
	log   *zerolog.Logger
}

func NewUserUseCase(users repository.UserRepository, logger *zerolog.Logger) *userUC {
	ucLog := logger.With().Str("component", "UserUC").Logger()
	return &userUC{users: users, log: &ucLog}
}

func (u *userUC) RegisterOrFetch(ctx context.Context, tgID int64, username string) (*model.User, error) {
	user, err := u.users.FindByTelegramID(ctx, nil, tgID)
	if err == nil {
		user.LastActiveAt = time.Now()
		if username != "" {
			user.Username = username
		}
		if err := u.users.Save(ctx, nil, user); err != nil {
			return nil, fmt.Errorf("touch user: %w", err)
		}
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if username == "" {
		// Telegram usernames are optional; fall back to a stable handle.
		username = fmt.Sprintf("tg%d", tgID)
	}
	user, err = model.NewUser("", tgID, username)
	if err != nil {
		return nil, err
	}
	if err := u.users.Save(ctx, nil, user); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}
	u.log.Info().Str("user_id", user.ID).Int64("tg_id", tgID).Msg("user registered")
	return user, nil
}

func (u *userUC) GetByTelegramID(ctx context.Context, tgID int64) (*model.User, error) {
	return u.users.FindByTelegramID(ctx, nil, tgID)
}

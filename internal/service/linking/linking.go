// Package linking resolves bot link tokens against web sessions.
package linking

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/protomem/district-tasks/internal/database"
	"github.com/protomem/district-tasks/internal/linkstore"
	"github.com/protomem/district-tasks/internal/model"
)

var (
	ErrMissingToken = errors.New("link token is missing")
	ErrInvalidToken = linkstore.ErrInvalidToken
)

type Tokens interface {
	Lookup(ctx context.Context, token string) (linkstore.Entry, error)
	Consume(ctx context.Context, token string) error
}

type Members interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (model.User, error)
	Update(ctx context.Context, id model.ID, dto database.UpdateUserDTO) error
}

type OutcomeKind int

const (
	// OutcomeLinked: the telegram id is now bound to the current member.
	OutcomeLinked OutcomeKind = iota + 1
	// OutcomeLoggedIn: the visitor should be logged in as Outcome.User.
	OutcomeLoggedIn
	// OutcomePending: nobody owns the telegram id yet; the visitor has to
	// log in before it can be bound.
	OutcomePending
)

type Outcome struct {
	Kind       OutcomeKind
	User       model.User
	TelegramID int64
}

type Service struct {
	logger  *slog.Logger
	tokens  Tokens
	members Members
}

func NewService(logger *slog.Logger, tokens Tokens, members Members) *Service {
	return &Service{
		logger:  logger.With("service", "linking"),
		tokens:  tokens,
		members: members,
	}
}

// Resolve presents token on behalf of the visitor. current is nil for
// anonymous visitors. Failed resolutions leave accounts untouched: the token
// is consumed before any account is bound.
func (s *Service) Resolve(ctx context.Context, token string, current *model.User) (Outcome, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Outcome{}, ErrMissingToken
	}

	entry, err := s.tokens.Lookup(ctx, token)
	if err != nil {
		return Outcome{}, err
	}

	if current != nil {
		if err := s.claim(ctx, current.ID, entry.TelegramID, token); err != nil {
			return Outcome{}, err
		}

		user := *current
		user.TelegramID = &entry.TelegramID

		s.logger.Info("telegram linked", "userId", user.ID, "telegramId", entry.TelegramID)

		return Outcome{Kind: OutcomeLinked, User: user, TelegramID: entry.TelegramID}, nil
	}

	owner, err := s.members.GetByTelegramID(ctx, entry.TelegramID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		s.logger.Debug("telegram link pending login", "telegramId", entry.TelegramID)

		return Outcome{Kind: OutcomePending, TelegramID: entry.TelegramID}, nil
	case err != nil:
		return Outcome{}, err
	}

	if err := s.tokens.Consume(ctx, token); err != nil {
		return Outcome{}, err
	}

	s.logger.Info("telegram login", "userId", owner.ID, "telegramId", entry.TelegramID)

	return Outcome{Kind: OutcomeLoggedIn, User: owner, TelegramID: entry.TelegramID}, nil
}

// CompletePending binds a pending telegram id after a password login and
// consumes its token.
func (s *Service) CompletePending(ctx context.Context, user model.User, telegramID int64, token string) error {
	entry, err := s.tokens.Lookup(ctx, token)
	if err != nil {
		return err
	}
	if entry.TelegramID != telegramID {
		return ErrInvalidToken
	}

	if err := s.claim(ctx, user.ID, telegramID, token); err != nil {
		return err
	}

	s.logger.Info("pending telegram link completed", "userId", user.ID, "telegramId", telegramID)

	return nil
}

// claim binds telegramID to user and spends token. A telegram id owned by
// someone else is refused while the token is still unspent; the unique
// constraint on users.telegram_id catches the remaining race.
func (s *Service) claim(ctx context.Context, user model.ID, telegramID int64, token string) error {
	owner, err := s.members.GetByTelegramID(ctx, telegramID)
	switch {
	case err == nil && owner.ID != user:
		return model.NewError("user", model.ErrTelegramTaken)
	case err != nil && !errors.Is(err, model.ErrNotFound):
		return err
	}

	if err := s.tokens.Consume(ctx, token); err != nil {
		return err
	}

	return s.members.Update(ctx, user, database.UpdateUserDTO{TelegramID: &telegramID})
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dtroode/anonrelay-server/internal/logger"
	"github.com/dtroode/anonrelay-server/internal/model"
)

// Admin is the management surface backing external dashboards: user and
// keyword listings, block control, message history, aggregate statistics,
// and verification settings.
type Admin struct {
	users     model.UserStore
	keywords  model.KeywordStore
	filter    *KeywordFilter
	messages  model.SentMessageStore
	settings  model.SettingsStore
	transport model.Transport
	logger    *logger.Logger
}

func NewAdmin(
	users model.UserStore,
	keywords model.KeywordStore,
	filter *KeywordFilter,
	messages model.SentMessageStore,
	settings model.SettingsStore,
	transport model.Transport,
	logger *logger.Logger,
) *Admin {
	return &Admin{
		users:     users,
		keywords:  keywords,
		filter:    filter,
		messages:  messages,
		settings:  settings,
		transport: transport,
		logger:    logger,
	}
}

// RelayStats aggregates the counters shown on the dashboard overview.
type RelayStats struct {
	Users    model.UserCounts
	Keywords int
}

// ListUsers returns a page of users filtered and ordered per params.
func (a *Admin) ListUsers(ctx context.Context, params model.ListUsersParams) (model.UserPage, error) {
	return a.users.List(ctx, params)
}

// ListKeywords returns a page of blocked keywords, newest first.
func (a *Admin) ListKeywords(ctx context.Context, params model.ListKeywordsParams) (model.KeywordPage, error) {
	return a.keywords.List(ctx, params)
}

// AddKeywords normalizes and stores a batch of keywords, reporting which
// were added and which already existed.
func (a *Admin) AddKeywords(ctx context.Context, keywords []string) (added, existing []model.BlockedKeyword, err error) {
	return a.filter.AddBatch(ctx, keywords)
}

// RemoveKeyword deletes a keyword by id; ErrNotFound when absent.
func (a *Admin) RemoveKeyword(ctx context.Context, id int64) error {
	return a.keywords.RemoveByID(ctx, id)
}

// SetUserBlocked updates a user's block state and notifies the user of the
// change on a best-effort basis.
func (a *Admin) SetUserBlocked(ctx context.Context, userID int64, blocked bool) error {
	user, err := a.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := a.users.SetBlocked(ctx, userID, blocked); err != nil {
		return fmt.Errorf("failed to set blocked: %w", err)
	}

	notice := unblockedNotice(user.LanguageCode)
	if blocked {
		notice = blockedNotice(user.LanguageCode)
	}
	if err := a.transport.SendMessage(ctx, userID, notice); err != nil {
		a.logger.Error("Admin: failed to notify user of block change",
			"user_id", userID, "blocked", blocked, "error", err)
	}

	a.logger.Info("Admin: user block state changed", "user_id", userID, "blocked", blocked)
	return nil
}

// GetUser returns one user by id.
func (a *Admin) GetUser(ctx context.Context, userID int64) (model.User, error) {
	return a.users.GetByID(ctx, userID)
}

// ListUserMessages returns a page of a user's forwarded-message history.
func (a *Admin) ListUserMessages(ctx context.Context, filter model.MessageFilter) (model.MessagePage, error) {
	if _, err := a.users.GetByID(ctx, filter.UserID); err != nil {
		return model.MessagePage{}, err
	}
	return a.messages.ListByUser(ctx, filter)
}

// Stats returns aggregate user and keyword counters.
func (a *Admin) Stats(ctx context.Context) (RelayStats, error) {
	counts, err := a.users.Counts(ctx)
	if err != nil {
		return RelayStats{}, fmt.Errorf("failed to count users: %w", err)
	}

	keywords, err := a.keywords.Count(ctx)
	if err != nil {
		return RelayStats{}, fmt.Errorf("failed to count keywords: %w", err)
	}

	return RelayStats{Users: counts, Keywords: keywords}, nil
}

// DailyStats returns per-day forwarded-message counts for the trailing
// window ending today, zero-filled for quiet days.
func (a *Admin) DailyStats(ctx context.Context, from time.Time, days int) ([]model.DayCount, error) {
	if days <= 0 {
		return nil, fmt.Errorf("days must be positive: %w", model.ErrInvalidInput)
	}
	return a.messages.DailyCounts(ctx, from, days)
}

// VerificationSettings returns the current challenge configuration.
func (a *Admin) VerificationSettings(ctx context.Context) (model.VerificationSettings, error) {
	return a.settings.VerificationSettings(ctx)
}

// UpdateVerificationSettings validates and stores a new challenge
// configuration. Changes apply to challenges issued afterwards; live
// challenges keep the kind they were issued with.
func (a *Admin) UpdateVerificationSettings(ctx context.Context, s model.VerificationSettings) (model.VerificationSettings, error) {
	switch s.Kind {
	case model.ChallengeSimple, model.ChallengeArithmetic, model.ChallengeImageCode:
	default:
		return model.VerificationSettings{}, fmt.Errorf("unknown challenge kind %q: %w", s.Kind, model.ErrInvalidInput)
	}

	switch s.Difficulty {
	case model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard, model.DifficultyExtreme:
	default:
		return model.VerificationSettings{}, fmt.Errorf("unknown difficulty %q: %w", s.Difficulty, model.ErrInvalidInput)
	}

	updated, err := a.settings.UpdateVerificationSettings(ctx, s)
	if err != nil {
		return model.VerificationSettings{}, fmt.Errorf("failed to update verification settings: %w", err)
	}

	a.logger.Info("Admin: verification settings updated",
		"enabled", updated.Enabled, "kind", updated.Kind, "difficulty", updated.Difficulty)
	return updated, nil
}

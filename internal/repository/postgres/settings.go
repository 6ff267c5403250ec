package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dtroode/anonrelay-server/internal/model"
)

var (
	_ model.SettingsStore = (*SettingsRepository)(nil)
	_ model.WelcomeStore  = (*SettingsRepository)(nil)
)

// SettingsRepository reads and writes the single verification settings row
// and the per-language welcome messages, both seeded by migration.
type SettingsRepository struct {
	db *Connection
}

func NewSettingsRepository(db *Connection) *SettingsRepository {
	return &SettingsRepository{
		db: db,
	}
}

func (r *SettingsRepository) VerificationSettings(ctx context.Context) (model.VerificationSettings, error) {
	query := `SELECT enabled, kind, difficulty, updated_at FROM verification_settings WHERE id = 1`

	var s model.VerificationSettings
	err := r.db.QueryRow(ctx, query).Scan(&s.Enabled, &s.Kind, &s.Difficulty, &s.UpdatedAt)
	if err != nil {
		return model.VerificationSettings{}, fmt.Errorf("failed to get verification settings: %w", err)
	}

	return s, nil
}

func (r *SettingsRepository) UpdateVerificationSettings(ctx context.Context, s model.VerificationSettings) (model.VerificationSettings, error) {
	query := `UPDATE verification_settings
			  SET enabled = $1, kind = $2, difficulty = $3, updated_at = $4
			  WHERE id = 1
			  RETURNING enabled, kind, difficulty, updated_at`

	var saved model.VerificationSettings
	err := r.db.QueryRow(ctx, query, s.Enabled, s.Kind, s.Difficulty, time.Now().UTC()).Scan(
		&saved.Enabled, &saved.Kind, &saved.Difficulty, &saved.UpdatedAt,
	)
	if err != nil {
		return model.VerificationSettings{}, fmt.Errorf("failed to update verification settings: %w", err)
	}

	return saved, nil
}

func (r *SettingsRepository) WelcomeByLang(ctx context.Context, lang string) (model.WelcomeMessage, error) {
	query := `SELECT lang, content FROM welcome_messages WHERE lang = $1`

	var msg model.WelcomeMessage
	err := r.db.QueryRow(ctx, query, lang).Scan(&msg.Lang, &msg.Content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.WelcomeMessage{}, model.ErrNotFound
		}
		return model.WelcomeMessage{}, fmt.Errorf("failed to get welcome message: %w", err)
	}

	return msg, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dtroode/anonrelay-server/internal/model"
)

var _ model.ForwardStore = (*ForwardRepository)(nil)

type ForwardRepository struct {
	db *Connection
}

func NewForwardRepository(db *Connection) *ForwardRepository {
	return &ForwardRepository{
		db: db,
	}
}

// Record upserts a forwarded-message mapping in a single statement. The CTE
// reads the prior owner in the same snapshot as the write, so a duplicate
// message id bound to a different user is detected atomically.
func (r *ForwardRepository) Record(ctx context.Context, messageID, userID int64, now time.Time) (int64, bool, error) {
	query := `WITH existing AS (
				  SELECT user_id FROM forward_mappings WHERE message_id = $1
			  ), upserted AS (
				  INSERT INTO forward_mappings (message_id, user_id, created_at)
				  VALUES ($1, $2, $3)
				  ON CONFLICT (message_id) DO UPDATE SET user_id = EXCLUDED.user_id
			  )
			  SELECT user_id FROM existing`

	var prevUserID int64
	err := r.db.QueryRow(ctx, query, messageID, userID, now).Scan(&prevUserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to record forward mapping: %w", err)
	}

	return prevUserID, true, nil
}

func (r *ForwardRepository) Resolve(ctx context.Context, messageID int64) (int64, error) {
	var userID int64
	err := r.db.QueryRow(ctx, `SELECT user_id FROM forward_mappings WHERE message_id = $1`, messageID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, model.ErrNotFound
		}
		return 0, fmt.Errorf("failed to resolve forward mapping: %w", err)
	}

	return userID, nil
}

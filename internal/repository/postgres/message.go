package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dtroode/anonrelay-server/internal/model"
)

var _ model.SentMessageStore = (*SentMessageRepository)(nil)

type SentMessageRepository struct {
	db *Connection
}

func NewSentMessageRepository(db *Connection) *SentMessageRepository {
	return &SentMessageRepository{
		db: db,
	}
}

func (r *SentMessageRepository) Append(ctx context.Context, msg model.SentMessage) (model.SentMessage, error) {
	query := `INSERT INTO sent_messages (user_id, message_text, sent_at)
			  VALUES ($1, $2, $3)
			  RETURNING id, user_id, message_text, sent_at`

	var saved model.SentMessage
	err := r.db.QueryRow(ctx, query, msg.UserID, msg.Text, msg.SentAt).Scan(
		&saved.ID, &saved.UserID, &saved.Text, &saved.SentAt,
	)
	if err != nil {
		return model.SentMessage{}, fmt.Errorf("failed to append sent message: %w", err)
	}

	return saved, nil
}

func (r *SentMessageRepository) ListByUser(ctx context.Context, filter model.MessageFilter) (model.MessagePage, error) {
	where := []string{"user_id = $1"}
	args := []any{filter.UserID}

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("message_text ILIKE $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("sent_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("sent_at <= $%d", len(args)))
	}

	clause := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM sent_messages`+clause, args...).Scan(&total); err != nil {
		return model.MessagePage{}, fmt.Errorf("failed to count sent messages: %w", err)
	}

	page, perPage := normalizePage(filter.Page, filter.PerPage)
	query := fmt.Sprintf(`SELECT id, user_id, message_text, sent_at FROM sent_messages`+clause+
		` ORDER BY sent_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return model.MessagePage{}, fmt.Errorf("failed to list sent messages: %w", err)
	}
	defer rows.Close()

	messages := make([]model.SentMessage, 0, perPage)
	for rows.Next() {
		var msg model.SentMessage
		if err := rows.Scan(&msg.ID, &msg.UserID, &msg.Text, &msg.SentAt); err != nil {
			return model.MessagePage{}, fmt.Errorf("failed to scan sent message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return model.MessagePage{}, fmt.Errorf("failed to read sent messages: %w", err)
	}

	return model.MessagePage{
		Messages:   messages,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages(total, perPage),
	}, nil
}

// DailyCounts returns per-day forwarded message counts starting at from,
// including days with no messages.
func (r *SentMessageRepository) DailyCounts(ctx context.Context, from time.Time, days int) ([]model.DayCount, error) {
	if days < 1 {
		days = 1
	}
	// Bucket in UTC on both sides; date_trunc on a timestamptz would use
	// the session time zone instead.
	start := from.UTC().Truncate(24 * time.Hour)
	end := start.AddDate(0, 0, days)

	query := `SELECT date_trunc('day', sent_at AT TIME ZONE 'UTC') AS day, COUNT(*)
			  FROM sent_messages
			  WHERE sent_at >= $1 AND sent_at < $2
			  GROUP BY day
			  ORDER BY day`

	rows, err := r.db.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to count daily messages: %w", err)
	}
	defer rows.Close()

	byDay := make(map[time.Time]int, days)
	for rows.Next() {
		var day time.Time
		var count int
		if err := rows.Scan(&day, &count); err != nil {
			return nil, fmt.Errorf("failed to scan daily count: %w", err)
		}
		byDay[day.UTC()] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read daily counts: %w", err)
	}

	counts := make([]model.DayCount, 0, days)
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i).UTC()
		counts = append(counts, model.DayCount{Day: day, Count: byDay[day]})
	}

	return counts, nil
}

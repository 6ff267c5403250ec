package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dtroode/anonrelay-server/internal/model"
)

var _ model.KeywordStore = (*KeywordRepository)(nil)

type KeywordRepository struct {
	db *Connection
}

func NewKeywordRepository(db *Connection) *KeywordRepository {
	return &KeywordRepository{
		db: db,
	}
}

// Add inserts a normalized keyword. The second return value reports whether
// the keyword was newly created; when it already existed the stored row is
// returned unchanged.
func (r *KeywordRepository) Add(ctx context.Context, keyword string, addedAt time.Time) (model.BlockedKeyword, bool, error) {
	insert := `INSERT INTO blocked_keywords (keyword, added_at)
			   VALUES ($1, $2)
			   ON CONFLICT (keyword) DO NOTHING
			   RETURNING id, keyword, added_at`

	var kw model.BlockedKeyword
	err := r.db.QueryRow(ctx, insert, keyword, addedAt).Scan(&kw.ID, &kw.Keyword, &kw.AddedAt)
	if err == nil {
		return kw, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.BlockedKeyword{}, false, fmt.Errorf("failed to add keyword: %w", err)
	}

	// Conflict: fetch the existing row.
	query := `SELECT id, keyword, added_at FROM blocked_keywords WHERE keyword = $1`
	err = r.db.QueryRow(ctx, query, keyword).Scan(&kw.ID, &kw.Keyword, &kw.AddedAt)
	if err != nil {
		return model.BlockedKeyword{}, false, fmt.Errorf("failed to get existing keyword: %w", err)
	}

	return kw, false, nil
}

func (r *KeywordRepository) Remove(ctx context.Context, keyword string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM blocked_keywords WHERE keyword = $1`, keyword)
	if err != nil {
		return fmt.Errorf("failed to remove keyword: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	return nil
}

func (r *KeywordRepository) RemoveByID(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM blocked_keywords WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to remove keyword by id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	return nil
}

// ListAll returns every keyword in insertion order; the filter depends on
// this ordering for deterministic first-match semantics.
func (r *KeywordRepository) ListAll(ctx context.Context) ([]model.BlockedKeyword, error) {
	rows, err := r.db.Query(ctx, `SELECT id, keyword, added_at FROM blocked_keywords ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list keywords: %w", err)
	}
	defer rows.Close()

	var keywords []model.BlockedKeyword
	for rows.Next() {
		var kw model.BlockedKeyword
		if err := rows.Scan(&kw.ID, &kw.Keyword, &kw.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan keyword: %w", err)
		}
		keywords = append(keywords, kw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read keywords: %w", err)
	}

	return keywords, nil
}

func (r *KeywordRepository) List(ctx context.Context, params model.ListKeywordsParams) (model.KeywordPage, error) {
	clause := ""
	args := make([]any, 0, 3)
	if params.Search != "" {
		clause = " WHERE keyword ILIKE $1"
		args = append(args, "%"+params.Search+"%")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM blocked_keywords`+clause, args...).Scan(&total); err != nil {
		return model.KeywordPage{}, fmt.Errorf("failed to count keywords: %w", err)
	}

	page, perPage := normalizePage(params.Page, params.PerPage)
	query := fmt.Sprintf(`SELECT id, keyword, added_at FROM blocked_keywords`+clause+
		` ORDER BY added_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return model.KeywordPage{}, fmt.Errorf("failed to list keywords: %w", err)
	}
	defer rows.Close()

	keywords := make([]model.BlockedKeyword, 0, perPage)
	for rows.Next() {
		var kw model.BlockedKeyword
		if err := rows.Scan(&kw.ID, &kw.Keyword, &kw.AddedAt); err != nil {
			return model.KeywordPage{}, fmt.Errorf("failed to scan keyword: %w", err)
		}
		keywords = append(keywords, kw)
	}
	if err := rows.Err(); err != nil {
		return model.KeywordPage{}, fmt.Errorf("failed to read keywords: %w", err)
	}

	return model.KeywordPage{
		Keywords:   keywords,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages(total, perPage),
	}, nil
}

func (r *KeywordRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM blocked_keywords`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count keywords: %w", err)
	}
	return total, nil
}

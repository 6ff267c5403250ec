package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dtroode/anonrelay-server/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

type UserRepository struct {
	db *Connection
}

func NewUserRepository(db *Connection) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

const userColumns = `id, username, first_name, last_name, language_code, verified, blocked, created_at, last_seen_at`

func scanUser(row pgx.Row) (model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID, &user.Username, &user.FirstName, &user.LastName, &user.LanguageCode,
		&user.Verified, &user.Blocked, &user.CreatedAt, &user.LastSeenAt,
	)
	return user, err
}

// Upsert inserts the user on first contact and refreshes display attributes
// and last seen on every later one. The write is a single atomic statement;
// last_seen_at never moves backwards.
func (r *UserRepository) Upsert(ctx context.Context, profile model.UserProfile) (model.User, error) {
	query := `INSERT INTO users (id, username, first_name, last_name, language_code, verified, blocked, created_at, last_seen_at)
			  VALUES ($1, $2, $3, $4, $5, FALSE, FALSE, $6, $6)
			  ON CONFLICT (id) DO UPDATE SET
			      username = EXCLUDED.username,
			      first_name = EXCLUDED.first_name,
			      last_name = EXCLUDED.last_name,
			      language_code = EXCLUDED.language_code,
			      last_seen_at = GREATEST(users.last_seen_at, EXCLUDED.last_seen_at)
			  RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query,
		profile.ID, profile.Username, profile.FirstName, profile.LastName, profile.LanguageCode,
		time.Now().UTC(),
	))
	if err != nil {
		return model.User{}, fmt.Errorf("failed to upsert user: %w", err)
	}

	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user by id: %w", err)
	}

	return user, nil
}

func (r *UserRepository) SetVerified(ctx context.Context, id int64, verified bool) error {
	return r.setFlag(ctx, id, "verified", verified)
}

func (r *UserRepository) SetBlocked(ctx context.Context, id int64, blocked bool) error {
	return r.setFlag(ctx, id, "blocked", blocked)
}

func (r *UserRepository) setFlag(ctx context.Context, id int64, column string, value bool) error {
	query := fmt.Sprintf(`UPDATE users SET %s = $2 WHERE id = $1`, column)

	tag, err := r.db.Exec(ctx, query, id, value)
	if err != nil {
		return fmt.Errorf("failed to set user %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	return nil
}

func (r *UserRepository) List(ctx context.Context, params model.ListUsersParams) (model.UserPage, error) {
	where := make([]string, 0, 2)
	args := make([]any, 0, 2)

	if params.BlockedOnly {
		where = append(where, "blocked")
	}
	if params.Search != "" {
		args = append(args, "%"+params.Search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(id::text ILIKE $%d OR username ILIKE $%d OR first_name ILIKE $%d OR last_name ILIKE $%d)", n, n, n, n))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`+clause, args...).Scan(&total); err != nil {
		return model.UserPage{}, fmt.Errorf("failed to count users: %w", err)
	}

	page, perPage := normalizePage(params.Page, params.PerPage)
	query := fmt.Sprintf(`SELECT `+userColumns+` FROM users`+clause+
		` ORDER BY last_seen_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return model.UserPage{}, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0, perPage)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return model.UserPage{}, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return model.UserPage{}, fmt.Errorf("failed to read users: %w", err)
	}

	return model.UserPage{
		Users:      users,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages(total, perPage),
	}, nil
}

func (r *UserRepository) Counts(ctx context.Context) (model.UserCounts, error) {
	query := `SELECT COUNT(*),
				 COUNT(*) FILTER (WHERE blocked),
				 COUNT(*) FILTER (WHERE verified)
			  FROM users`

	var counts model.UserCounts
	err := r.db.QueryRow(ctx, query).Scan(&counts.Total, &counts.Blocked, &counts.Verified)
	if err != nil {
		return model.UserCounts{}, fmt.Errorf("failed to count users: %w", err)
	}

	return counts, nil
}

func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	return page, perPage
}

func totalPages(total, perPage int) int {
	return (total + perPage - 1) / perPage
}

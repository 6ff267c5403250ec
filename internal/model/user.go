package model

import (
	"context"
	"time"
)

// UserStore defines persistence operations for relay users.
type UserStore interface {
	Upsert(ctx context.Context, profile UserProfile) (User, error)
	GetByID(ctx context.Context, id int64) (User, error)
	SetVerified(ctx context.Context, id int64, verified bool) error
	SetBlocked(ctx context.Context, id int64, blocked bool) error
	List(ctx context.Context, params ListUsersParams) (UserPage, error)
	Counts(ctx context.Context) (UserCounts, error)
}

// User represents a stored end user of the relay. Users are created on the
// first observed event from their platform identity and are never deleted.
type User struct {
	ID           int64
	Username     string
	FirstName    string
	LastName     string
	LanguageCode string
	Verified     bool
	Blocked      bool
	CreatedAt    time.Time
	LastSeenAt   time.Time
}

// UserProfile carries the platform identity and display attributes observed
// on an inbound event. Display attributes are informational only.
type UserProfile struct {
	ID           int64
	Username     string
	FirstName    string
	LastName     string
	LanguageCode string
}

// ListUsersParams contains filters for paginated user listings.
type ListUsersParams struct {
	Page        int
	PerPage     int
	Search      string
	BlockedOnly bool
}

// UserPage is one page of a user listing ordered by last seen, newest first.
type UserPage struct {
	Users      []User
	Total      int
	Page       int
	PerPage    int
	TotalPages int
}

// UserCounts contains aggregate user counters for reporting.
type UserCounts struct {
	Total    int
	Blocked  int
	Verified int
}

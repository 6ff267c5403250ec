package model

import (
	"context"
	"time"
)

// ForwardStore persists the mapping from a message id delivered into the
// operator channel to the user who originated it. Mappings are retained
// indefinitely: reply chains may be arbitrarily delayed.
type ForwardStore interface {
	// Record upserts a mapping. When an entry for messageID already exists
	// it reports the previous owner so the caller can detect ownership
	// conflicts.
	Record(ctx context.Context, messageID, userID int64, now time.Time) (prevUserID int64, existed bool, err error)
	// Resolve returns the originating user for a forwarded message id, or
	// ErrNotFound.
	Resolve(ctx context.Context, messageID int64) (int64, error)
}

// ForwardMapping associates a forwarded message id with its originating user.
type ForwardMapping struct {
	MessageID int64
	UserID    int64
	CreatedAt time.Time
}

package model

import (
	"context"
	"time"
)

// SentMessageStore is an append-only log of successfully forwarded messages.
// The relay only appends; listing and aggregation back external reporting.
type SentMessageStore interface {
	Append(ctx context.Context, msg SentMessage) (SentMessage, error)
	ListByUser(ctx context.Context, filter MessageFilter) (MessagePage, error)
	DailyCounts(ctx context.Context, from time.Time, days int) ([]DayCount, error)
}

// SentMessage records one successfully forwarded user message. Text is nil
// for media without a caption.
type SentMessage struct {
	ID     int64
	UserID int64
	Text   *string
	SentAt time.Time
}

// MessageFilter contains filters for a user's sent-message history.
type MessageFilter struct {
	UserID  int64
	Page    int
	PerPage int
	Search  string
	From    *time.Time
	To      *time.Time
}

// MessagePage is one page of message history ordered by send time, newest
// first.
type MessagePage struct {
	Messages   []SentMessage
	Total      int
	Page       int
	PerPage    int
	TotalPages int
}

// DayCount is the number of forwarded messages on one calendar day.
type DayCount struct {
	Day   time.Time
	Count int
}

package model

import (
	"context"
	"time"
)

// KeywordStore defines persistence operations for blocked keywords.
// Keywords are stored normalized (trimmed, lower-cased) and unique.
type KeywordStore interface {
	Add(ctx context.Context, keyword string, addedAt time.Time) (BlockedKeyword, bool, error)
	Remove(ctx context.Context, keyword string) error
	RemoveByID(ctx context.Context, id int64) error
	ListAll(ctx context.Context) ([]BlockedKeyword, error)
	List(ctx context.Context, params ListKeywordsParams) (KeywordPage, error)
	Count(ctx context.Context) (int, error)
}

// BlockedKeyword represents a stored denylist entry.
type BlockedKeyword struct {
	ID      int64
	Keyword string
	AddedAt time.Time
}

// ListKeywordsParams contains filters for paginated keyword listings.
type ListKeywordsParams struct {
	Page    int
	PerPage int
	Search  string
}

// KeywordPage is one page of a keyword listing ordered by addition time,
// newest first.
type KeywordPage struct {
	Keywords   []BlockedKeyword
	Total      int
	Page       int
	PerPage    int
	TotalPages int
}

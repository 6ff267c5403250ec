package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dtroode/anonrelay-server/internal/logger"
	"github.com/dtroode/anonrelay-server/internal/model"
)

// KeywordFilter maintains the keyword denylist and matches message text
// against it.
type KeywordFilter struct {
	keywords model.KeywordStore
	logger   *logger.Logger
	now      func() time.Time
}

func NewKeywordFilter(keywords model.KeywordStore, logger *logger.Logger) *KeywordFilter {
	return &KeywordFilter{
		keywords: keywords,
		logger:   logger,
		now:      time.Now,
	}
}

// Normalize trims and lower-cases a keyword.
func Normalize(keyword string) string {
	return strings.ToLower(strings.TrimSpace(keyword))
}

// Add stores a normalized keyword. The second return value reports whether
// it was newly added. Empty keywords are rejected with ErrInvalidInput.
func (f *KeywordFilter) Add(ctx context.Context, keyword string) (model.BlockedKeyword, bool, error) {
	normalized := Normalize(keyword)
	if normalized == "" {
		return model.BlockedKeyword{}, false, fmt.Errorf("empty keyword: %w", model.ErrInvalidInput)
	}

	kw, created, err := f.keywords.Add(ctx, normalized, f.now().UTC())
	if err != nil {
		return model.BlockedKeyword{}, false, fmt.Errorf("failed to add keyword: %w", err)
	}

	if created {
		f.logger.Info("Keyword filter: keyword added", "keyword", normalized)
	}

	return kw, created, nil
}

// AddBatch adds many keywords at once, reporting which were newly added and
// which already existed. Entries that normalize to the empty string are
// skipped; a batch with no usable entries is rejected with ErrInvalidInput.
func (f *KeywordFilter) AddBatch(ctx context.Context, keywords []string) (added, existing []model.BlockedKeyword, err error) {
	seen := make(map[string]bool, len(keywords))
	usable := 0
	for _, raw := range keywords {
		normalized := Normalize(raw)
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		usable++

		kw, created, err := f.Add(ctx, normalized)
		if err != nil {
			return nil, nil, err
		}
		if created {
			added = append(added, kw)
		} else {
			existing = append(existing, kw)
		}
	}

	if usable == 0 {
		return nil, nil, fmt.Errorf("no usable keywords in batch: %w", model.ErrInvalidInput)
	}

	return added, existing, nil
}

// Remove deletes a keyword by its normalized form; ErrNotFound when absent.
func (f *KeywordFilter) Remove(ctx context.Context, keyword string) error {
	normalized := Normalize(keyword)
	if normalized == "" {
		return fmt.Errorf("empty keyword: %w", model.ErrInvalidInput)
	}

	if err := f.keywords.Remove(ctx, normalized); err != nil {
		return err
	}

	f.logger.Info("Keyword filter: keyword removed", "keyword", normalized)
	return nil
}

// All returns every blocked keyword in insertion order.
func (f *KeywordFilter) All(ctx context.Context) ([]model.BlockedKeyword, error) {
	return f.keywords.ListAll(ctx)
}

// Matches returns the first blocked keyword contained in text, in insertion
// order, using case-insensitive substring containment. Empty text never
// matches.
func (f *KeywordFilter) Matches(ctx context.Context, text string) (string, bool, error) {
	if text == "" {
		return "", false, nil
	}

	keywords, err := f.keywords.ListAll(ctx)
	if err != nil {
		return "", false, fmt.Errorf("failed to list keywords: %w", err)
	}

	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw.Keyword) {
			return kw.Keyword, true, nil
		}
	}

	return "", false, nil
}

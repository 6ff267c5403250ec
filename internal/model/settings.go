package model

import (
	"context"
	"time"
)

// SettingsStore persists relay configuration owned by the admin surface.
// The verification engine reads it at challenge-issuance time, never cached.
type SettingsStore interface {
	VerificationSettings(ctx context.Context) (VerificationSettings, error)
	UpdateVerificationSettings(ctx context.Context, s VerificationSettings) (VerificationSettings, error)
}

// VerificationSettings controls whether and how new users are challenged.
type VerificationSettings struct {
	Enabled    bool
	Kind       ChallengeKind
	Difficulty Difficulty
	UpdatedAt  time.Time
}

// WelcomeStore returns the greeting sent on first contact, per language.
type WelcomeStore interface {
	WelcomeByLang(ctx context.Context, lang string) (WelcomeMessage, error)
}

// WelcomeMessage is a stored per-language greeting.
type WelcomeMessage struct {
	Lang    string
	Content string
}

package service

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/anonrelay-server/internal/challenge"
	"github.com/dtroode/anonrelay-server/internal/logger"
	"github.com/dtroode/anonrelay-server/internal/model"
)

// VerificationEngine issues and resolves human-verification challenges.
// It reads the configured kind and difficulty at issuance time, keeps at
// most one live challenge per user, and marks users verified on success.
type VerificationEngine struct {
	users      model.UserStore
	settings   model.SettingsStore
	challenges model.ChallengeStore
	storage    model.Storage
	logger     *logger.Logger
	// rngMu guards rng: *rand.Rand is not goroutine-safe, and distinct
	// users issue challenges in parallel.
	rngMu sync.Mutex
	rng   *rand.Rand
	now   func() time.Time
}

func NewVerificationEngine(
	users model.UserStore,
	settings model.SettingsStore,
	challenges model.ChallengeStore,
	storage model.Storage,
	logger *logger.Logger,
) *VerificationEngine {
	return &VerificationEngine{
		users:      users,
		settings:   settings,
		challenges: challenges,
		storage:    storage,
		logger:     logger,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		now:        time.Now,
	}
}

// NeedsChallenge reports whether the user must pass verification before
// their messages are relayed.
func (e *VerificationEngine) NeedsChallenge(ctx context.Context, user model.User) (bool, error) {
	if user.Verified {
		return false, nil
	}

	settings, err := e.settings.VerificationSettings(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get verification settings: %w", err)
	}

	return settings.Enabled, nil
}

// Issue generates a challenge of the configured kind and difficulty for the
// user, overwriting any previous live challenge.
func (e *VerificationEngine) Issue(ctx context.Context, userID int64) (model.Challenge, error) {
	settings, err := e.settings.VerificationSettings(ctx)
	if err != nil {
		return model.Challenge{}, fmt.Errorf("failed to get verification settings: %w", err)
	}

	now := e.now()
	ch := model.Challenge{
		ID:         uuid.New(),
		UserID:     userID,
		Kind:       settings.Kind,
		Difficulty: settings.Difficulty,
		IssuedAt:   now,
	}

	switch settings.Kind {
	case model.ChallengeArithmetic:
		e.rngMu.Lock()
		a := challenge.NewArithmetic(settings.Difficulty, e.rng)
		e.rngMu.Unlock()
		ch.Prompt = a.Prompt + " = ?"
		ch.Answer = a.Answer
		ch.Options = a.Options
		ch.ExpiresAt = now.Add(model.SolvedChallengeTTL)

	case model.ChallengeImageCode:
		code, err := challenge.NewCode(challenge.CodeLength(settings.Difficulty))
		if err != nil {
			return model.Challenge{}, fmt.Errorf("failed to generate image code: %w", err)
		}
		e.rngMu.Lock()
		png, err := challenge.RenderCode(code, e.rng)
		e.rngMu.Unlock()
		if err != nil {
			return model.Challenge{}, fmt.Errorf("failed to render image code: %w", err)
		}
		ch.Answer = code
		ch.ImagePNG = png
		ch.ExpiresAt = now.Add(model.SolvedChallengeTTL)
		ch.ImageKey = e.retainArtifact(ctx, userID, ch.ID, png)

	default:
		token, err := challenge.NewToken(challenge.TokenLength)
		if err != nil {
			return model.Challenge{}, fmt.Errorf("failed to generate token: %w", err)
		}
		ch.Kind = model.ChallengeSimple
		ch.Answer = token
		ch.ExpiresAt = now.Add(model.SimpleChallengeTTL)
	}

	e.challenges.Put(ch)

	e.logger.Info("Verification engine: challenge issued",
		"user_id", userID,
		"kind", string(ch.Kind),
		"difficulty", string(ch.Difficulty),
		"expires_at", ch.ExpiresAt.Format(time.RFC3339))

	return ch, nil
}

// retainArtifact uploads the rendered captcha for operator audit. The upload
// is best-effort: a failure is logged and the challenge proceeds without a
// retained copy.
func (e *VerificationEngine) retainArtifact(ctx context.Context, userID int64, id uuid.UUID, png []byte) string {
	if e.storage == nil {
		return ""
	}
	key := fmt.Sprintf("captcha/%d/%s.png", userID, id)
	if err := e.storage.Upload(ctx, key, bytes.NewReader(png)); err != nil {
		e.logger.Warn("Verification engine: failed to retain captcha artifact",
			"user_id", userID,
			"key", key,
			"error", err.Error())
		return ""
	}
	return key
}

// Resolve applies a submitted answer to the user's live challenge. The
// challenge is consumed by exactly one resolution: concurrent submissions
// against the same instance lose the check-and-set and report
// expired-or-absent. A wrong answer also consumes the challenge; the caller
// must trigger a fresh issuance.
func (e *VerificationEngine) Resolve(ctx context.Context, userID int64, kind model.ChallengeKind, answer string) (model.Resolution, error) {
	ch, ok := e.challenges.Get(userID)
	if !ok || ch.Kind != kind {
		return model.ResolutionExpiredOrAbsent, nil
	}

	if ch.Expired(e.now()) {
		e.challenges.Consume(userID, ch.ID)
		return model.ResolutionExpiredOrAbsent, nil
	}

	if !e.challenges.Consume(userID, ch.ID) {
		// A concurrent resolution got here first.
		e.logger.Info("Verification engine: challenge already consumed",
			"user_id", userID,
			"challenge_id", ch.ID.String())
		return model.ResolutionExpiredOrAbsent, nil
	}

	if !answerMatches(ch, answer) {
		e.logger.Info("Verification engine: wrong answer",
			"user_id", userID,
			"kind", string(ch.Kind))
		return model.ResolutionWrongAnswer, nil
	}

	if err := e.users.SetVerified(ctx, userID, true); err != nil {
		return model.ResolutionExpiredOrAbsent, fmt.Errorf("failed to mark user verified: %w", err)
	}

	e.logger.Info("Verification engine: user verified",
		"user_id", userID,
		"kind", string(ch.Kind))

	return model.ResolutionVerified, nil
}

// answerMatches compares a submitted answer per challenge kind: exact token
// equality for simple, numeric equality for arithmetic, case-insensitive
// match for image codes.
func answerMatches(ch model.Challenge, answer string) bool {
	submitted := strings.TrimSpace(answer)

	switch ch.Kind {
	case model.ChallengeArithmetic:
		want, err := strconv.ParseFloat(ch.Answer, 64)
		if err != nil {
			return false
		}
		got, err := strconv.ParseFloat(submitted, 64)
		if err != nil {
			return false
		}
		return want == got

	case model.ChallengeImageCode:
		return strings.EqualFold(submitted, ch.Answer)

	default:
		return submitted == ch.Answer
	}
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// ChallengeKind enumerates human-verification challenge kinds.
type ChallengeKind string

const (
	// ChallengeSimple is a single-shot confirmation of an opaque token.
	ChallengeSimple ChallengeKind = "simple"
	// ChallengeArithmetic is a generated expression with multiple-choice answers.
	ChallengeArithmetic ChallengeKind = "arithmetic"
	// ChallengeImageCode is a rendered code matched against free-text input.
	ChallengeImageCode ChallengeKind = "image_code"
)

// Difficulty enumerates challenge difficulty tiers.
type Difficulty string

const (
	DifficultyEasy    Difficulty = "easy"
	DifficultyMedium  Difficulty = "medium"
	DifficultyHard    Difficulty = "hard"
	DifficultyExtreme Difficulty = "extreme"
)

const (
	// SimpleChallengeTTL is the lifetime of a simple confirmation challenge.
	SimpleChallengeTTL = 10 * time.Minute
	// SolvedChallengeTTL is the lifetime of arithmetic and image challenges.
	SolvedChallengeTTL = 5 * time.Minute
)

// Challenge is a live, ephemeral verification challenge. At most one live
// challenge exists per user; issuing a new one invalidates the previous.
type Challenge struct {
	ID         uuid.UUID
	UserID     int64
	Kind       ChallengeKind
	Difficulty Difficulty
	// Prompt is the human-readable challenge text.
	Prompt string
	// Answer is the expected answer token: exact for simple, numeric for
	// arithmetic, case-insensitive for image codes.
	Answer string
	// Options holds the multiple-choice answers for arithmetic challenges,
	// sorted ascending; exactly one equals Answer.
	Options []string
	// ImagePNG is the rendered artifact for image-code challenges.
	ImagePNG []byte
	// ImageKey is the object storage key of the retained artifact, when the
	// upload succeeded.
	ImageKey  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the challenge is past its expiry at now.
func (c Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// ChallengeStore is an in-process concurrent store of live challenges keyed
// by user id. Implementations must provide check-and-set semantics: Consume
// succeeds for exactly one caller per stored challenge instance.
type ChallengeStore interface {
	// Put stores a challenge, overwriting any previous one for the user.
	Put(ch Challenge)
	// Get returns the live challenge for a user, if any.
	Get(userID int64) (Challenge, bool)
	// Consume removes the challenge for userID only if its instance id
	// matches, reporting whether this caller removed it.
	Consume(userID int64, id uuid.UUID) bool
	// Sweep drops challenges expired at now and returns how many were
	// dropped. Expiry is also checked at resolution time; sweeping exists
	// for memory hygiene only.
	Sweep(now time.Time) int
}

// Resolution is the outcome of resolving a challenge submission.
type Resolution int

const (
	// ResolutionExpiredOrAbsent means no live challenge matched: none was
	// issued, the kind mismatched, it expired, or it was already consumed.
	ResolutionExpiredOrAbsent Resolution = iota
	// ResolutionWrongAnswer means the challenge was live but the answer did
	// not match; the challenge is invalidated.
	ResolutionWrongAnswer
	// ResolutionVerified means the answer matched and the user is now
	// verified.
	ResolutionVerified
)

func (r Resolution) String() string {
	switch r {
	case ResolutionVerified:
		return "verified"
	case ResolutionWrongAnswer:
		return "wrong_answer"
	default:
		return "expired_or_absent"
	}
}

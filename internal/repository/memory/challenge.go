package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/anonrelay-server/internal/model"
)

var _ model.ChallengeStore = (*ChallengeStore)(nil)

// ChallengeStore keeps live verification challenges in memory, keyed by user
// id. Challenges are ephemeral and do not survive a restart; an unverified
// user simply receives a fresh one on their next message.
type ChallengeStore struct {
	mu         sync.RWMutex
	challenges map[int64]model.Challenge
}

func NewChallengeStore() *ChallengeStore {
	return &ChallengeStore{
		challenges: make(map[int64]model.Challenge),
	}
}

// Put stores a challenge, overwriting any previous one for the same user.
func (s *ChallengeStore) Put(ch model.Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[ch.UserID] = ch
}

// Get returns the live challenge for a user, if any.
func (s *ChallengeStore) Get(userID int64) (model.Challenge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.challenges[userID]
	return ch, ok
}

// Consume removes the challenge for userID only when its instance id still
// matches. Exactly one caller wins for a given stored instance; a challenge
// replaced by a newer issuance is not consumable through the old id.
func (s *ChallengeStore) Consume(userID int64, id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.challenges[userID]
	if !ok || ch.ID != id {
		return false
	}
	delete(s.challenges, userID)
	return true
}

// Sweep drops challenges expired at now and returns how many were dropped.
func (s *ChallengeStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := 0
	for userID, ch := range s.challenges {
		if ch.Expired(now) {
			delete(s.challenges, userID)
			dropped++
		}
	}
	return dropped
}

package service

import "sync"

// userLocks serializes state-mutating work per user id while letting
// distinct users proceed in parallel. Lock entries are retained for the
// process lifetime; growth is bounded by the active user population, the
// same order as the users table itself.
type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{
		locks: make(map[int64]*sync.Mutex),
	}
}

func (l *userLocks) Lock(userID int64) {
	l.mu.Lock()
	lock, ok := l.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[userID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
}

func (l *userLocks) Unlock(userID int64) {
	l.mu.Lock()
	lock := l.locks[userID]
	l.mu.Unlock()

	lock.Unlock()
}

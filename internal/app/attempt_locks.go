package app

import (
	"sync"

	"saa-quiz-service/internal/domain"
)

// attemptLocks serializes work on one (user, mode) attempt inside a process. Entries
// are dropped once nobody holds or waits on them.
type attemptLocks struct {
	mu      sync.Mutex
	entries map[attemptLockKey]*attemptLock
}

type attemptLockKey struct {
	userID string
	mode   domain.Mode
}

type attemptLock struct {
	mu   sync.Mutex
	refs int
}

func newAttemptLocks() *attemptLocks {
	return &attemptLocks{entries: make(map[attemptLockKey]*attemptLock)}
}

// lock blocks until the caller owns the attempt and returns the release func.
func (l *attemptLocks) lock(userID string, mode domain.Mode) func() {
	key := attemptLockKey{userID: userID, mode: mode}

	l.mu.Lock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &attemptLock{}
		l.entries[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, key)
		}
		l.mu.Unlock()
	}
}

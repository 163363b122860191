package memory

import (
	"context"
	"fmt"
	"sync"

	"saa-quiz-service/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptStore.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[attemptKey]domain.Attempt
}

type attemptKey struct {
	userID string
	mode   domain.Mode
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		attempts: make(map[attemptKey]domain.Attempt),
	}
}

func (s *AttemptStore) GetAttempt(_ context.Context, userID string, mode domain.Mode) (domain.Attempt, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[attemptKey{userID, mode}]
	if !ok {
		return domain.Attempt{}, false, nil
	}
	return attempt.Clone(), true, nil
}

func (s *AttemptStore) PutAttempt(_ context.Context, attempt domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := attemptKey{attempt.UserID, attempt.Mode}
	next := attempt.Clone()
	next.Version = s.attempts[key].Version + 1
	s.attempts[key] = next
	return nil
}

func (s *AttemptStore) ReplaceAttempt(_ context.Context, attempt domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := attemptKey{attempt.UserID, attempt.Mode}
	current, ok := s.attempts[key]
	if !ok || current.Version != attempt.Version {
		return fmt.Errorf("%w: attempt of %s changed", domain.ErrPersistenceConflict, attempt.UserID)
	}
	next := attempt.Clone()
	next.Version = current.Version + 1
	s.attempts[key] = next
	return nil
}

func (s *AttemptStore) DeleteAttempt(_ context.Context, userID string, mode domain.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, attemptKey{userID, mode})
	return nil
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"saa-quiz-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

// AttemptStore keeps each live attempt as JSON under attempt:{mode}:{userID}. The TTL
// is refreshed on every write, so abandoned attempts expire on their own. Writes run
// under WATCH so the stored version only moves forward one step at a time.
type AttemptStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAttemptStore(client *redis.Client, ttl time.Duration) *AttemptStore {
	return &AttemptStore{client: client, ttl: ttl}
}

// maxPutRetries bounds how often an unconditional put retries a lost WATCH race.
const maxPutRetries = 5

func (s *AttemptStore) GetAttempt(ctx context.Context, userID string, mode domain.Mode) (domain.Attempt, bool, error) {
	return decodeAttempt(s.client.Get(ctx, attemptKey(userID, mode)))
}

func (s *AttemptStore) PutAttempt(ctx context.Context, attempt domain.Attempt) error {
	var err error
	for i := 0; i < maxPutRetries; i++ {
		err = s.write(ctx, attempt, false)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: put attempt: %v", domain.ErrPersistenceConflict, err)
	}
	return err
}

func (s *AttemptStore) ReplaceAttempt(ctx context.Context, attempt domain.Attempt) error {
	err := s.write(ctx, attempt, true)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: attempt of %s changed", domain.ErrPersistenceConflict, attempt.UserID)
	}
	return err
}

// write stores attempt with the next version. With conditional set, the stored
// version must still equal attempt.Version.
func (s *AttemptStore) write(ctx context.Context, attempt domain.Attempt, conditional bool) error {
	key := attemptKey(attempt.UserID, attempt.Mode)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, ok, err := decodeAttempt(tx.Get(ctx, key))
		if err != nil {
			return err
		}
		if conditional && (!ok || current.Version != attempt.Version) {
			return fmt.Errorf("%w: attempt of %s changed", domain.ErrPersistenceConflict, attempt.UserID)
		}
		next := attempt
		next.Version = current.Version + 1
		raw, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode attempt: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, s.ttl)
			return nil
		})
		return err
	}, key)
	switch {
	case err == nil,
		errors.Is(err, redis.TxFailedErr),
		errors.Is(err, domain.ErrPersistenceConflict),
		errors.Is(err, domain.ErrPersistenceUnavailable):
		return err
	default:
		return fmt.Errorf("%w: put attempt: %v", domain.ErrPersistenceUnavailable, err)
	}
}

func (s *AttemptStore) DeleteAttempt(ctx context.Context, userID string, mode domain.Mode) error {
	if err := s.client.Del(ctx, attemptKey(userID, mode)).Err(); err != nil {
		return fmt.Errorf("%w: delete attempt: %v", domain.ErrPersistenceUnavailable, err)
	}
	return nil
}

func attemptKey(userID string, mode domain.Mode) string {
	return "attempt:" + string(mode) + ":" + userID
}

func decodeAttempt(cmd *redis.StringCmd) (domain.Attempt, bool, error) {
	raw, err := cmd.Bytes()
	if isNil(err) {
		return domain.Attempt{}, false, nil
	}
	if err != nil {
		return domain.Attempt{}, false, fmt.Errorf("%w: get attempt: %v", domain.ErrPersistenceUnavailable, err)
	}
	var attempt domain.Attempt
	if err := json.Unmarshal(raw, &attempt); err != nil {
		return domain.Attempt{}, false, fmt.Errorf("decode attempt: %w", err)
	}
	return attempt, true, nil
}

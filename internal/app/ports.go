package app

import (
	"context"
	"time"

	"saa-quiz-service/internal/domain"
)

// BankLoader reads the questions of one named source. Every call returns a freshly
// parsed slice that shares no state with earlier results.
type BankLoader interface {
	LoadBank(ctx context.Context, source string) ([]domain.Question, error)
}

// BankFetcher resolves a configured bank id to its questions.
type BankFetcher interface {
	FetchBank(ctx context.Context, bankID string) (domain.Bank, error)
}

// BankRepository serves banks to attempts (usually a cache in front of a BankFetcher).
type BankRepository interface {
	GetBank(ctx context.Context, bankID string) (domain.Bank, error)
}

// ResultStore persists lifetime and daily counters. Increment must apply the delta to
// the user record and to the (user, day) row as one atomic step, using additive updates
// on the backend, and must keep attempts = success + failure on both.
type ResultStore interface {
	GetUser(ctx context.Context, userID string) (domain.UserRecord, error)
	Increment(ctx context.Context, userID, day string, delta domain.CounterDelta) (domain.UserRecord, error)
	GetOrCreateDaily(ctx context.Context, userID, day string) (domain.DailyResult, error)
	ListDaily(ctx context.Context, day string) ([]domain.DailyResult, error)
}

// UserRepository stores registered users. ListUsers returns users in registration order.
type UserRepository interface {
	CreateUser(ctx context.Context, user domain.UserRecord) error
	GetUser(ctx context.Context, userID string) (domain.UserRecord, error)
	FindUserByName(ctx context.Context, name string) (domain.UserRecord, error)
	ListUsers(ctx context.Context) ([]domain.UserRecord, error)
	DeleteUser(ctx context.Context, userID string) error
}

// HomeworkStore upserts per-question homework rows.
type HomeworkStore interface {
	RecordHomework(ctx context.Context, key domain.HomeworkKey, userName string, correct bool, at time.Time) (domain.HomeworkRecord, error)
	ListHomework(ctx context.Context, day, topic string) ([]domain.HomeworkRecord, error)
}

// Store is implemented by every persistence backend.
type Store interface {
	ResultStore
	UserRepository
	HomeworkStore
}

// AttemptStore holds the one live attempt per user and mode for the transports.
// PutAttempt overwrites unconditionally. ReplaceAttempt writes only while the stored
// attempt still carries attempt.Version and fails with domain.ErrPersistenceConflict
// otherwise. Both store the attempt with the next version.
type AttemptStore interface {
	GetAttempt(ctx context.Context, userID string, mode domain.Mode) (domain.Attempt, bool, error)
	PutAttempt(ctx context.Context, attempt domain.Attempt) error
	ReplaceAttempt(ctx context.Context, attempt domain.Attempt) error
	DeleteAttempt(ctx context.Context, userID string, mode domain.Mode) error
}

// Metrics receives play events.
type Metrics interface {
	Answer(mode domain.Mode, correct bool)
	AttemptFinished(succeeded bool)
	PersistenceFailure(operation string)
}

type noopMetrics struct{}

func (noopMetrics) Answer(domain.Mode, bool)  {}
func (noopMetrics) AttemptFinished(bool)      {}
func (noopMetrics) PersistenceFailure(string) {}

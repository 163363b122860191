package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"saa-quiz-service/internal/domain"
)

// Aggregator turns scored answers into counter increments on the result store.
type Aggregator struct {
	results ResultStore
	policy  domain.PointsPolicy
	loc     *time.Location
	now     func() time.Time
}

func NewAggregator(results ResultStore, policy domain.PointsPolicy, loc *time.Location) *Aggregator {
	return NewAggregatorWithClock(results, policy, loc, time.Now)
}

// NewAggregatorWithClock is test-only for deterministic calendar days.
func NewAggregatorWithClock(results ResultStore, policy domain.PointsPolicy, loc *time.Location, now func() time.Time) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{results: results, policy: policy, loc: loc, now: now}
}

func (a *Aggregator) Policy() domain.PointsPolicy { return a.policy }

// Now is the aggregator's clock reading.
func (a *Aggregator) Now() time.Time { return a.now() }

// Today is the current calendar day in the configured location.
func (a *Aggregator) Today() string { return domain.DayOf(a.now(), a.loc) }

// Record applies one answer (and, when terminal, the attempt outcome) to the user's
// lifetime counters and today's daily row in a single store call. The call is not
// idempotent: a retry after an unknown outcome may count twice.
func (a *Aggregator) Record(ctx context.Context, userID string, isCorrect, terminal, succeeded bool) (domain.UserRecord, error) {
	delta := a.policy.Delta(isCorrect, terminal, succeeded)
	user, err := a.results.Increment(ctx, userID, a.Today(), delta)
	if err != nil {
		return domain.UserRecord{}, persistenceError(err)
	}
	return user, nil
}

func persistenceError(err error) error {
	switch {
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrPersistenceUnavailable),
		errors.Is(err, domain.ErrPersistenceConflict):
		return err
	default:
		return fmt.Errorf("%w: %v", domain.ErrPersistenceUnavailable, err)
	}
}

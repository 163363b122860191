package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"saa-quiz-service/internal/domain"
)

// Step is the outcome of submitting one answer to an attempt.
type Step struct {
	Attempt  domain.Attempt
	Question domain.Question
	Correct  bool
}

// Tracker drives attempts. It holds no attempt state; callers pass the current
// Attempt in and keep the returned one.
type Tracker struct {
	banks BankRepository
	size  int
	now   func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewTracker(banks BankRepository, challengeSize int) *Tracker {
	return NewTrackerWithRand(banks, challengeSize, rand.New(rand.NewSource(time.Now().UnixNano())), time.Now)
}

// NewTrackerWithRand is used by tests for deterministic sampling and timestamps.
func NewTrackerWithRand(banks BankRepository, challengeSize int, rnd *rand.Rand, now func() time.Time) *Tracker {
	return &Tracker{banks: banks, size: challengeSize, rnd: rnd, now: now}
}

// Start samples a new challenge attempt from bankID.
func (t *Tracker) Start(ctx context.Context, userID, bankID string) (domain.Attempt, error) {
	bank, err := t.banks.GetBank(ctx, bankID)
	if err != nil {
		return domain.Attempt{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return domain.NewChallenge(t.rnd, userID, bank, t.size, t.now())
}

// Restart discards the caller's attempt and starts over. Persisted counters are untouched.
func (t *Tracker) Restart(ctx context.Context, userID, bankID string) (domain.Attempt, error) {
	return t.Start(ctx, userID, bankID)
}

// StartHomework opens the whole bank for free navigation.
func (t *Tracker) StartHomework(ctx context.Context, userID, bankID string) (domain.Attempt, error) {
	bank, err := t.banks.GetBank(ctx, bankID)
	if err != nil {
		return domain.Attempt{}, err
	}
	return domain.NewHomework(userID, bank, t.now())
}

// CurrentQuestion resolves the question at the attempt's cursor.
func (t *Tracker) CurrentQuestion(ctx context.Context, attempt domain.Attempt) (domain.Question, error) {
	id, err := attempt.CurrentQuestionID()
	if err != nil {
		return domain.Question{}, err
	}
	return t.resolve(ctx, attempt.BankID, id)
}

// Submit scores sub against the current challenge question and advances the streak.
func (t *Tracker) Submit(ctx context.Context, attempt domain.Attempt, sub domain.Submission) (Step, error) {
	if attempt.Mode != domain.ModeChallenge {
		return Step{}, domain.ErrModeMismatch
	}
	q, err := t.CurrentQuestion(ctx, attempt)
	if err != nil {
		return Step{}, err
	}
	correct := domain.Score(q, sub)
	next, err := attempt.Advance(correct)
	if err != nil {
		return Step{}, err
	}
	return Step{Attempt: next, Question: q, Correct: correct}, nil
}

// SubmitHomework scores sub and overwrites the question's recorded correctness.
func (t *Tracker) SubmitHomework(ctx context.Context, attempt domain.Attempt, sub domain.Submission) (Step, error) {
	if attempt.Mode != domain.ModeHomework {
		return Step{}, domain.ErrModeMismatch
	}
	q, err := t.CurrentQuestion(ctx, attempt)
	if err != nil {
		return Step{}, err
	}
	correct := domain.Score(q, sub)
	next, err := attempt.RecordAnswer(correct)
	if err != nil {
		return Step{}, err
	}
	return Step{Attempt: next, Question: q, Correct: correct}, nil
}

// Navigate moves a homework attempt to index and returns the question there.
func (t *Tracker) Navigate(ctx context.Context, attempt domain.Attempt, index int) (domain.Attempt, domain.Question, error) {
	next, err := attempt.MoveTo(index)
	if err != nil {
		return attempt, domain.Question{}, err
	}
	q, err := t.CurrentQuestion(ctx, next)
	if err != nil {
		return attempt, domain.Question{}, err
	}
	return next, q, nil
}

// resolve looks the question up in the bank at scoring time instead of trusting a copy
// captured when the attempt started.
func (t *Tracker) resolve(ctx context.Context, bankID string, questionID int) (domain.Question, error) {
	bank, err := t.banks.GetBank(ctx, bankID)
	if err != nil {
		return domain.Question{}, err
	}
	q, ok := bank.Find(questionID)
	if !ok {
		return domain.Question{}, fmt.Errorf("%w: %d in bank %s", domain.ErrQuestionNotFound, questionID, bankID)
	}
	return q, nil
}

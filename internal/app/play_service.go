package app

import (
	"context"
	"fmt"

	"saa-quiz-service/internal/domain"

	"go.uber.org/zap"
)

const persistenceWarning = "your answer was scored but could not be saved; points for it may be missing"

// AttemptView is an attempt plus the question at its cursor (nil once it has ended).
type AttemptView struct {
	Attempt  domain.Attempt   `json:"attempt"`
	Question *domain.Question `json:"question,omitempty"`
}

// Outcome is what a transport shows after an answer.
type Outcome struct {
	Verdict domain.Verdict `json:"verdict"`
	AttemptView
}

type PlayDeps struct {
	Tracker    *Tracker
	Aggregator *Aggregator
	Attempts   AttemptStore
	Users      UserRepository
	Homework   HomeworkStore
	// Reports and Feed are optional; with both set, each recorded answer publishes a
	// fresh lifetime leaderboard to live subscribers.
	Reports *ReportService
	Feed    *Feed
	Metrics Metrics
	Logger  *zap.Logger
}

// PlayService wires attempts, scoring and aggregation together for the transports.
type PlayService struct {
	tracker    *Tracker
	aggregator *Aggregator
	attempts   AttemptStore
	users      UserRepository
	homework   HomeworkStore
	reports    *ReportService
	feed       *Feed
	metrics    Metrics
	logger     *zap.Logger
	locks      *attemptLocks
}

func NewPlayService(deps PlayDeps) *PlayService {
	s := &PlayService{
		tracker:    deps.Tracker,
		aggregator: deps.Aggregator,
		attempts:   deps.Attempts,
		users:      deps.Users,
		homework:   deps.Homework,
		reports:    deps.Reports,
		feed:       deps.Feed,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		locks:      newAttemptLocks(),
	}
	if s.feed == nil {
		s.feed = NewFeed()
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Start replaces the user's attempt in mode with a fresh one on bankID.
func (s *PlayService) Start(ctx context.Context, userID, bankID string, mode domain.Mode) (AttemptView, error) {
	if !mode.Valid() {
		return AttemptView{}, fmt.Errorf("%w: mode %q", domain.ErrInvalidInput, mode)
	}
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return AttemptView{}, err
	}
	unlock := s.locks.lock(userID, mode)
	defer unlock()

	var (
		attempt domain.Attempt
		err     error
	)
	if mode == domain.ModeHomework {
		attempt, err = s.tracker.StartHomework(ctx, userID, bankID)
	} else {
		attempt, err = s.tracker.Start(ctx, userID, bankID)
	}
	if err != nil {
		return AttemptView{}, err
	}
	if err := s.attempts.PutAttempt(ctx, attempt); err != nil {
		return AttemptView{}, err
	}
	s.logger.Debug("attempt started",
		zap.String("user_id", userID),
		zap.String("bank_id", bankID),
		zap.String("mode", string(mode)),
		zap.Int("size", attempt.Size()),
	)
	return s.view(ctx, attempt)
}

// Restart starts over on the bank of the user's current attempt in mode.
func (s *PlayService) Restart(ctx context.Context, userID string, mode domain.Mode) (AttemptView, error) {
	attempt, err := s.load(ctx, userID, mode)
	if err != nil {
		return AttemptView{}, err
	}
	return s.Start(ctx, userID, attempt.BankID, mode)
}

// Current returns the user's attempt in mode.
func (s *PlayService) Current(ctx context.Context, userID string, mode domain.Mode) (AttemptView, error) {
	attempt, err := s.load(ctx, userID, mode)
	if err != nil {
		return AttemptView{}, err
	}
	return s.view(ctx, attempt)
}

// Discard drops the user's attempt in mode. Persisted counters are untouched.
func (s *PlayService) Discard(ctx context.Context, userID string, mode domain.Mode) error {
	unlock := s.locks.lock(userID, mode)
	defer unlock()
	return s.attempts.DeleteAttempt(ctx, userID, mode)
}

// Answer scores sub against the current question of the user's attempt in mode. A
// failed result write does not fail the call: the attempt still moves on and the
// verdict carries a warning. Answers to one attempt are applied one at a time; an
// answer that loses a race with another instance fails with ErrPersistenceConflict
// before anything is recorded.
func (s *PlayService) Answer(ctx context.Context, userID string, mode domain.Mode, sub domain.Submission) (Outcome, error) {
	if !mode.Valid() {
		return Outcome{}, fmt.Errorf("%w: mode %q", domain.ErrInvalidInput, mode)
	}
	unlock := s.locks.lock(userID, mode)
	defer unlock()

	attempt, err := s.load(ctx, userID, mode)
	if err != nil {
		return Outcome{}, err
	}

	var step Step
	if attempt.Mode == domain.ModeHomework {
		step, err = s.tracker.SubmitHomework(ctx, attempt, sub)
	} else {
		step, err = s.tracker.Submit(ctx, attempt, sub)
	}
	if err != nil {
		return Outcome{}, err
	}
	if err := s.attempts.ReplaceAttempt(ctx, step.Attempt); err != nil {
		return Outcome{}, err
	}

	verdict := s.verdict(step, sub.Locale)
	s.metrics.Answer(step.Attempt.Mode, step.Correct)
	if step.Attempt.Terminal() {
		s.metrics.AttemptFinished(step.Attempt.Succeeded())
	}

	user, err := s.aggregator.Record(ctx, userID, step.Correct, step.Attempt.Terminal(), step.Attempt.Succeeded())
	if err != nil {
		s.metrics.PersistenceFailure("record")
		s.logger.Warn("record result failed",
			zap.String("user_id", userID),
			zap.String("bank_id", step.Attempt.BankID),
			zap.Error(err),
		)
		verdict.Warning = persistenceWarning
	} else {
		s.publish(ctx)
	}

	if step.Attempt.Mode == domain.ModeHomework {
		s.recordHomework(ctx, step, user.Name, &verdict)
	}

	view, err := s.view(ctx, step.Attempt)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Verdict: verdict, AttemptView: view}, nil
}

// Navigate moves the user's homework attempt to index.
func (s *PlayService) Navigate(ctx context.Context, userID string, index int) (AttemptView, error) {
	unlock := s.locks.lock(userID, domain.ModeHomework)
	defer unlock()

	attempt, err := s.load(ctx, userID, domain.ModeHomework)
	if err != nil {
		return AttemptView{}, err
	}
	next, q, err := s.tracker.Navigate(ctx, attempt, index)
	if err != nil {
		return AttemptView{}, err
	}
	if err := s.attempts.ReplaceAttempt(ctx, next); err != nil {
		return AttemptView{}, err
	}
	return AttemptView{Attempt: next, Question: &q}, nil
}

// Subscribe streams lifetime leaderboards published after recorded answers.
func (s *PlayService) Subscribe() (<-chan domain.Leaderboard, func()) {
	return s.feed.Subscribe()
}

func (s *PlayService) load(ctx context.Context, userID string, mode domain.Mode) (domain.Attempt, error) {
	if !mode.Valid() {
		return domain.Attempt{}, fmt.Errorf("%w: mode %q", domain.ErrInvalidInput, mode)
	}
	attempt, ok, err := s.attempts.GetAttempt(ctx, userID, mode)
	if err != nil {
		return domain.Attempt{}, err
	}
	if !ok {
		return domain.Attempt{}, domain.ErrNoActiveAttempt
	}
	return attempt, nil
}

func (s *PlayService) view(ctx context.Context, attempt domain.Attempt) (AttemptView, error) {
	if attempt.Terminal() {
		return AttemptView{Attempt: attempt}, nil
	}
	q, err := s.tracker.CurrentQuestion(ctx, attempt)
	if err != nil {
		return AttemptView{}, err
	}
	return AttemptView{Attempt: attempt, Question: &q}, nil
}

func (s *PlayService) verdict(step Step, locale string) domain.Verdict {
	if locale == "" {
		locale = step.Question.CanonicalLocale()
	}
	policy := s.aggregator.Policy()
	a := step.Attempt
	v := domain.Verdict{
		QuestionID:     step.Question.ID,
		Correct:        step.Correct,
		Awarded:        policy.AnswerPoints(step.Correct),
		State:          a.State,
		CorrectCount:   a.Correct,
		Progress:       a.Progress(),
		CorrectAnswers: step.Question.CorrectTexts(locale),
	}
	if a.Succeeded() {
		v.Bonus = policy.SuccessBonus
	}
	if a.Mode == domain.ModeChallenge && a.Terminal() {
		v.CorrectQuestions, v.MissedQuestion = a.AnsweredIDs()
	}
	return v
}

func (s *PlayService) recordHomework(ctx context.Context, step Step, userName string, verdict *domain.Verdict) {
	if userName == "" {
		if u, err := s.users.GetUser(ctx, step.Attempt.UserID); err == nil {
			userName = u.Name
		}
	}
	key := domain.HomeworkKey{
		Day:        s.aggregator.Today(),
		Topic:      step.Attempt.BankID,
		QuestionID: step.Question.ID,
		UserID:     step.Attempt.UserID,
	}
	if _, err := s.homework.RecordHomework(ctx, key, userName, step.Correct, s.aggregator.Now()); err != nil {
		s.metrics.PersistenceFailure("homework")
		s.logger.Warn("record homework failed",
			zap.String("user_id", key.UserID),
			zap.String("bank_id", key.Topic),
			zap.Int("question_id", key.QuestionID),
			zap.Error(err),
		)
		verdict.Warning = persistenceWarning
	}
}

func (s *PlayService) publish(ctx context.Context) {
	if s.reports == nil || !s.feed.Active() {
		return
	}
	lb, err := s.reports.Leaderboard(ctx, domain.ScopeAll, "")
	if err != nil {
		s.logger.Debug("leaderboard refresh failed", zap.Error(err))
		return
	}
	s.feed.Publish(lb)
}

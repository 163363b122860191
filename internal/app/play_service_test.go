package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"saa-quiz-service/internal/app"
	"saa-quiz-service/internal/domain"
	"saa-quiz-service/internal/infra/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChallengeSuccessAwardsBonusOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.register(t, "Alice", "Hanbit", "blue")

	view, err := env.play.Start(ctx, u.ID, "saa", domain.ModeChallenge)
	require.NoError(t, err)
	require.NotNil(t, view.Question)
	require.Equal(t, 3, view.Attempt.Size())

	var out app.Outcome
	for i := 0; i < 3; i++ {
		out, err = env.play.Answer(ctx, u.ID, domain.ModeChallenge, right)
		require.NoError(t, err)
		assert.True(t, out.Verdict.Correct)
		assert.Equal(t, 3, out.Verdict.Awarded)
	}

	assert.Equal(t, domain.StateSucceeded, out.Verdict.State)
	assert.Equal(t, 30, out.Verdict.Bonus)
	assert.Equal(t, 3, out.Verdict.CorrectCount)
	assert.Len(t, out.Verdict.CorrectQuestions, 3)
	assert.Nil(t, out.Verdict.MissedQuestion)
	assert.Nil(t, out.Question)

	rec, err := env.store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 3*3+30, rec.Points)
	assert.Equal(t, 1, rec.Success)
	assert.Equal(t, 1, rec.Attempts)
	assert.Equal(t, []bool{true}, env.metrics.finished)

	_, err = env.play.Answer(ctx, u.ID, domain.ModeChallenge, right)
	assert.ErrorIs(t, err, domain.ErrAttemptTerminal)
}

// answerLastTwice plays the first two questions of a size-3 challenge through first,
// then submits the last one from a and b at the same time.
func answerLastTwice(t *testing.T, userID string, first, a, b *app.PlayService) []error {
	t.Helper()
	ctx := context.Background()
	_, err := first.Start(ctx, userID, "saa", domain.ModeChallenge)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := first.Answer(ctx, userID, domain.ModeChallenge, right)
		require.NoError(t, err)
	}

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, play := range []*app.PlayService{a, b} {
		wg.Add(1)
		go func(i int, play *app.PlayService) {
			defer wg.Done()
			_, errs[i] = play.Answer(ctx, userID, domain.ModeChallenge, right)
		}(i, play)
	}
	wg.Wait()
	return errs
}

func TestConcurrentAnswersFinishAttemptOnce(t *testing.T) {
	env := newTestEnv(t)
	u := env.register(t, "Alice", "Hanbit", "blue")
	play := env.newPlay(slowAttempts{AttemptStore: memory.NewAttemptStore(), delay: 5 * time.Millisecond})

	errs := answerLastTwice(t, u.ID, play, play, play)

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			assert.ErrorIs(t, err, domain.ErrAttemptTerminal)
		}
	}
	assert.Equal(t, 1, failed)

	rec, err := env.store.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Success)
	assert.Equal(t, 1, rec.Attempts)
	assert.Equal(t, 3, rec.Correct)
	assert.Equal(t, 3*3+30, rec.Points)
}

func TestConcurrentAnswersAcrossInstancesFinishAttemptOnce(t *testing.T) {
	env := newTestEnv(t)
	u := env.register(t, "Alice", "Hanbit", "blue")
	shared := slowAttempts{AttemptStore: memory.NewAttemptStore(), delay: 5 * time.Millisecond}
	a, b := env.newPlay(shared), env.newPlay(shared)

	errs := answerLastTwice(t, u.ID, a, a, b)

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			assert.True(t, errors.Is(err, domain.ErrPersistenceConflict) || errors.Is(err, domain.ErrAttemptTerminal), "unexpected error %v", err)
		}
	}
	assert.Equal(t, 1, failed)

	rec, err := env.store.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Success)
	assert.Equal(t, 3*3+30, rec.Points)

	daily, err := env.store.GetOrCreateDaily(context.Background(), u.ID, env.aggregator.Today())
	require.NoError(t, err)
	assert.Equal(t, 1, daily.Success)
	assert.Equal(t, 3*3+30, daily.Points)
}

func TestChallengeMissEndsAttemptWithoutBonus(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.register(t, "Bob", "Hanbit", "red")

	_, err := env.play.Start(ctx, u.ID, "saa", domain.ModeChallenge)
	require.NoError(t, err)

	var out app.Outcome
	for _, sub := range []domain.Submission{right, right, wrong} {
		out, err = env.play.Answer(ctx, u.ID, domain.ModeChallenge, sub)
		require.NoError(t, err)
	}

	v := out.Verdict
	assert.False(t, v.Correct)
	assert.Equal(t, domain.StateFailed, v.State)
	assert.Equal(t, 2, v.CorrectCount)
	assert.Zero(t, v.Bonus)
	assert.Equal(t, []string{"right"}, v.CorrectAnswers)
	assert.Len(t, v.CorrectQuestions, 2)
	require.NotNil(t, v.MissedQuestion)
	assert.Equal(t, out.Attempt.QuestionIDs[2], *v.MissedQuestion)

	rec, err := env.store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 3+3+1, rec.Points)
	assert.Equal(t, 1, rec.Failure)
	assert.Equal(t, rec.Success+rec.Failure, rec.Attempts)

	day, err := env.store.GetOrCreateDaily(ctx, u.ID, "2024-11-22")
	require.NoError(t, err)
	assert.Equal(t, rec.Counters, day.Counters)
}

func TestPersistenceFailureDoesNotEndAttempt(t *testing.T) {
	ctx := context.Background()
	env := newTestEnvWithResults(t, func(s *memory.Store) app.ResultStore { return failingResults{s} })
	u := env.register(t, "Carol", "", "")

	_, err := env.play.Start(ctx, u.ID, "saa", domain.ModeChallenge)
	require.NoError(t, err)

	out, err := env.play.Answer(ctx, u.ID, domain.ModeChallenge, right)
	require.NoError(t, err)
	assert.True(t, out.Verdict.Correct)
	assert.NotEmpty(t, out.Verdict.Warning)
	assert.Equal(t, 1, out.Attempt.Cursor)
	assert.Equal(t, domain.StateInProgress, out.Attempt.State)
	assert.Equal(t, []string{"record"}, env.metrics.failures)

	current, err := env.play.Current(ctx, u.ID, domain.ModeChallenge)
	require.NoError(t, err)
	assert.Equal(t, 1, current.Attempt.Cursor)
}

func TestStartValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.register(t, "Dave", "", "")

	_, err := env.play.Start(ctx, "ghost", "saa", domain.ModeChallenge)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = env.play.Start(ctx, u.ID, "nope", domain.ModeChallenge)
	assert.ErrorIs(t, err, domain.ErrBankNotFound)

	_, err = env.play.Start(ctx, u.ID, "tiny", domain.ModeChallenge)
	assert.ErrorIs(t, err, domain.ErrInsufficientBankSize)

	_, err = env.play.Start(ctx, u.ID, "saa", domain.Mode("sprint"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = env.play.Answer(ctx, u.ID, domain.ModeChallenge, right)
	assert.ErrorIs(t, err, domain.ErrNoActiveAttempt)
}

func TestRestartDoesNotTouchCounters(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.register(t, "Erin", "", "")

	_, err := env.play.Start(ctx, u.ID, "saa", domain.ModeChallenge)
	require.NoError(t, err)
	_, err = env.play.Answer(ctx, u.ID, domain.ModeChallenge, wrong)
	require.NoError(t, err)
	before, err := env.store.GetUser(ctx, u.ID)
	require.NoError(t, err)

	view, err := env.play.Restart(ctx, u.ID, domain.ModeChallenge)
	require.NoError(t, err)
	assert.Equal(t, domain.StateInProgress, view.Attempt.State)
	assert.Zero(t, view.Attempt.Cursor)
	assert.Zero(t, view.Attempt.Correct)

	after, err := env.store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Counters, after.Counters)

	require.NoError(t, env.play.Discard(ctx, u.ID, domain.ModeChallenge))
	_, err = env.play.Current(ctx, u.ID, domain.ModeChallenge)
	assert.ErrorIs(t, err, domain.ErrNoActiveAttempt)
}

func TestHomeworkOverwritesAndRecordsRows(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.register(t, "Fay", "Hanbit", "blue")

	view, err := env.play.Start(ctx, u.ID, "saa", domain.ModeHomework)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, view.Attempt.QuestionIDs)

	out, err := env.play.Answer(ctx, u.ID, domain.ModeHomework, wrong)
	require.NoError(t, err)
	assert.Equal(t, domain.StateInProgress, out.Verdict.State)
	out, err = env.play.Answer(ctx, u.ID, domain.ModeHomework, right)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Attempt.Correct)
	assert.Equal(t, 1, out.Attempt.Answered())

	nav, err := env.play.Navigate(ctx, u.ID, 3)
	require.NoError(t, err)
	require.NotNil(t, nav.Question)
	assert.Equal(t, 4, nav.Question.ID)
	_, err = env.play.Answer(ctx, u.ID, domain.ModeHomework, right)
	require.NoError(t, err)

	_, err = env.play.Navigate(ctx, u.ID, 9)
	assert.ErrorIs(t, err, domain.ErrQuestionOutOfRange)

	rec, err := env.store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Correct)
	assert.Equal(t, 1, rec.Wrong)
	assert.Zero(t, rec.Attempts)
	assert.Equal(t, 3+1+3, rec.Points)

	rows, err := env.store.ListHomework(ctx, "2024-11-22", "saa")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].QuestionID)
	assert.Equal(t, 2, rows[0].Attempts)
	assert.True(t, rows[0].LastCorrect)
	assert.Equal(t, "Fay", rows[0].UserName)
	assert.Equal(t, 4, rows[1].QuestionID)
}

func TestNavigateRequiresHomeworkAttempt(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.register(t, "Gus", "", "")

	_, err := env.play.Navigate(ctx, u.ID, 0)
	assert.ErrorIs(t, err, domain.ErrNoActiveAttempt)
}

func TestSubscribeReceivesLeaderboard(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.register(t, "Hana", "", "")

	updates, cancel := env.play.Subscribe()
	defer cancel()

	_, err := env.play.Start(ctx, u.ID, "saa", domain.ModeChallenge)
	require.NoError(t, err)
	_, err = env.play.Answer(ctx, u.ID, domain.ModeChallenge, right)
	require.NoError(t, err)

	select {
	case lb := <-updates:
		require.Len(t, lb.Entries, 1)
		assert.Equal(t, 3, lb.Entries[0].Points)
		assert.Equal(t, 1, lb.Entries[0].Rank)
	case <-time.After(time.Second):
		t.Fatal("expected a leaderboard update")
	}
}

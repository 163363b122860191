package app_test

import (
	"context"
	"testing"
	"time"

	"saa-quiz-service/internal/app"
	"saa-quiz-service/internal/domain"
	"saa-quiz-service/internal/infra/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaderboardLifetimeAndDay(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.register(t, "Alice", "Hanbit", "blue")
	bob := env.register(t, "Bob", "Hanbit", "red")
	cho := env.register(t, "Cho", "Saebyeol", "red")

	_, _ = env.store.Increment(ctx, alice.ID, "2024-11-21", domain.CounterDelta{Points: 30})
	_, _ = env.store.Increment(ctx, bob.ID, "2024-11-22", domain.CounterDelta{Points: 30})
	_, _ = env.store.Increment(ctx, cho.ID, "2024-11-22", domain.CounterDelta{Points: 10})

	lb, err := env.reports.Leaderboard(ctx, domain.ScopeAll, "")
	require.NoError(t, err)
	require.Len(t, lb.Entries, 3)
	assert.Equal(t, []string{"Alice", "Bob", "Cho"}, []string{lb.Entries[0].Name, lb.Entries[1].Name, lb.Entries[2].Name})
	assert.Equal(t, []int{1, 1, 3}, []int{lb.Entries[0].Rank, lb.Entries[1].Rank, lb.Entries[2].Rank})
	assert.Empty(t, lb.Groups)

	day, err := env.reports.Leaderboard(ctx, domain.ScopeAll, "2024-11-22")
	require.NoError(t, err)
	require.Len(t, day.Entries, 2)
	assert.Equal(t, "Bob", day.Entries[0].Name)

	schools, err := env.reports.Leaderboard(ctx, domain.ScopeSchool, "")
	require.NoError(t, err)
	require.Len(t, schools.Groups, 2)
	assert.Equal(t, "Hanbit", schools.Groups[0].Name)
	assert.Equal(t, 60, schools.Groups[0].TotalPoints)

	teams, err := env.reports.Leaderboard(ctx, domain.ScopeTeam, "2024-11-22")
	require.NoError(t, err)
	require.Len(t, teams.Groups, 1)
	assert.Equal(t, "red", teams.Groups[0].Name)
	assert.Equal(t, 2, teams.Groups[0].Members)

	_, err = env.reports.Leaderboard(ctx, domain.Scope("galaxy"), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDailyStatsFromPlay(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.register(t, "Alice", "", "")

	for i := 0; i < 2; i++ {
		_, err := env.play.Start(ctx, u.ID, "saa", domain.ModeChallenge)
		require.NoError(t, err)
		for j := 0; j < 3; j++ {
			_, err = env.play.Answer(ctx, u.ID, domain.ModeChallenge, right)
			require.NoError(t, err)
		}
	}

	stats, err := env.reports.DailyStats(ctx, "2024-11-22")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Participants)
	assert.Equal(t, 2, stats.TotalAttempts)
	require.NotNil(t, stats.TopSuccess)
	assert.Equal(t, "Alice", stats.TopSuccess.Name)

	empty, err := env.reports.DailyStats(ctx, "2024-11-23")
	require.NoError(t, err)
	assert.Zero(t, empty.Participants)

	_, err = env.reports.DailyStats(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUserDayCreatesEmptyRow(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.register(t, "Alice", "", "")

	row, err := env.reports.UserDay(ctx, u.ID, "2024-11-30")
	require.NoError(t, err)
	assert.Equal(t, "2024-11-30", row.Day)
	assert.Zero(t, row.Counters)

	_, err = env.reports.UserDay(ctx, "ghost", "2024-11-30")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestHomeworkDashboardViews(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	at := time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)
	record := func(user, name string, q int, correct bool) {
		key := domain.HomeworkKey{Day: "2024-11-22", Topic: "saa", QuestionID: q, UserID: user}
		_, err := store.RecordHomework(ctx, key, name, correct, at)
		require.NoError(t, err)
	}
	record("u2", "Bob", 2, true)
	record("u1", "Alice", 3, false)
	record("u1", "Alice", 1, true)
	record("u2", "Bob", 1, false)
	record("u2", "Bob", 1, true)

	svc := app.NewHomeworkService(store)

	students, err := svc.Students(ctx, "2024-11-22", "saa")
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "Alice", students[0].UserName)
	assert.Equal(t, []int{1}, students[0].CorrectQuestions)
	assert.Equal(t, []int{3}, students[0].IncorrectQuestions)
	assert.Equal(t, "Bob", students[1].UserName)
	assert.Equal(t, 2, students[1].Correct)
	assert.Equal(t, []int{1, 2}, students[1].CorrectQuestions)

	questions, err := svc.Questions(ctx, "2024-11-22", "saa")
	require.NoError(t, err)
	require.Len(t, questions, 3)
	assert.Equal(t, 1, questions[0].QuestionID)
	assert.Equal(t, 2, questions[0].CorrectCount)
	assert.Equal(t, []string{"Alice", "Bob"}, questions[0].CorrectStudents)
	assert.Equal(t, []string{"Alice"}, questions[2].IncorrectStudents)
}

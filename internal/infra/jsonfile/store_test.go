package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"saa-quiz-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "results.json")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.CreateUser(ctx, domain.UserRecord{ID: "u1", Name: "Alice", School: "Hanbit", Credential: "pw"}))
	_, err = s.Increment(ctx, "u1", "2024-11-22", domain.CounterDelta{Points: 33, Correct: 1, Success: 1})
	require.NoError(t, err)
	_, err = s.RecordHomework(ctx, domain.HomeworkKey{Day: "2024-11-22", Topic: "saa", QuestionID: 3, UserID: "u1"}, "Alice", false, time.Now())
	require.NoError(t, err)

	reopened, err := Open(path)
	require.NoError(t, err)

	u, err := reopened.FindUserByName(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "pw", u.Credential)
	assert.Equal(t, 33, u.Points)
	assert.Equal(t, 1, u.Attempts)

	rows, err := reopened.ListDaily(ctx, "2024-11-22")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 33, rows[0].Points)

	hw, err := reopened.ListHomework(ctx, "2024-11-22", "saa")
	require.NoError(t, err)
	require.Len(t, hw, 1)
	assert.Equal(t, 1, hw[0].Wrong)
}

func TestStoreRollsBackWhenWriteFails(t *testing.T) {
	ctx := context.Background()
	blocker := filepath.Join(t.TempDir(), "data")
	s, err := Open(filepath.Join(blocker, "results.json"))
	require.NoError(t, err)
	// a plain file where the data directory should be makes every flush fail
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0o644))

	err = s.CreateUser(ctx, domain.UserRecord{ID: "u1", Name: "Alice"})
	assert.ErrorIs(t, err, domain.ErrPersistenceUnavailable)

	_, err = s.GetUser(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestStorePassesDomainErrorsThrough(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "results.json"))
	require.NoError(t, err)

	_, err = s.Increment(context.Background(), "ghost", "2024-11-22", domain.CounterDelta{Points: 1})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestOpenRejectsCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))

	_, err := Open(path)
	assert.Error(t, err)
}

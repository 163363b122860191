package app_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"saa-quiz-service/internal/app"
	"saa-quiz-service/internal/domain"
	"saa-quiz-service/internal/infra/memory"

	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	store      *memory.Store
	results    app.ResultStore
	tracker    *app.Tracker
	aggregator *app.Aggregator
	reports    *app.ReportService
	play       *app.PlayService
	users      *app.UserService
	metrics    *recordingMetrics
}

// bankQuestions builds n single-answer questions whose correct choice is always "right".
func bankQuestions(n int) []domain.Question {
	qs := make([]domain.Question, n)
	for i := range qs {
		qs[i] = domain.Question{
			ID:     i + 1,
			Prompt: map[string]string{domain.LocaleEnglish: fmt.Sprintf("question %d", i+1)},
			Choices: map[string]map[string]string{
				domain.LocaleEnglish: {"A": "right", "B": "wrong"},
			},
			Answer: []string{"A"},
		}
	}
	return qs
}

func newCatalog(t *testing.T) *app.Catalog {
	t.Helper()
	loader := memory.NewStaticBankLoader(map[string][]domain.Question{
		"saa.json":  bankQuestions(5),
		"tiny.json": bankQuestions(2),
	})
	catalog, err := app.NewCatalog([]app.BankSpec{
		{ID: "saa", Title: "SAA", Source: "saa.json", Loader: "static"},
		{ID: "tiny", Title: "Tiny", Source: "tiny.json", Loader: "static"},
	}, map[string]app.BankLoader{"static": loader})
	require.NoError(t, err)
	return catalog
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithResults(t, nil)
}

// newTestEnvWithResults lets a test swap the result store used by the aggregator.
func newTestEnvWithResults(t *testing.T, wrap func(*memory.Store) app.ResultStore) *testEnv {
	t.Helper()
	store := memory.NewStore()
	var results app.ResultStore = store
	if wrap != nil {
		results = wrap(store)
	}
	banks := memory.NewBankRepository(newCatalog(t), time.Minute)
	clock := func() time.Time { return fixedNow }
	tracker := app.NewTrackerWithRand(banks, 3, rand.New(rand.NewSource(11)), clock)
	aggregator := app.NewAggregatorWithClock(results, domain.DefaultPointsPolicy(), time.UTC, clock)
	reports := app.NewReportService(store, store, 2)
	metrics := &recordingMetrics{}
	play := app.NewPlayService(app.PlayDeps{
		Tracker:    tracker,
		Aggregator: aggregator,
		Attempts:   memory.NewAttemptStore(),
		Users:      store,
		Homework:   store,
		Reports:    reports,
		Feed:       app.NewFeed(),
		Metrics:    metrics,
	})
	return &testEnv{
		store:      store,
		results:    results,
		tracker:    tracker,
		aggregator: aggregator,
		reports:    reports,
		play:       play,
		users:      app.NewUserService(store, nil),
		metrics:    metrics,
	}
}

// newPlay builds another PlayService over the env's stores, as a second server
// instance would.
func (e *testEnv) newPlay(attempts app.AttemptStore) *app.PlayService {
	return app.NewPlayService(app.PlayDeps{
		Tracker:    e.tracker,
		Aggregator: e.aggregator,
		Attempts:   attempts,
		Users:      e.store,
		Homework:   e.store,
	})
}

// slowAttempts delays reads the way a remote attempt store would.
type slowAttempts struct {
	app.AttemptStore
	delay time.Duration
}

func (s slowAttempts) GetAttempt(ctx context.Context, userID string, mode domain.Mode) (domain.Attempt, bool, error) {
	time.Sleep(s.delay)
	return s.AttemptStore.GetAttempt(ctx, userID, mode)
}

func (e *testEnv) register(t *testing.T, name, school, team string) domain.UserRecord {
	t.Helper()
	u, err := e.users.Register(context.Background(), name, school, team, "secret-"+name)
	require.NoError(t, err)
	return u
}

var (
	right = domain.Submission{Choices: []string{"right"}}
	wrong = domain.Submission{Choices: []string{"wrong"}}
)

type recordingMetrics struct {
	answers  int
	finished []bool
	failures []string
}

func (m *recordingMetrics) Answer(domain.Mode, bool)       { m.answers++ }
func (m *recordingMetrics) AttemptFinished(succeeded bool) { m.finished = append(m.finished, succeeded) }
func (m *recordingMetrics) PersistenceFailure(op string)   { m.failures = append(m.failures, op) }

// failingResults rejects every increment as if the backend were down.
type failingResults struct {
	*memory.Store
}

func (failingResults) Increment(context.Context, string, string, domain.CounterDelta) (domain.UserRecord, error) {
	return domain.UserRecord{}, errors.New("dial tcp 10.0.0.5:6379: connection refused")
}

package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"saa-quiz-service/internal/domain"

	"golang.org/x/sync/errgroup"
)

// ReportService derives leaderboards and daily statistics from persisted counters.
// Every call recomputes from the store; nothing is cached.
type ReportService struct {
	users        UserRepository
	results      ResultStore
	topThreshold int
	now          func() time.Time
}

func NewReportService(users UserRepository, results ResultStore, topThreshold int) *ReportService {
	return &ReportService{users: users, results: results, topThreshold: topThreshold, now: time.Now}
}

// Leaderboard ranks users for scope. An empty day ranks lifetime counters; a day ranks
// that day's rows and leaves out users without one.
func (s *ReportService) Leaderboard(ctx context.Context, scope domain.Scope, day string) (domain.Leaderboard, error) {
	if !scope.Valid() {
		return domain.Leaderboard{}, fmt.Errorf("%w: scope %q", domain.ErrInvalidInput, scope)
	}
	users, daily, err := s.load(ctx, day)
	if err != nil {
		return domain.Leaderboard{}, err
	}

	entries := make([]domain.LeaderboardEntry, 0, len(users))
	if day == "" {
		for _, u := range users {
			entries = append(entries, entryFor(u, u.Counters))
		}
	} else {
		rows := make(map[string]domain.Counters, len(daily))
		for _, d := range daily {
			rows[d.UserID] = d.Counters
		}
		for _, u := range users {
			if c, ok := rows[u.ID]; ok {
				entries = append(entries, entryFor(u, c))
			}
		}
	}

	lb := domain.Leaderboard{Scope: scope, Day: day, Entries: RankEntries(entries), UpdatedAt: s.now()}
	switch scope {
	case domain.ScopeSchool:
		lb.Groups = RankGroups(lb.Entries, func(e domain.LeaderboardEntry) string { return e.School })
	case domain.ScopeTeam:
		lb.Groups = RankGroups(lb.Entries, func(e domain.LeaderboardEntry) string { return e.Team })
	}
	return lb, nil
}

// DailyStats summarises day.
func (s *ReportService) DailyStats(ctx context.Context, day string) (domain.DailyStats, error) {
	if day == "" {
		return domain.DailyStats{}, fmt.Errorf("%w: day is required", domain.ErrInvalidInput)
	}
	users, daily, err := s.load(ctx, day)
	if err != nil {
		return domain.DailyStats{}, err
	}
	return DayStats(day, users, daily, s.topThreshold), nil
}

// UserDay returns the user's row for day, creating an empty one on first touch.
func (s *ReportService) UserDay(ctx context.Context, userID, day string) (domain.DailyResult, error) {
	if _, err := s.results.GetUser(ctx, userID); err != nil {
		return domain.DailyResult{}, err
	}
	return s.results.GetOrCreateDaily(ctx, userID, day)
}

func (s *ReportService) load(ctx context.Context, day string) ([]domain.UserRecord, []domain.DailyResult, error) {
	var (
		users []domain.UserRecord
		daily []domain.DailyResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = s.users.ListUsers(gctx)
		return err
	})
	if day != "" {
		g.Go(func() error {
			var err error
			daily, err = s.results.ListDaily(gctx, day)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, persistenceError(err)
	}
	return users, daily, nil
}

// HomeworkService builds the homework dashboard views.
type HomeworkService struct {
	homework HomeworkStore
}

func NewHomeworkService(homework HomeworkStore) *HomeworkService {
	return &HomeworkService{homework: homework}
}

// Students groups the (day, topic) rows per user, classifying each question by its
// latest answer.
func (s *HomeworkService) Students(ctx context.Context, day, topic string) ([]domain.StudentHomework, error) {
	rows, err := s.homework.ListHomework(ctx, day, topic)
	if err != nil {
		return nil, persistenceError(err)
	}
	index := map[string]int{}
	var out []domain.StudentHomework
	for _, r := range rows {
		i, ok := index[r.UserID]
		if !ok {
			i = len(out)
			index[r.UserID] = i
			out = append(out, domain.StudentHomework{
				UserID:             r.UserID,
				UserName:           r.UserName,
				CorrectQuestions:   []int{},
				IncorrectQuestions: []int{},
			})
		}
		if r.LastCorrect {
			out[i].Correct++
			out[i].CorrectQuestions = append(out[i].CorrectQuestions, r.QuestionID)
		} else {
			out[i].Incorrect++
			out[i].IncorrectQuestions = append(out[i].IncorrectQuestions, r.QuestionID)
		}
	}
	for i := range out {
		sort.Ints(out[i].CorrectQuestions)
		sort.Ints(out[i].IncorrectQuestions)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UserName != out[j].UserName {
			return out[i].UserName < out[j].UserName
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

// Questions groups the (day, topic) rows per question.
func (s *HomeworkService) Questions(ctx context.Context, day, topic string) ([]domain.QuestionHomework, error) {
	rows, err := s.homework.ListHomework(ctx, day, topic)
	if err != nil {
		return nil, persistenceError(err)
	}
	index := map[int]int{}
	var out []domain.QuestionHomework
	for _, r := range rows {
		i, ok := index[r.QuestionID]
		if !ok {
			i = len(out)
			index[r.QuestionID] = i
			out = append(out, domain.QuestionHomework{
				QuestionID:        r.QuestionID,
				CorrectStudents:   []string{},
				IncorrectStudents: []string{},
			})
		}
		if r.LastCorrect {
			out[i].CorrectCount++
			out[i].CorrectStudents = append(out[i].CorrectStudents, r.UserName)
		} else {
			out[i].IncorrectCount++
			out[i].IncorrectStudents = append(out[i].IncorrectStudents, r.UserName)
		}
	}
	for i := range out {
		sort.Strings(out[i].CorrectStudents)
		sort.Strings(out[i].IncorrectStudents)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

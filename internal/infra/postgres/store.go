package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"saa-quiz-service/internal/domain"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

type userModel struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID         string    `bun:"id,pk"`
	Name       string    `bun:"name,notnull"`
	School     string    `bun:"school,notnull"`
	Team       string    `bun:"team,notnull"`
	Credential string    `bun:"credential,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
	CounterColumns
}

type dailyModel struct {
	bun.BaseModel `bun:"table:daily_results,alias:d"`

	Day       string    `bun:"day,pk"`
	UserID    string    `bun:"user_id,pk"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	CounterColumns
}

type homeworkModel struct {
	bun.BaseModel `bun:"table:homework_results,alias:h"`

	Day         string    `bun:"day,pk"`
	Topic       string    `bun:"topic,pk"`
	QuestionID  int       `bun:"question_id,pk"`
	UserID      string    `bun:"user_id,pk"`
	UserName    string    `bun:"user_name,notnull"`
	Attempts    int       `bun:"attempts,notnull"`
	Correct     int       `bun:"correct,notnull"`
	Wrong       int       `bun:"wrong,notnull"`
	LastCorrect bool      `bun:"last_correct,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

// CounterColumns are the additive counters shared by users and daily_results.
type CounterColumns struct {
	Points   int `bun:"points,notnull"`
	Correct  int `bun:"correct,notnull"`
	Wrong    int `bun:"wrong,notnull"`
	Success  int `bun:"success,notnull"`
	Failure  int `bun:"failure,notnull"`
	Attempts int `bun:"attempts,notnull"`
}

// Store keeps users, daily rows and homework rows in Postgres. Counter updates are
// additive UPDATE / ON CONFLICT statements executed in one transaction.
type Store struct {
	db  *bun.DB
	now func() time.Time
}

func NewStore(db *bun.DB) *Store {
	return NewStoreWithClock(db, time.Now)
}

func NewStoreWithClock(db *bun.DB, now func() time.Time) *Store {
	return &Store{db: db, now: now}
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserRecord) error {
	row := userModel{
		ID:             user.ID,
		Name:           user.Name,
		School:         user.School,
		Team:           user.Team,
		Credential:     user.Credential,
		CreatedAt:      user.CreatedAt,
		CounterColumns: fromCounters(user.Counters),
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrUserExists, user.Name)
		}
		return unavailable("create user", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (domain.UserRecord, error) {
	var row userModel
	err := s.db.NewSelect().Model(&row).Where("id = ?", userID).Scan(ctx)
	if err != nil {
		return domain.UserRecord{}, userError("get user", err)
	}
	return row.toDomain(), nil
}

func (s *Store) FindUserByName(ctx context.Context, name string) (domain.UserRecord, error) {
	var row userModel
	err := s.db.NewSelect().Model(&row).Where("name = ?", name).Scan(ctx)
	if err != nil {
		return domain.UserRecord{}, userError("find user", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserRecord, error) {
	var rows []userModel
	if err := s.db.NewSelect().Model(&rows).Order("created_at ASC", "id ASC").Scan(ctx); err != nil {
		return nil, unavailable("list users", err)
	}
	out := make([]domain.UserRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// DeleteUser relies on ON DELETE CASCADE to drop the user's daily and homework rows.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	res, err := s.db.NewDelete().Model((*userModel)(nil)).Where("id = ?", userID).Exec(ctx)
	if err != nil {
		return unavailable("delete user", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (s *Store) Increment(ctx context.Context, userID, day string, delta domain.CounterDelta) (domain.UserRecord, error) {
	var user userModel
	attempts := delta.Success + delta.Failure
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model(&user).
			Set("points = points + ?", delta.Points).
			Set("correct = correct + ?", delta.Correct).
			Set("wrong = wrong + ?", delta.Wrong).
			Set("success = success + ?", delta.Success).
			Set("failure = failure + ?", delta.Failure).
			Set("attempts = success + failure + ?", attempts).
			Where("id = ?", userID).
			Returning("*").
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil || n == 0 {
			return domain.ErrUserNotFound
		}

		daily := dailyModel{
			Day:       day,
			UserID:    userID,
			CreatedAt: s.now(),
			CounterColumns: CounterColumns{
				Points:   delta.Points,
				Correct:  delta.Correct,
				Wrong:    delta.Wrong,
				Success:  delta.Success,
				Failure:  delta.Failure,
				Attempts: attempts,
			},
		}
		_, err = tx.NewInsert().Model(&daily).
			On("CONFLICT (day, user_id) DO UPDATE").
			Set("points = ?TableAlias.points + EXCLUDED.points").
			Set("correct = ?TableAlias.correct + EXCLUDED.correct").
			Set("wrong = ?TableAlias.wrong + EXCLUDED.wrong").
			Set("success = ?TableAlias.success + EXCLUDED.success").
			Set("failure = ?TableAlias.failure + EXCLUDED.failure").
			Set("attempts = ?TableAlias.success + ?TableAlias.failure + EXCLUDED.attempts").
			Exec(ctx)
		return err
	})
	if err != nil {
		return domain.UserRecord{}, userError("increment", err)
	}
	return user.toDomain(), nil
}

func (s *Store) GetOrCreateDaily(ctx context.Context, userID, day string) (domain.DailyResult, error) {
	var row dailyModel
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*userModel)(nil)).Where("id = ?", userID).Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrUserNotFound
		}
		fresh := dailyModel{Day: day, UserID: userID, CreatedAt: s.now()}
		if _, err := tx.NewInsert().Model(&fresh).On("CONFLICT (day, user_id) DO NOTHING").Exec(ctx); err != nil {
			return err
		}
		return tx.NewSelect().Model(&row).Where("day = ?", day).Where("user_id = ?", userID).Scan(ctx)
	})
	if err != nil {
		return domain.DailyResult{}, userError("daily", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListDaily(ctx context.Context, day string) ([]domain.DailyResult, error) {
	var rows []dailyModel
	err := s.db.NewSelect().Model(&rows).Where("day = ?", day).Order("created_at ASC", "user_id ASC").Scan(ctx)
	if err != nil {
		return nil, unavailable("list daily", err)
	}
	out := make([]domain.DailyResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) RecordHomework(ctx context.Context, key domain.HomeworkKey, userName string, correct bool, at time.Time) (domain.HomeworkRecord, error) {
	row := homeworkModel{
		Day:         key.Day,
		Topic:       key.Topic,
		QuestionID:  key.QuestionID,
		UserID:      key.UserID,
		UserName:    userName,
		Attempts:    1,
		LastCorrect: correct,
		UpdatedAt:   at,
	}
	if correct {
		row.Correct = 1
	} else {
		row.Wrong = 1
	}
	_, err := s.db.NewInsert().Model(&row).
		On("CONFLICT (day, topic, question_id, user_id) DO UPDATE").
		Set("attempts = ?TableAlias.attempts + 1").
		Set("correct = ?TableAlias.correct + EXCLUDED.correct").
		Set("wrong = ?TableAlias.wrong + EXCLUDED.wrong").
		Set("last_correct = EXCLUDED.last_correct").
		Set("updated_at = EXCLUDED.updated_at").
		Set("user_name = COALESCE(NULLIF(EXCLUDED.user_name, ''), ?TableAlias.user_name)").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return domain.HomeworkRecord{}, unavailable("record homework", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListHomework(ctx context.Context, day, topic string) ([]domain.HomeworkRecord, error) {
	var rows []homeworkModel
	err := s.db.NewSelect().Model(&rows).
		Where("day = ?", day).
		Where("topic = ?", topic).
		Order("question_id ASC", "user_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, unavailable("list homework", err)
	}
	out := make([]domain.HomeworkRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func fromCounters(c domain.Counters) CounterColumns {
	return CounterColumns{
		Points:   c.Points,
		Correct:  c.Correct,
		Wrong:    c.Wrong,
		Success:  c.Success,
		Failure:  c.Failure,
		Attempts: c.Success + c.Failure,
	}
}

func (c CounterColumns) toDomain() domain.Counters {
	return domain.Counters{
		Points:   c.Points,
		Correct:  c.Correct,
		Wrong:    c.Wrong,
		Success:  c.Success,
		Failure:  c.Failure,
		Attempts: c.Success + c.Failure,
	}
}

func (m userModel) toDomain() domain.UserRecord {
	return domain.UserRecord{
		ID:         m.ID,
		Name:       m.Name,
		School:     m.School,
		Team:       m.Team,
		Credential: m.Credential,
		CreatedAt:  m.CreatedAt,
		Counters:   m.CounterColumns.toDomain(),
	}
}

func (m dailyModel) toDomain() domain.DailyResult {
	return domain.DailyResult{Day: m.Day, UserID: m.UserID, Counters: m.CounterColumns.toDomain()}
}

func (m homeworkModel) toDomain() domain.HomeworkRecord {
	return domain.HomeworkRecord{
		HomeworkKey: domain.HomeworkKey{
			Day:        m.Day,
			Topic:      m.Topic,
			QuestionID: m.QuestionID,
			UserID:     m.UserID,
		},
		UserName:    m.UserName,
		Attempts:    m.Attempts,
		Correct:     m.Correct,
		Wrong:       m.Wrong,
		LastCorrect: m.LastCorrect,
		UpdatedAt:   m.UpdatedAt,
	}
}

func userError(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, domain.ErrUserNotFound) {
		return domain.ErrUserNotFound
	}
	return unavailable(op, err)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrPersistenceUnavailable, op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == "23505"
}

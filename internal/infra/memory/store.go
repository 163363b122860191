package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"saa-quiz-service/internal/domain"
)

// Store keeps users, daily rows and homework rows in process. A single mutex makes
// every Increment atomic across the user and daily row.
type Store struct {
	mu sync.RWMutex

	users     map[string]*domain.UserRecord
	userOrder []string
	names     map[string]string

	daily      map[string]map[string]*domain.DailyResult
	dailyOrder map[string][]string

	homework      map[domain.HomeworkKey]*domain.HomeworkRecord
	homeworkOrder []domain.HomeworkKey
}

func NewStore() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.users = make(map[string]*domain.UserRecord)
	s.userOrder = nil
	s.names = make(map[string]string)
	s.daily = make(map[string]map[string]*domain.DailyResult)
	s.dailyOrder = make(map[string][]string)
	s.homework = make(map[domain.HomeworkKey]*domain.HomeworkRecord)
	s.homeworkOrder = nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(user)
}

func (s *Store) createLocked(user domain.UserRecord) error {
	if _, ok := s.users[user.ID]; ok {
		return fmt.Errorf("%w: id %s", domain.ErrUserExists, user.ID)
	}
	if _, ok := s.names[user.Name]; ok {
		return fmt.Errorf("%w: %s", domain.ErrUserExists, user.Name)
	}
	u := user
	s.users[u.ID] = &u
	s.userOrder = append(s.userOrder, u.ID)
	s.names[u.Name] = u.ID
	return nil
}

func (s *Store) GetUser(_ context.Context, userID string) (domain.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return domain.UserRecord{}, domain.ErrUserNotFound
	}
	return *u, nil
}

func (s *Store) FindUserByName(_ context.Context, name string) (domain.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.names[name]
	if !ok {
		return domain.UserRecord{}, domain.ErrUserNotFound
	}
	return *s.users[id], nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UserRecord, 0, len(s.userOrder))
	for _, id := range s.userOrder {
		out = append(out, *s.users[id])
	}
	return out, nil
}

func (s *Store) DeleteUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	delete(s.names, u.Name)
	delete(s.users, userID)
	s.userOrder = without(s.userOrder, userID)

	for day, rows := range s.daily {
		if _, ok := rows[userID]; ok {
			delete(rows, userID)
			s.dailyOrder[day] = without(s.dailyOrder[day], userID)
		}
	}
	kept := s.homeworkOrder[:0]
	for _, key := range s.homeworkOrder {
		if key.UserID == userID {
			delete(s.homework, key)
			continue
		}
		kept = append(kept, key)
	}
	s.homeworkOrder = kept
	return nil
}

func (s *Store) Increment(_ context.Context, userID, day string, delta domain.CounterDelta) (domain.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return domain.UserRecord{}, domain.ErrUserNotFound
	}
	u.Counters = u.Counters.Apply(delta)
	row := s.dailyLocked(userID, day)
	row.Counters = row.Counters.Apply(delta)
	return *u, nil
}

func (s *Store) GetOrCreateDaily(_ context.Context, userID, day string) (domain.DailyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return domain.DailyResult{}, domain.ErrUserNotFound
	}
	return *s.dailyLocked(userID, day), nil
}

func (s *Store) dailyLocked(userID, day string) *domain.DailyResult {
	rows, ok := s.daily[day]
	if !ok {
		rows = make(map[string]*domain.DailyResult)
		s.daily[day] = rows
	}
	row, ok := rows[userID]
	if !ok {
		row = &domain.DailyResult{Day: day, UserID: userID}
		rows[userID] = row
		s.dailyOrder[day] = append(s.dailyOrder[day], userID)
	}
	return row
}

func (s *Store) ListDaily(_ context.Context, day string) ([]domain.DailyResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order := s.dailyOrder[day]
	out := make([]domain.DailyResult, 0, len(order))
	for _, id := range order {
		out = append(out, *s.daily[day][id])
	}
	return out, nil
}

func (s *Store) RecordHomework(_ context.Context, key domain.HomeworkKey, userName string, correct bool, at time.Time) (domain.HomeworkRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.homework[key]
	if !ok {
		row = &domain.HomeworkRecord{HomeworkKey: key}
		s.homework[key] = row
		s.homeworkOrder = append(s.homeworkOrder, key)
	}
	if userName != "" {
		row.UserName = userName
	}
	*row = row.Apply(correct, at)
	return *row, nil
}

func (s *Store) ListHomework(_ context.Context, day, topic string) ([]domain.HomeworkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.HomeworkRecord
	for _, key := range s.homeworkOrder {
		if key.Day == day && key.Topic == topic {
			out = append(out, *s.homework[key])
		}
	}
	return out, nil
}

// Document is the serialisable form of a Store.
type Document struct {
	Users    []UserDocument          `json:"users"`
	Daily    []domain.DailyResult    `json:"daily"`
	Homework []domain.HomeworkRecord `json:"homework"`
}

// UserDocument keeps the credential, which UserRecord hides from JSON.
type UserDocument struct {
	domain.UserRecord
	Credential string `json:"credential"`
}

// Snapshot copies the store into a Document. Daily rows are grouped by day in first-touch order.
func (s *Store) Snapshot() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := Document{
		Users:    make([]UserDocument, 0, len(s.userOrder)),
		Daily:    []domain.DailyResult{},
		Homework: make([]domain.HomeworkRecord, 0, len(s.homeworkOrder)),
	}
	for _, id := range s.userOrder {
		u := *s.users[id]
		doc.Users = append(doc.Users, UserDocument{UserRecord: u, Credential: u.Credential})
	}
	for _, day := range sortedKeys(s.dailyOrder) {
		for _, id := range s.dailyOrder[day] {
			doc.Daily = append(doc.Daily, *s.daily[day][id])
		}
	}
	for _, key := range s.homeworkOrder {
		doc.Homework = append(doc.Homework, *s.homework[key])
	}
	return doc
}

// Restore replaces the store's contents with doc.
func (s *Store) Restore(doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	for _, u := range doc.Users {
		user := u.UserRecord
		user.Credential = u.Credential
		user.Attempts = user.Success + user.Failure
		if err := s.createLocked(user); err != nil {
			return err
		}
	}
	for _, d := range doc.Daily {
		row := s.dailyLocked(d.UserID, d.Day)
		row.Counters = d.Counters
		row.Attempts = row.Success + row.Failure
	}
	for _, h := range doc.Homework {
		if _, ok := s.homework[h.HomeworkKey]; !ok {
			s.homeworkOrder = append(s.homeworkOrder, h.HomeworkKey)
		}
		row := h
		s.homework[h.HomeworkKey] = &row
	}
	return nil
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

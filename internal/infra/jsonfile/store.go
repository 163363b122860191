package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"saa-quiz-service/internal/domain"
	"saa-quiz-service/internal/infra/memory"
)

// Store persists users, daily rows and homework rows as one JSON document. Reads are
// served from memory; every write rewrites the file through a temp file and rename.
// A failed write rolls the in-memory state back so memory never runs ahead of disk.
type Store struct {
	path string
	mu   sync.Mutex
	mem  *memory.Store
}

// Open loads path if it exists and starts empty otherwise.
func Open(path string) (*Store, error) {
	s := &Store{path: path, mem: memory.NewStore()}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceUnavailable, err)
	}
	var doc memory.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := s.mem.Restore(doc); err != nil {
		return nil, fmt.Errorf("restore %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserRecord) error {
	return s.write(func() error { return s.mem.CreateUser(ctx, user) })
}

func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	return s.write(func() error { return s.mem.DeleteUser(ctx, userID) })
}

func (s *Store) Increment(ctx context.Context, userID, day string, delta domain.CounterDelta) (domain.UserRecord, error) {
	var out domain.UserRecord
	err := s.write(func() error {
		var err error
		out, err = s.mem.Increment(ctx, userID, day, delta)
		return err
	})
	return out, err
}

func (s *Store) GetOrCreateDaily(ctx context.Context, userID, day string) (domain.DailyResult, error) {
	var out domain.DailyResult
	err := s.write(func() error {
		var err error
		out, err = s.mem.GetOrCreateDaily(ctx, userID, day)
		return err
	})
	return out, err
}

func (s *Store) RecordHomework(ctx context.Context, key domain.HomeworkKey, userName string, correct bool, at time.Time) (domain.HomeworkRecord, error) {
	var out domain.HomeworkRecord
	err := s.write(func() error {
		var err error
		out, err = s.mem.RecordHomework(ctx, key, userName, correct, at)
		return err
	})
	return out, err
}

func (s *Store) GetUser(ctx context.Context, userID string) (domain.UserRecord, error) {
	return s.mem.GetUser(ctx, userID)
}

func (s *Store) FindUserByName(ctx context.Context, name string) (domain.UserRecord, error) {
	return s.mem.FindUserByName(ctx, name)
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserRecord, error) {
	return s.mem.ListUsers(ctx)
}

func (s *Store) ListDaily(ctx context.Context, day string) ([]domain.DailyResult, error) {
	return s.mem.ListDaily(ctx, day)
}

func (s *Store) ListHomework(ctx context.Context, day, topic string) ([]domain.HomeworkRecord, error) {
	return s.mem.ListHomework(ctx, day, topic)
}

func (s *Store) write(apply func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.mem.Snapshot()
	if err := apply(); err != nil {
		return err
	}
	if err := s.flush(s.mem.Snapshot()); err != nil {
		if rerr := s.mem.Restore(before); rerr != nil {
			return fmt.Errorf("%w: %v (rollback: %v)", domain.ErrPersistenceUnavailable, err, rerr)
		}
		return fmt.Errorf("%w: %v", domain.ErrPersistenceUnavailable, err)
	}
	return nil
}

func (s *Store) flush(doc memory.Document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

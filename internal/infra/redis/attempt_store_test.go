package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"saa-quiz-service/internal/domain"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestAttemptStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewAttemptStore(newClient(mr), time.Minute)
	attempt := domain.Attempt{
		UserID:      "u1",
		BankID:      "saa",
		Mode:        domain.ModeHomework,
		QuestionIDs: []int{4, 2, 9},
		Cursor:      1,
		State:       domain.StateInProgress,
		Answers:     map[int]bool{4: true, 2: false},
	}

	if err := store.PutAttempt(ctx, attempt); err != nil {
		t.Fatalf("put: %v", err)
	}
	if !mr.Exists("attempt:homework:u1") {
		t.Fatalf("expected redis key to be set")
	}
	if mr.TTL("attempt:homework:u1") != time.Minute {
		t.Fatalf("expected ttl on attempt key")
	}

	got, ok, err := store.GetAttempt(ctx, "u1", domain.ModeHomework)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Cursor != 1 || len(got.QuestionIDs) != 3 || got.Answers[4] != true || got.Answers[2] != false {
		t.Fatalf("attempt did not round-trip: %+v", got)
	}

	if _, ok, _ := store.GetAttempt(ctx, "u1", domain.ModeChallenge); ok {
		t.Fatalf("expected no challenge attempt")
	}

	if err := store.DeleteAttempt(ctx, "u1", domain.ModeHomework); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("attempt:homework:u1") {
		t.Fatalf("expected redis key to be removed")
	}
}

func TestAttemptStoreReplaceChecksVersion(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewAttemptStore(newClient(mr), time.Minute)
	attempt := domain.Attempt{UserID: "u1", BankID: "saa", Mode: domain.ModeChallenge, QuestionIDs: []int{1, 2, 3}, State: domain.StateInProgress}

	if err := store.ReplaceAttempt(ctx, attempt); !errors.Is(err, domain.ErrPersistenceConflict) {
		t.Fatalf("expected conflict for a missing attempt, got %v", err)
	}
	if err := store.PutAttempt(ctx, attempt); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.PutAttempt(ctx, attempt); err != nil {
		t.Fatalf("put again: %v", err)
	}
	loaded, _, err := store.GetAttempt(ctx, "u1", domain.ModeChallenge)
	if err != nil || loaded.Version != 2 {
		t.Fatalf("expected version 2, got %d (err %v)", loaded.Version, err)
	}

	next := loaded
	next.Cursor = 1
	if err := store.ReplaceAttempt(ctx, next); err != nil {
		t.Fatalf("replace: %v", err)
	}
	stale := loaded
	stale.State = domain.StateSucceeded
	if err := store.ReplaceAttempt(ctx, stale); !errors.Is(err, domain.ErrPersistenceConflict) {
		t.Fatalf("expected conflict for a stale version, got %v", err)
	}

	got, _, _ := store.GetAttempt(ctx, "u1", domain.ModeChallenge)
	if got.Cursor != 1 || got.Version != 3 || got.State != domain.StateInProgress {
		t.Fatalf("stale write must not land: %+v", got)
	}
	if mr.TTL("attempt:challenge:u1") != time.Minute {
		t.Fatalf("expected ttl refreshed on replace")
	}
}

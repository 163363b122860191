package domain

import (
	"fmt"
	"math/rand"
	"time"
)

// Mode selects the attempt rules.
type Mode string

const (
	// ModeChallenge is the strict streak: any miss ends the attempt.
	ModeChallenge Mode = "challenge"
	// ModeHomework allows free navigation and re-answering.
	ModeHomework Mode = "homework"
)

func (m Mode) Valid() bool {
	return m == ModeChallenge || m == ModeHomework
}

type AttemptState string

const (
	StateInProgress AttemptState = "in_progress"
	StateSucceeded  AttemptState = "succeeded"
	StateFailed     AttemptState = "failed"
)

// Attempt is one run through a sampled subset of a bank. It references questions by
// id; callers re-resolve them against the bank when scoring. Operations return a new
// value and never modify the receiver.
type Attempt struct {
	UserID      string       `json:"userId"`
	BankID      string       `json:"bankId"`
	Mode        Mode         `json:"mode"`
	QuestionIDs []int        `json:"questionIds"`
	Cursor      int          `json:"cursor"`
	Correct     int          `json:"correct"`
	State       AttemptState `json:"state"`
	// Answers holds the latest correctness per question id (homework only).
	Answers   map[int]bool `json:"answers,omitempty"`
	StartedAt time.Time    `json:"startedAt"`
	// Version is bumped by the attempt store on every write.
	Version int64 `json:"version"`
}

// NewChallenge samples size distinct questions uniformly at random without replacement.
func NewChallenge(rnd *rand.Rand, userID string, bank Bank, size int, now time.Time) (Attempt, error) {
	if size <= 0 {
		return Attempt{}, fmt.Errorf("%w: attempt size must be positive", ErrInvalidInput)
	}
	if size > len(bank.Questions) {
		return Attempt{}, fmt.Errorf("%w: want %d, bank %q has %d", ErrInsufficientBankSize, size, bank.ID, len(bank.Questions))
	}
	ids := make([]int, len(bank.Questions))
	for i, q := range bank.Questions {
		ids[i] = q.ID
	}
	// partial Fisher-Yates: the first size slots end up a uniform sample
	for i := 0; i < size; i++ {
		j := i + rnd.Intn(len(ids)-i)
		ids[i], ids[j] = ids[j], ids[i]
	}
	return Attempt{
		UserID:      userID,
		BankID:      bank.ID,
		Mode:        ModeChallenge,
		QuestionIDs: ids[:size:size],
		State:       StateInProgress,
		StartedAt:   now,
	}, nil
}

// NewHomework presents the whole bank in its stored order.
func NewHomework(userID string, bank Bank, now time.Time) (Attempt, error) {
	if len(bank.Questions) == 0 {
		return Attempt{}, fmt.Errorf("%w: bank %q is empty", ErrInsufficientBankSize, bank.ID)
	}
	ids := make([]int, len(bank.Questions))
	for i, q := range bank.Questions {
		ids[i] = q.ID
	}
	return Attempt{
		UserID:      userID,
		BankID:      bank.ID,
		Mode:        ModeHomework,
		QuestionIDs: ids,
		State:       StateInProgress,
		Answers:     map[int]bool{},
		StartedAt:   now,
	}, nil
}

// Clone copies the slices and maps so the result can be stored independently.
func (a Attempt) Clone() Attempt {
	a.QuestionIDs = append([]int(nil), a.QuestionIDs...)
	if a.Answers != nil {
		answers := make(map[int]bool, len(a.Answers))
		for k, v := range a.Answers {
			answers[k] = v
		}
		a.Answers = answers
	}
	return a
}

func (a Attempt) Size() int        { return len(a.QuestionIDs) }
func (a Attempt) Terminal() bool   { return a.State == StateSucceeded || a.State == StateFailed }
func (a Attempt) Succeeded() bool  { return a.State == StateSucceeded }
func (a Attempt) Answered() int    { return len(a.Answers) }
func (a Attempt) IsHomework() bool { return a.Mode == ModeHomework }

// Progress is the completed fraction: cursor/size for challenges, answered/size for homework.
func (a Attempt) Progress() float64 {
	if a.Size() == 0 {
		return 0
	}
	if a.IsHomework() {
		return float64(a.Answered()) / float64(a.Size())
	}
	return float64(a.Cursor) / float64(a.Size())
}

// CurrentQuestionID returns the question id at the cursor.
func (a Attempt) CurrentQuestionID() (int, error) {
	if a.Terminal() {
		return 0, ErrAttemptTerminal
	}
	if a.Cursor < 0 || a.Cursor >= a.Size() {
		return 0, ErrQuestionOutOfRange
	}
	return a.QuestionIDs[a.Cursor], nil
}

// Advance applies a scored challenge answer. A correct answer moves the cursor and
// succeeds the attempt on the last question; a wrong answer fails it in place.
func (a Attempt) Advance(correct bool) (Attempt, error) {
	if a.Mode != ModeChallenge {
		return a, ErrModeMismatch
	}
	if a.Terminal() {
		return a, ErrAttemptTerminal
	}
	if !correct {
		a.State = StateFailed
		return a, nil
	}
	a.Correct++
	a.Cursor++
	if a.Cursor == a.Size() {
		a.State = StateSucceeded
	}
	return a, nil
}

// RecordAnswer overwrites the correctness of the current homework question.
func (a Attempt) RecordAnswer(correct bool) (Attempt, error) {
	if a.Mode != ModeHomework {
		return a, ErrModeMismatch
	}
	id, err := a.CurrentQuestionID()
	if err != nil {
		return a, err
	}
	answers := make(map[int]bool, len(a.Answers)+1)
	for k, v := range a.Answers {
		answers[k] = v
	}
	answers[id] = correct
	a.Answers = answers
	a.Correct = 0
	for _, ok := range answers {
		if ok {
			a.Correct++
		}
	}
	return a, nil
}

// MoveTo jumps to position index of a homework attempt.
func (a Attempt) MoveTo(index int) (Attempt, error) {
	if a.Mode != ModeHomework {
		return a, ErrModeMismatch
	}
	if index < 0 || index >= a.Size() {
		return a, ErrQuestionOutOfRange
	}
	a.Cursor = index
	return a, nil
}

// AnsweredIDs splits a finished challenge into the ids answered correctly and the one
// that broke the streak, if any.
func (a Attempt) AnsweredIDs() (correct []int, missed *int) {
	n := a.Correct
	if n > a.Size() {
		n = a.Size()
	}
	correct = append([]int(nil), a.QuestionIDs[:n]...)
	if a.State == StateFailed && a.Cursor < a.Size() {
		id := a.QuestionIDs[a.Cursor]
		missed = &id
	}
	return correct, missed
}

package domain

import "time"

// Counters are the tallies kept per user (lifetime) and per user per day.
// Attempts is derived: it always equals Success + Failure.
type Counters struct {
	Points   int `json:"points"`
	Correct  int `json:"correct"`
	Wrong    int `json:"wrong"`
	Success  int `json:"success"`
	Failure  int `json:"failure"`
	Attempts int `json:"attempts"`
}

// CounterDelta is an additive update to Counters.
type CounterDelta struct {
	Points  int `json:"points"`
	Correct int `json:"correct"`
	Wrong   int `json:"wrong"`
	Success int `json:"success"`
	Failure int `json:"failure"`
}

// Apply adds d and recomputes the derived attempts field.
func (c Counters) Apply(d CounterDelta) Counters {
	c.Points += d.Points
	c.Correct += d.Correct
	c.Wrong += d.Wrong
	c.Success += d.Success
	c.Failure += d.Failure
	c.Attempts = c.Success + c.Failure
	return c
}

// Accuracy is the share of correct answers in percent.
func (c Counters) Accuracy() float64 {
	total := c.Correct + c.Wrong
	if total == 0 {
		return 0
	}
	return float64(c.Correct) / float64(total) * 100
}

// UserRecord is a registered learner and their lifetime counters.
type UserRecord struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	School     string    `json:"school"`
	Team       string    `json:"team"`
	Credential string    `json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
	Counters
}

// Public drops the credential before a record leaves the service.
func (u UserRecord) Public() UserRecord {
	u.Credential = ""
	return u
}

// DailyResult holds one user's counters for one calendar day.
type DailyResult struct {
	Day    string `json:"day"`
	UserID string `json:"userId"`
	Counters
}

// HomeworkKey identifies one homework row.
type HomeworkKey struct {
	Day        string `json:"day"`
	Topic      string `json:"topic"`
	QuestionID int    `json:"questionId"`
	UserID     string `json:"userId"`
}

// HomeworkRecord tracks how a user answered one homework question on one day.
type HomeworkRecord struct {
	HomeworkKey
	UserName    string    `json:"userName"`
	Attempts    int       `json:"attempts"`
	Correct     int       `json:"correct"`
	Wrong       int       `json:"wrong"`
	LastCorrect bool      `json:"lastCorrect"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Apply records one more answer on the row.
func (r HomeworkRecord) Apply(correct bool, at time.Time) HomeworkRecord {
	r.Attempts++
	if correct {
		r.Correct++
	} else {
		r.Wrong++
	}
	r.LastCorrect = correct
	r.UpdatedAt = at
	return r
}

// Verdict is the outcome of one submission.
type Verdict struct {
	QuestionID     int          `json:"questionId"`
	Correct        bool         `json:"correct"`
	Awarded        int          `json:"awarded"`
	Bonus          int          `json:"bonus"`
	State          AttemptState `json:"state"`
	CorrectCount   int          `json:"correctCount"`
	Progress       float64      `json:"progress"`
	CorrectAnswers []string     `json:"correctAnswers,omitempty"`
	// Set on the submission that ends a challenge.
	CorrectQuestions []int  `json:"correctQuestions,omitempty"`
	MissedQuestion   *int   `json:"missedQuestion,omitempty"`
	Warning          string `json:"warning,omitempty"`
}

func (v Verdict) Terminal() bool  { return v.State != StateInProgress }
func (v Verdict) Succeeded() bool { return v.State == StateSucceeded }

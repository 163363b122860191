package domain

import (
	"fmt"
	"time"
)

// DayLayout is the calendar-day key format used by daily and homework rows.
const DayLayout = "2006-01-02"

// DayOf returns the calendar day of t in loc.
func DayOf(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DayLayout)
}

// ParseDay validates a day key.
func ParseDay(raw string) (string, error) {
	t, err := time.Parse(DayLayout, raw)
	if err != nil {
		return "", fmt.Errorf("%w: day %q", ErrInvalidInput, raw)
	}
	return t.Format(DayLayout), nil
}

// Scope selects how the leaderboard groups users.
type Scope string

const (
	ScopeAll    Scope = "all"
	ScopeSchool Scope = "school"
	ScopeTeam   Scope = "team"
)

func (s Scope) Valid() bool {
	return s == ScopeAll || s == ScopeSchool || s == ScopeTeam
}

// LeaderboardEntry is one ranked user.
type LeaderboardEntry struct {
	Rank     int     `json:"rank"`
	UserID   string  `json:"userId"`
	Name     string  `json:"name"`
	School   string  `json:"school"`
	Team     string  `json:"team"`
	Points   int     `json:"points"`
	Correct  int     `json:"correct"`
	Wrong    int     `json:"wrong"`
	Success  int     `json:"success"`
	Failure  int     `json:"failure"`
	Attempts int     `json:"attempts"`
	Accuracy float64 `json:"accuracy"`
}

// GroupEntry is one ranked school or team. Rank orders by total points and
// AverageRank by points per member, independently.
type GroupEntry struct {
	Rank          int     `json:"rank"`
	AverageRank   int     `json:"averageRank"`
	Name          string  `json:"name"`
	TotalPoints   int     `json:"totalPoints"`
	Members       int     `json:"members"`
	AveragePoints float64 `json:"averagePoints"`
}

// Leaderboard captures the ordered scoreboard for a scope and day ("" means all time).
type Leaderboard struct {
	Scope     Scope              `json:"scope"`
	Day       string             `json:"day,omitempty"`
	Entries   []LeaderboardEntry `json:"entries"`
	Groups    []GroupEntry       `json:"groups,omitempty"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// TopPerformer is the user with the most successes on a day.
type TopPerformer struct {
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	Successes int    `json:"successes"`
}

// DailyStats summarises one day of activity.
type DailyStats struct {
	Day           string        `json:"day"`
	Participants  int           `json:"participants"`
	TotalAttempts int           `json:"totalAttempts"`
	TopSuccess    *TopPerformer `json:"topSuccess,omitempty"`
}

// StudentHomework is the per-student row of the homework dashboard.
type StudentHomework struct {
	UserID             string `json:"userId"`
	UserName           string `json:"userName"`
	Correct            int    `json:"correct"`
	Incorrect          int    `json:"incorrect"`
	CorrectQuestions   []int  `json:"correctQuestions"`
	IncorrectQuestions []int  `json:"incorrectQuestions"`
}

// QuestionHomework is the per-question row of the homework dashboard.
type QuestionHomework struct {
	QuestionID        int      `json:"questionId"`
	CorrectCount      int      `json:"correctCount"`
	IncorrectCount    int      `json:"incorrectCount"`
	CorrectStudents   []string `json:"correctStudents"`
	IncorrectStudents []string `json:"incorrectStudents"`
}

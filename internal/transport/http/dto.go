package http

import (
	"saa-quiz-service/internal/app"
	"saa-quiz-service/internal/domain"
)

// questionView is a question as clients see it: never the answer labels.
type questionView struct {
	ID          int                          `json:"idx"`
	Prompt      map[string]string            `json:"question"`
	Choices     map[string]map[string]string `json:"choices"`
	Labels      []string                     `json:"labels"`
	MultiAnswer bool                         `json:"multiAnswer"`
	AnswerCount int                          `json:"answerCount"`
}

type attemptView struct {
	BankID   string              `json:"bankId"`
	Mode     domain.Mode         `json:"mode"`
	State    domain.AttemptState `json:"state"`
	Cursor   int                 `json:"cursor"`
	Size     int                 `json:"size"`
	Correct  int                 `json:"correct"`
	Progress float64             `json:"progress"`
	Answered map[int]bool        `json:"answered,omitempty"`
	Question *questionView       `json:"question,omitempty"`
}

type outcomeView struct {
	Verdict domain.Verdict `json:"verdict"`
	Attempt attemptView    `json:"attempt"`
}

func toQuestionView(q *domain.Question) *questionView {
	if q == nil {
		return nil
	}
	c := q.Clone()
	return &questionView{
		ID:          c.ID,
		Prompt:      c.Prompt,
		Choices:     c.Choices,
		Labels:      c.Labels(),
		MultiAnswer: c.IsMultiAnswer(),
		AnswerCount: len(c.Answer),
	}
}

func toAttemptView(v app.AttemptView) attemptView {
	a := v.Attempt
	out := attemptView{
		BankID:   a.BankID,
		Mode:     a.Mode,
		State:    a.State,
		Cursor:   a.Cursor,
		Size:     a.Size(),
		Correct:  a.Correct,
		Progress: a.Progress(),
		Question: toQuestionView(v.Question),
	}
	if a.IsHomework() {
		out.Answered = a.Answers
	}
	return out
}

func toOutcomeView(o app.Outcome) outcomeView {
	return outcomeView{Verdict: o.Verdict, Attempt: toAttemptView(o.AttemptView)}
}

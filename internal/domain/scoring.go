package domain

import "fmt"

// Submission is a learner's answer to the current question. Choices carries choice
// text in Locale; Labels, when set, are resolved to text in Locale before comparison.
type Submission struct {
	Locale  string   `json:"locale,omitempty"`
	Choices []string `json:"choices,omitempty"`
	Labels  []string `json:"labels,omitempty"`
}

// PointsPolicy is the points table applied to answers and completed attempts.
type PointsPolicy struct {
	Correct      int `yaml:"correct_points" json:"correctPoints"`
	Wrong        int `yaml:"wrong_points" json:"wrongPoints"`
	SuccessBonus int `yaml:"success_bonus" json:"successBonus"`
}

// DefaultPointsPolicy mirrors the values the quiz has always used.
func DefaultPointsPolicy() PointsPolicy {
	return PointsPolicy{Correct: 3, Wrong: 1, SuccessBonus: 30}
}

// Validate checks that a correct answer, a wrong answer and a completed attempt all
// earn points, and that a wrong answer earns less than a correct one.
func (p PointsPolicy) Validate() error {
	switch {
	case p.Correct <= 0:
		return fmt.Errorf("%w: correct points must be positive, got %d", ErrInvalidInput, p.Correct)
	case p.Wrong <= 0:
		return fmt.Errorf("%w: wrong points must be positive, got %d", ErrInvalidInput, p.Wrong)
	case p.Wrong >= p.Correct:
		return fmt.Errorf("%w: wrong points (%d) must be below correct points (%d)", ErrInvalidInput, p.Wrong, p.Correct)
	case p.SuccessBonus <= 0:
		return fmt.Errorf("%w: success bonus must be positive, got %d", ErrInvalidInput, p.SuccessBonus)
	}
	return nil
}

// AnswerPoints is the participation or correctness award for a single answer.
func (p PointsPolicy) AnswerPoints(correct bool) int {
	if correct {
		return p.Correct
	}
	return p.Wrong
}

// Delta converts one scored answer into counter increments. The bonus and the
// success/failure tallies apply only on the submission that ends the attempt.
func (p PointsPolicy) Delta(correct, terminal, succeeded bool) CounterDelta {
	d := CounterDelta{Points: p.AnswerPoints(correct)}
	if correct {
		d.Correct = 1
	} else {
		d.Wrong = 1
	}
	if terminal {
		if succeeded {
			d.Success = 1
			d.Points += p.SuccessBonus
		} else {
			d.Failure = 1
		}
	}
	return d
}

// Score reports whether sub answers q. Single-answer questions need exactly one
// selection equal to the correct text; multi-answer questions need set equality.
func Score(q Question, sub Submission) bool {
	locale := sub.Locale
	if locale == "" {
		locale = q.CanonicalLocale()
	}
	correct := uniqueStrings(q.CorrectTexts(locale))
	if len(correct) == 0 {
		return false
	}
	selected := uniqueStrings(resolveSelection(q, locale, sub))

	if !q.IsMultiAnswer() {
		return len(selected) == 1 && selected[0] == correct[0]
	}
	if len(selected) != len(correct) {
		return false
	}
	want := make(map[string]struct{}, len(correct))
	for _, c := range correct {
		want[c] = struct{}{}
	}
	for _, s := range selected {
		if _, ok := want[s]; !ok {
			return false
		}
	}
	return true
}

func resolveSelection(q Question, locale string, sub Submission) []string {
	if len(sub.Labels) == 0 {
		return sub.Choices
	}
	texts := make([]string, 0, len(sub.Labels)+len(sub.Choices))
	for _, label := range sub.Labels {
		text, ok := q.ChoiceText(locale, label)
		if !ok {
			// unknown labels must still count as a (wrong) selection
			text = "\x00" + label
		}
		texts = append(texts, text)
	}
	return append(texts, sub.Choices...)
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

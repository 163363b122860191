package domain

import (
	"fmt"
	"sort"
	"strings"
)

const (
	LocaleKorean  = "kor"
	LocaleEnglish = "eng"
)

// Question is one multiple-choice item of a bank. Prompt and Choices are keyed by
// locale; Choices maps a label (A, B, C, ...) to its text. Answer holds the correct labels.
type Question struct {
	ID      int                          `json:"idx"`
	Prompt  map[string]string            `json:"question"`
	Choices map[string]map[string]string `json:"choices"`
	Answer  []string                     `json:"answer"`
}

// IsMultiAnswer reports whether more than one label is correct.
func (q Question) IsMultiAnswer() bool {
	return len(q.Answer) > 1
}

// CanonicalLocale is the locale used for scoring when a submission names none.
func (q Question) CanonicalLocale() string {
	for _, l := range []string{LocaleKorean, LocaleEnglish} {
		if _, ok := q.Choices[l]; ok {
			return l
		}
	}
	locales := make([]string, 0, len(q.Choices))
	for l := range q.Choices {
		locales = append(locales, l)
	}
	if len(locales) == 0 {
		return ""
	}
	sort.Strings(locales)
	return locales[0]
}

// Labels returns the choice labels of the canonical locale in alphabetical order.
func (q Question) Labels() []string {
	choices := q.Choices[q.CanonicalLocale()]
	labels := make([]string, 0, len(choices))
	for label := range choices {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// ChoiceText resolves a label to its text in the given locale.
func (q Question) ChoiceText(locale, label string) (string, bool) {
	choices, ok := q.Choices[locale]
	if !ok {
		return "", false
	}
	text, ok := choices[label]
	return text, ok
}

// CorrectTexts resolves the correct labels to choice text in locale.
func (q Question) CorrectTexts(locale string) []string {
	texts := make([]string, 0, len(q.Answer))
	for _, label := range q.Answer {
		if text, ok := q.ChoiceText(locale, label); ok {
			texts = append(texts, text)
		}
	}
	return texts
}

// Validate checks the structural invariants a loaded question must satisfy.
func (q Question) Validate() error {
	hasPrompt := false
	for _, p := range q.Prompt {
		if strings.TrimSpace(p) != "" {
			hasPrompt = true
			break
		}
	}
	if !hasPrompt {
		return fmt.Errorf("%w: question %d has no prompt", ErrMalformedBank, q.ID)
	}
	if len(q.Choices) == 0 {
		return fmt.Errorf("%w: question %d has no choices", ErrMalformedBank, q.ID)
	}
	if len(q.Answer) == 0 {
		return fmt.Errorf("%w: question %d has no correct answer", ErrMalformedBank, q.ID)
	}
	for locale, choices := range q.Choices {
		if len(choices) == 0 {
			return fmt.Errorf("%w: question %d has no %s choices", ErrMalformedBank, q.ID, locale)
		}
		for _, label := range q.Answer {
			if _, ok := choices[label]; !ok {
				return fmt.Errorf("%w: question %d answer %q missing from %s choices", ErrMalformedBank, q.ID, label, locale)
			}
		}
	}
	return nil
}

// Clone returns a deep copy so callers never share mutable maps or slices.
func (q Question) Clone() Question {
	out := Question{
		ID:      q.ID,
		Prompt:  make(map[string]string, len(q.Prompt)),
		Choices: make(map[string]map[string]string, len(q.Choices)),
		Answer:  append([]string(nil), q.Answer...),
	}
	for k, v := range q.Prompt {
		out.Prompt[k] = v
	}
	for locale, choices := range q.Choices {
		c := make(map[string]string, len(choices))
		for label, text := range choices {
			c[label] = text
		}
		out.Choices[locale] = c
	}
	return out
}

// ValidateQuestions validates every record and rejects duplicate ids.
func ValidateQuestions(questions []Question) error {
	if len(questions) == 0 {
		return fmt.Errorf("%w: bank is empty", ErrMalformedBank)
	}
	seen := make(map[int]struct{}, len(questions))
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return err
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: duplicate question id %d", ErrMalformedBank, q.ID)
		}
		seen[q.ID] = struct{}{}
	}
	return nil
}

// Bank is an ordered collection of questions drawn from one topic.
type Bank struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// BankInfo is the catalogue view of a bank.
type BankInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Find returns the question with the given id.
func (b Bank) Find(id int) (Question, bool) {
	for _, q := range b.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

func (b Bank) Clone() Bank {
	out := Bank{ID: b.ID, Title: b.Title, Questions: make([]Question, len(b.Questions))}
	for i, q := range b.Questions {
		out.Questions[i] = q.Clone()
	}
	return out
}

// CloneQuestions deep-copies a question slice.
func CloneQuestions(questions []Question) []Question {
	out := make([]Question, len(questions))
	for i, q := range questions {
		out[i] = q.Clone()
	}
	return out
}

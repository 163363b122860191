package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"saa-quiz-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bankJSON = `[
  {
    "idx": 1,
    "question": {"kor": "객체 스토리지 서비스는?", "eng": "Which service is object storage?"},
    "choices": {
      "kor": {"A": "S3", "B": "EBS", "C": "EFS"},
      "eng": {"A": "S3", "B": "EBS", "C": "EFS"}
    },
    "answer": ["A"]
  },
  {
    "idx": 2,
    "question": {"eng": "Pick the serverless services."},
    "choices": {"eng": {"A": "Lambda", "B": "EC2", "C": "Fargate"}},
    "answer": ["A", "C"]
  }
]`

func writeBank(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestBankLoaderLoadsRelativeSource(t *testing.T) {
	dir := t.TempDir()
	writeBank(t, dir, "saa.json", bankJSON)
	loader := NewBankLoader(dir)

	qs, err := loader.LoadBank(context.Background(), "saa.json")
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, 1, qs[0].ID)
	assert.Equal(t, domain.LocaleKorean, qs[0].CanonicalLocale())
	assert.True(t, qs[1].IsMultiAnswer())
	assert.True(t, domain.Score(qs[1], domain.Submission{Choices: []string{"Fargate", "Lambda"}}))
}

func TestBankLoaderLoadsAreIndependent(t *testing.T) {
	dir := t.TempDir()
	writeBank(t, dir, "saa.json", bankJSON)
	loader := NewBankLoader(dir)

	first, err := loader.LoadBank(context.Background(), "saa.json")
	require.NoError(t, err)
	second, err := loader.LoadBank(context.Background(), "saa.json")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	first[0].Choices[domain.LocaleEnglish]["A"] = "Glacier"
	assert.Equal(t, "S3", second[0].Choices[domain.LocaleEnglish]["A"])
}

func TestBankLoaderErrors(t *testing.T) {
	dir := t.TempDir()
	writeBank(t, dir, "broken.json", `[{"idx": 1,`)
	writeBank(t, dir, "noanswer.json", `[{"idx": 1, "question": {"eng": "q"}, "choices": {"eng": {"A": "x"}}, "answer": []}]`)
	writeBank(t, dir, "empty.json", `[]`)
	loader := NewBankLoader(dir)
	ctx := context.Background()

	_, err := loader.LoadBank(ctx, "missing.json")
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	_, err = loader.LoadBank(ctx, "broken.json")
	assert.ErrorIs(t, err, domain.ErrMalformedBank)
	_, err = loader.LoadBank(ctx, "noanswer.json")
	assert.ErrorIs(t, err, domain.ErrMalformedBank)
	_, err = loader.LoadBank(ctx, "empty.json")
	assert.ErrorIs(t, err, domain.ErrMalformedBank)
}

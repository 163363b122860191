package memory

import (
	"context"
	"testing"
	"time"

	"saa-quiz-service/internal/domain"
)

func TestBankRepositoryCaches(t *testing.T) {
	fetcher := &countingFetcher{bank: sampleBank()}
	repo := NewBankRepository(fetcher, time.Minute)

	if _, err := repo.GetBank(context.Background(), "saa"); err != nil {
		t.Fatalf("get bank: %v", err)
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected fetcher once, got %d", fetcher.calls)
	}

	if _, err := repo.GetBank(context.Background(), "saa"); err != nil {
		t.Fatalf("get bank 2: %v", err)
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected cache hit, fetcher calls %d", fetcher.calls)
	}

	repo.Invalidate("saa")
	_, _ = repo.GetBank(context.Background(), "saa")
	if fetcher.calls != 2 {
		t.Fatalf("expected refetch after invalidate, got %d", fetcher.calls)
	}
}

func TestBankRepositoryReturnsIndependentCopies(t *testing.T) {
	repo := NewBankRepository(&countingFetcher{bank: sampleBank()}, time.Minute)

	first, err := repo.GetBank(context.Background(), "saa")
	if err != nil {
		t.Fatalf("get bank: %v", err)
	}
	first.Questions[0].Choices[domain.LocaleEnglish]["A"] = "mutated"

	second, err := repo.GetBank(context.Background(), "saa")
	if err != nil {
		t.Fatalf("get bank: %v", err)
	}
	if got := second.Questions[0].Choices[domain.LocaleEnglish]["A"]; got != "S3" {
		t.Fatalf("cached bank leaked a caller's edit: %q", got)
	}
}

func TestBankRepositoryZeroTTLDoesNotCache(t *testing.T) {
	fetcher := &countingFetcher{bank: sampleBank()}
	repo := NewBankRepository(fetcher, 0)

	_, _ = repo.GetBank(context.Background(), "saa")
	_, _ = repo.GetBank(context.Background(), "saa")
	if fetcher.calls != 2 {
		t.Fatalf("expected no caching with zero ttl, got %d calls", fetcher.calls)
	}
}

func TestStaticBankLoaderReturnsFreshSlices(t *testing.T) {
	loader := NewStaticBankLoader(map[string][]domain.Question{"saa.json": sampleBank().Questions})

	a, err := loader.LoadBank(context.Background(), "saa.json")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	b, err := loader.LoadBank(context.Background(), "saa.json")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	a[0].Answer[0] = "B"
	if b[0].Answer[0] != "A" {
		t.Fatalf("loads share state")
	}

	if _, err := loader.LoadBank(context.Background(), "missing.json"); err == nil {
		t.Fatalf("expected source unavailable")
	}
}

type countingFetcher struct {
	bank  domain.Bank
	calls int
}

func (f *countingFetcher) FetchBank(_ context.Context, bankID string) (domain.Bank, error) {
	f.calls++
	if bankID != f.bank.ID {
		return domain.Bank{}, domain.ErrBankNotFound
	}
	return f.bank.Clone(), nil
}

func sampleBank() domain.Bank {
	return domain.Bank{
		ID:    "saa",
		Title: "Solutions Architect Associate",
		Questions: []domain.Question{
			{
				ID:     1,
				Prompt: map[string]string{domain.LocaleEnglish: "Which service stores objects?"},
				Choices: map[string]map[string]string{
					domain.LocaleEnglish: {"A": "S3", "B": "EBS"},
				},
				Answer: []string{"A"},
			},
		},
	}
}

package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"saa-quiz-service/internal/app"
	"saa-quiz-service/internal/domain"

	"golang.org/x/sync/singleflight"
)

// BankRepository caches banks with TTL to avoid re-reading the source on every answer.
// Each read returns a deep copy, so callers never share question maps.
type BankRepository struct {
	fetcher app.BankFetcher
	ttl     time.Duration
	clock   func() time.Time
	sf      singleflight.Group
	rnd     *rand.Rand
	rndMu   sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedBank
}

type cachedBank struct {
	bank      domain.Bank
	expiresAt time.Time
}

func NewBankRepository(fetcher app.BankFetcher, ttl time.Duration) *BankRepository {
	return &BankRepository{
		fetcher: fetcher,
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:   make(map[string]cachedBank),
	}
}

func (r *BankRepository) GetBank(ctx context.Context, bankID string) (domain.Bank, error) {
	if bank, ok := r.cached(bankID); ok {
		return bank.Clone(), nil
	}

	result, err, _ := r.sf.Do(bankID, func() (interface{}, error) {
		if bank, ok := r.cached(bankID); ok {
			return bank, nil
		}

		bank, err := r.fetcher.FetchBank(ctx, bankID)
		if err != nil {
			return domain.Bank{}, err
		}

		if ttl := r.ttlWithJitter(); ttl > 0 {
			r.mu.Lock()
			r.cache[bankID] = cachedBank{bank: bank, expiresAt: r.clock().Add(ttl)}
			r.mu.Unlock()
		}
		return bank, nil
	})
	if err != nil {
		return domain.Bank{}, err
	}
	return result.(domain.Bank).Clone(), nil
}

// Invalidate drops a cached bank so the next read goes to the source.
func (r *BankRepository) Invalidate(bankID string) {
	r.mu.Lock()
	delete(r.cache, bankID)
	r.mu.Unlock()
}

func (r *BankRepository) cached(bankID string) (domain.Bank, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[bankID]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.Bank{}, false
	}
	return entry.bank, true
}

func (r *BankRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticBankLoader serves questions from an in-memory map keyed by source (tests, demos).
type StaticBankLoader struct {
	sources map[string][]domain.Question
}

func NewStaticBankLoader(sources map[string][]domain.Question) *StaticBankLoader {
	return &StaticBankLoader{sources: sources}
}

func (l *StaticBankLoader) LoadBank(_ context.Context, source string) ([]domain.Question, error) {
	questions, ok := l.sources[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSourceUnavailable, source)
	}
	if err := domain.ValidateQuestions(questions); err != nil {
		return nil, err
	}
	return domain.CloneQuestions(questions), nil
}

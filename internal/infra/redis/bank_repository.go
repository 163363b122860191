package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"saa-quiz-service/internal/app"
	"saa-quiz-service/internal/domain"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// BankRepository caches whole banks in Redis as JSON (bank:{id}) and falls back to the
// fetcher on a miss. Every read decodes a fresh copy.
type BankRepository struct {
	client  *redis.Client
	fetcher app.BankFetcher
	ttl     time.Duration
	sf      singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewBankRepository(client *redis.Client, fetcher app.BankFetcher, ttl time.Duration) *BankRepository {
	return &BankRepository{
		client:  client,
		fetcher: fetcher,
		ttl:     ttl,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *BankRepository) GetBank(ctx context.Context, bankID string) (domain.Bank, error) {
	if bank, ok := r.cached(ctx, bankID); ok {
		return bank, nil
	}

	result, err, _ := r.sf.Do(bankID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if bank, ok := r.cached(ctx, bankID); ok {
			return bank, nil
		}

		bank, err := r.fetcher.FetchBank(ctx, bankID)
		if err != nil {
			return domain.Bank{}, err
		}

		if ttl := r.ttlWithJitter(); ttl > 0 {
			if raw, err := json.Marshal(bank); err == nil {
				// best-effort: a failed fill only costs another fetch
				_ = r.client.Set(ctx, bankKey(bankID), raw, ttl).Err()
			}
		}
		return bank, nil
	})
	if err != nil {
		return domain.Bank{}, err
	}
	// singleflight shares one value between callers
	return result.(domain.Bank).Clone(), nil
}

// Invalidate drops the cached copy of bankID.
func (r *BankRepository) Invalidate(ctx context.Context, bankID string) error {
	return r.client.Del(ctx, bankKey(bankID)).Err()
}

func (r *BankRepository) cached(ctx context.Context, bankID string) (domain.Bank, bool) {
	raw, err := r.client.Get(ctx, bankKey(bankID)).Bytes()
	if err != nil {
		return domain.Bank{}, false
	}
	var bank domain.Bank
	if err := json.Unmarshal(raw, &bank); err != nil || bank.ID != bankID {
		return domain.Bank{}, false
	}
	return bank, true
}

func (r *BankRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

func bankKey(bankID string) string {
	return "bank:" + bankID
}

func isNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

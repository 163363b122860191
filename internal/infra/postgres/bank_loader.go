package postgres

import (
	"context"
	"errors"
	"fmt"

	"saa-quiz-service/internal/domain"
	"saa-quiz-service/internal/infra/jsonfile"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// BankLoader loads bank JSONB from the banks table. The configured source is the row id.
type BankLoader struct {
	pool *pgxpool.Pool
}

func NewBankLoader(pool *pgxpool.Pool) *BankLoader {
	return &BankLoader{pool: pool}
}

func (l *BankLoader) LoadBank(ctx context.Context, source string) ([]domain.Question, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM banks WHERE id=$1`, source).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: bank %q not in database", domain.ErrSourceUnavailable, source)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load bank: %v", domain.ErrSourceUnavailable, err)
	}
	return jsonfile.ParseBank(raw)
}

// UpsertBank stores raw as the questions of bank id after validating it.
func (l *BankLoader) UpsertBank(ctx context.Context, id, title string, raw []byte) (int, error) {
	questions, err := jsonfile.ParseBank(raw)
	if err != nil {
		return 0, err
	}
	_, err = l.pool.Exec(ctx, `
INSERT INTO banks (id, title, data, updated_at) VALUES ($1, $2, $3::jsonb, now())
ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, data=EXCLUDED.data, updated_at=now()`,
		id, title, string(raw))
	if err != nil {
		return 0, fmt.Errorf("upsert bank: %w", err)
	}
	return len(questions), nil
}

package app

import (
	"context"
	"fmt"
	"sort"

	"saa-quiz-service/internal/domain"
)

// BankSpec describes where a configured bank comes from.
type BankSpec struct {
	ID     string
	Title  string
	Source string
	Loader string
}

// Catalog maps bank ids to sources and loads them through the named loader.
type Catalog struct {
	specs   map[string]BankSpec
	loaders map[string]BankLoader
}

func NewCatalog(specs []BankSpec, loaders map[string]BankLoader) (*Catalog, error) {
	c := &Catalog{
		specs:   make(map[string]BankSpec, len(specs)),
		loaders: loaders,
	}
	for _, s := range specs {
		if s.ID == "" || s.Source == "" {
			return nil, fmt.Errorf("%w: bank needs an id and a source", domain.ErrInvalidInput)
		}
		if _, ok := loaders[s.Loader]; !ok {
			return nil, fmt.Errorf("%w: bank %q uses unknown loader %q", domain.ErrInvalidInput, s.ID, s.Loader)
		}
		if s.Title == "" {
			s.Title = s.ID
		}
		c.specs[s.ID] = s
	}
	return c, nil
}

// FetchBank loads and validates the bank registered under bankID.
func (c *Catalog) FetchBank(ctx context.Context, bankID string) (domain.Bank, error) {
	spec, ok := c.specs[bankID]
	if !ok {
		return domain.Bank{}, fmt.Errorf("%w: %s", domain.ErrBankNotFound, bankID)
	}
	questions, err := c.loaders[spec.Loader].LoadBank(ctx, spec.Source)
	if err != nil {
		return domain.Bank{}, err
	}
	if err := domain.ValidateQuestions(questions); err != nil {
		return domain.Bank{}, fmt.Errorf("bank %s: %w", bankID, err)
	}
	return domain.Bank{ID: spec.ID, Title: spec.Title, Questions: questions}, nil
}

// List returns the configured banks ordered by id.
func (c *Catalog) List() []domain.BankInfo {
	out := make([]domain.BankInfo, 0, len(c.specs))
	for _, s := range c.specs {
		out = append(out, domain.BankInfo{ID: s.ID, Title: s.Title})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Has reports whether bankID is configured.
func (c *Catalog) Has(bankID string) bool {
	_, ok := c.specs[bankID]
	return ok
}

package demo

import (
	"context"
	"fmt"

	po "procurement/internal/domain/purchase_order"
	"procurement/internal/infrastructure/storage/memory"
)

// LoadMemory writes the dataset into an in-memory store.
func (d Dataset) LoadMemory(ctx context.Context, store *memory.Store) error {
	records := make([]any, 0, len(d.Vendors)+len(d.Currencies)+len(d.CreditTerms)+len(d.Units)+len(d.TaxProfiles))
	for _, v := range d.Vendors {
		records = append(records, v)
	}
	for _, c := range d.Currencies {
		records = append(records, c)
	}
	for _, c := range d.CreditTerms {
		records = append(records, c)
	}
	for _, u := range d.Units {
		records = append(records, u)
	}
	for _, t := range d.TaxProfiles {
		records = append(records, t)
	}
	if err := store.Catalogs().Seed(ctx, records...); err != nil {
		return fmt.Errorf("seed catalogs: %w", err)
	}

	if err := store.Directory().Seed(ctx, d.Users...); err != nil {
		return fmt.Errorf("seed users: %w", err)
	}
	if err := store.Workflows().Put(ctx, d.Workflow); err != nil {
		return fmt.Errorf("seed workflow: %w", err)
	}
	if err := store.Numbering().SetPattern(ctx, po.DocType, d.Pattern); err != nil {
		return fmt.Errorf("seed numbering pattern: %w", err)
	}

	for _, r := range d.Requests {
		if err := store.Requests().Add(ctx, r.Header, r.Details...); err != nil {
			return fmt.Errorf("seed request %s: %w", r.Header.RequestNo, err)
		}
	}
	return nil
}

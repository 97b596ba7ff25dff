package demo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Masterminds/squirrel"

	"procurement/internal/domain/catalogs"
	"procurement/internal/domain/directory"
	po "procurement/internal/domain/purchase_order"
	pr "procurement/internal/domain/purchase_request"
	"procurement/internal/infrastructure/storage/postgres"
)

var (
	requestColumns = postgres.Without(postgres.ExtractDBColumns[pr.Request](), "deleted_at")
	detailColumns  = postgres.Without(postgres.ExtractDBColumns[pr.Detail](), "pr_no", "requestor_id")
)

// LoadPostgres inserts the dataset in one transaction and one round-trip.
// Rows that already exist are left untouched.
func (d Dataset) LoadPostgres(ctx context.Context, txm *postgres.TxManager) error {
	stmts, err := d.inserts()
	if err != nil {
		return err
	}

	batch := postgres.NewBatchExecutor(txm)
	return txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return batch.Exec(ctx, stmts...)
	})
}

// inserts returns the statements in foreign-key order.
func (d Dataset) inserts() ([]squirrel.Sqlizer, error) {
	var out []squirrel.Sqlizer

	for _, v := range d.CreditTerms {
		out = append(out, insertRow("credit_terms", v, postgres.ExtractDBColumns[catalogs.CreditTerm]()))
	}
	for _, v := range d.Vendors {
		out = append(out, insertRow("vendors", v, postgres.ExtractDBColumns[catalogs.Vendor]()))
	}
	for _, v := range d.Currencies {
		out = append(out, insertRow("currencies", v, postgres.ExtractDBColumns[catalogs.Currency]()))
	}
	for _, v := range d.Units {
		out = append(out, insertRow("units", v, postgres.ExtractDBColumns[catalogs.Unit]()))
	}
	for _, v := range d.TaxProfiles {
		out = append(out, insertRow("tax_profiles", v, postgres.ExtractDBColumns[catalogs.TaxProfile]()))
	}
	for _, v := range d.Users {
		out = append(out, insertRow("users", v, postgres.ExtractDBColumns[directory.UserProfile]()))
	}

	stages, err := json.Marshal(d.Workflow.Stages)
	if err != nil {
		return nil, fmt.Errorf("marshal workflow stages: %w", err)
	}
	out = append(out, insertMap("sys_workflows", map[string]any{
		"id":        d.Workflow.ID,
		"name":      d.Workflow.Name,
		"stages":    string(stages),
		"is_active": true,
	}))

	pattern, err := json.Marshal(d.Pattern)
	if err != nil {
		return nil, fmt.Errorf("marshal numbering pattern: %w", err)
	}
	out = append(out, insertMap("sys_running_patterns", map[string]any{
		"doc_type": po.DocType,
		"pattern":  string(pattern),
	}))

	for _, r := range d.Requests {
		out = append(out, insertRow("purchase_requests", r.Header, requestColumns))
		for _, line := range r.Details {
			out = append(out, insertRow("purchase_request_details", line, detailColumns))
		}
	}
	return out, nil
}

func insertRow(table string, v any, cols []string) squirrel.InsertBuilder {
	return insertMap(table, postgres.ColumnMap(v, cols))
}

func insertMap(table string, values map[string]any) squirrel.InsertBuilder {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Insert(table).
		SetMap(values).
		Suffix("ON CONFLICT DO NOTHING")
}

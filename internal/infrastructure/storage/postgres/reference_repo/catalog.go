// Package reference_repo provides PostgreSQL implementations of the
// read-mostly reference data: catalogs, the user directory, numbering
// state and stored workflow definitions.
package reference_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"procurement/internal/core/apperror"
	"procurement/internal/core/id"
	"procurement/internal/domain/catalogs"
	"procurement/internal/infrastructure/storage/postgres"
)

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// table describes one catalog table keyed by id.
type table[T any] struct {
	name   string
	entity string
	cols   []string
}

func newTable[T any](name, entity string) table[T] {
	return table[T]{name: name, entity: entity, cols: postgres.ExtractDBColumns[T]()}
}

func (t table[T]) selectByID(key id.ID) squirrel.SelectBuilder {
	return builder().
		Select(t.cols...).
		From(t.name).
		Where(squirrel.Eq{"id": key}).
		Where("deleted_at IS NULL").
		Limit(1)
}

func (t table[T]) get(ctx context.Context, q pgxscan.Querier, key id.ID) (*T, error) {
	sql, args, err := t.selectByID(key).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out T
	if err := pgxscan.Get(ctx, q, &out, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(t.entity, key)
		}
		return nil, fmt.Errorf("get %s: %w", t.entity, err)
	}
	return &out, nil
}

var (
	vendors     = newTable[catalogs.Vendor]("vendors", "vendor")
	currencies  = newTable[catalogs.Currency]("currencies", "currency")
	creditTerms = newTable[catalogs.CreditTerm]("credit_terms", "credit_term")
	units       = newTable[catalogs.Unit]("units", "unit")
	taxProfiles = newTable[catalogs.TaxProfile]("tax_profiles", "tax_profile")
)

// CatalogRepo implements catalogs.Lookup.
type CatalogRepo struct {
	txm *postgres.TxManager
}

var _ catalogs.Lookup = (*CatalogRepo)(nil)

// NewCatalogRepo creates the repository.
func NewCatalogRepo(txm *postgres.TxManager) *CatalogRepo {
	return &CatalogRepo{txm: txm}
}

func (r *CatalogRepo) Vendor(ctx context.Context, vendorID id.ID) (*catalogs.Vendor, error) {
	return vendors.get(ctx, r.txm.GetQuerier(ctx), vendorID)
}

func (r *CatalogRepo) Currency(ctx context.Context, currencyID id.ID) (*catalogs.Currency, error) {
	return currencies.get(ctx, r.txm.GetQuerier(ctx), currencyID)
}

func (r *CatalogRepo) CreditTerm(ctx context.Context, creditTermID id.ID) (*catalogs.CreditTerm, error) {
	return creditTerms.get(ctx, r.txm.GetQuerier(ctx), creditTermID)
}

func (r *CatalogRepo) Unit(ctx context.Context, unitID id.ID) (*catalogs.Unit, error) {
	return units.get(ctx, r.txm.GetQuerier(ctx), unitID)
}

func (r *CatalogRepo) TaxProfile(ctx context.Context, taxProfileID id.ID) (*catalogs.TaxProfile, error) {
	return taxProfiles.get(ctx, r.txm.GetQuerier(ctx), taxProfileID)
}

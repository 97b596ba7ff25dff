package order_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"procurement/internal/core/id"
	pr "procurement/internal/domain/purchase_request"
	"procurement/internal/infrastructure/storage/postgres"
)

const (
	requestsTable       = "purchase_requests"
	requestDetailsTable = "purchase_request_details"
)

// ErrNoTransaction is returned when row locks are requested outside a transaction.
var ErrNoTransaction = errors.New("order_repo: operation requires a transaction")

// Columns of pr.Detail that live on the request header.
var requestHeaderColumns = map[string]bool{"pr_no": true, "requestor_id": true}

var requestDetailSelect = qualify(postgres.ExtractDBColumns[pr.Detail]())

func qualify(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		if requestHeaderColumns[c] {
			out[i] = "r." + c
		} else {
			out[i] = "d." + c
		}
	}
	return out
}

// PurchaseRequestRepo implements purchase_request.Repository.
type PurchaseRequestRepo struct {
	txm *postgres.TxManager
	now func() time.Time
}

var _ pr.Repository = (*PurchaseRequestRepo)(nil)

// NewPurchaseRequestRepo creates the repository.
func NewPurchaseRequestRepo(txm *postgres.TxManager) *PurchaseRequestRepo {
	return &PurchaseRequestRepo{txm: txm, now: time.Now}
}

// FindApprovedDetails implements purchase_request.Repository.
func (r *PurchaseRequestRepo) FindApprovedDetails(ctx context.Context, detailIDs []id.ID) ([]pr.Detail, error) {
	return r.approved(ctx, detailIDs, false)
}

// LockApprovedDetails implements purchase_request.Repository. Request
// headers are locked FOR UPDATE so concurrent confirmations of the same
// request serialize and the loser sees it completed.
func (r *PurchaseRequestRepo) LockApprovedDetails(ctx context.Context, detailIDs []id.ID) ([]pr.Detail, error) {
	if !r.txm.InTransaction(ctx) {
		return nil, ErrNoTransaction
	}
	return r.approved(ctx, detailIDs, true)
}

// MarkCompleted implements purchase_request.Repository.
func (r *PurchaseRequestRepo) MarkCompleted(ctx context.Context, requestIDs []id.ID, userID string) (int, error) {
	if len(requestIDs) == 0 {
		return 0, nil
	}
	sql, args, err := markCompleted(requestIDs, userID, r.now().UTC()).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("complete purchase requests: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PurchaseRequestRepo) approved(ctx context.Context, detailIDs []id.ID, lock bool) ([]pr.Detail, error) {
	if len(detailIDs) == 0 {
		return nil, nil
	}
	sql, args, err := selectApproved(detailIDs, lock).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var details []pr.Detail
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &details, sql, args...); err != nil {
		return nil, fmt.Errorf("select approved request lines: %w", err)
	}
	return details, nil
}

func selectApproved(detailIDs []id.ID, lock bool) squirrel.SelectBuilder {
	q := builder().
		Select(requestDetailSelect...).
		From(requestDetailsTable + " d").
		Join(requestsTable + " r ON r.id = d.purchase_request_id").
		Where(squirrel.Expr("d.id = ANY(?)", detailIDs)).
		Where(squirrel.Eq{"r.status": string(pr.StatusApproved)}).
		Where("r.deleted_at IS NULL").
		Where("d.deleted_at IS NULL").
		OrderByClause("array_position(?::uuid[], d.id)", detailIDs)
	if lock {
		q = q.Suffix("FOR UPDATE OF r")
	}
	return q
}

func markCompleted(requestIDs []id.ID, userID string, at time.Time) squirrel.UpdateBuilder {
	return builder().Update(requestsTable).
		Set("status", string(pr.StatusCompleted)).
		Set("updated_at", at).
		Set("updated_by", userID).
		Where(squirrel.Eq{"id": requestIDs}).
		Where(squirrel.Eq{"status": string(pr.StatusApproved)}).
		Where("deleted_at IS NULL")
}

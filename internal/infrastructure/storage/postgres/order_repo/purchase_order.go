// Package order_repo provides the PostgreSQL repositories of purchase
// orders and the purchase requests they are consolidated from.
package order_repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"procurement/internal/core/apperror"
	"procurement/internal/core/id"
	po "procurement/internal/domain/purchase_order"
	"procurement/internal/infrastructure/storage/postgres"
)

const (
	ordersTable  = "purchase_orders"
	detailsTable = "purchase_order_details"
	linksTable   = "purchase_order_pr_details"

	detailEntity = "purchase_order_detail"
)

var (
	orderColumns  = postgres.ExtractDBColumns[po.PurchaseOrder]()
	detailColumns = postgres.ExtractDBColumns[po.Detail]()
	linkColumns   = postgres.ExtractDBColumns[po.PrDetailLink]()

	// Columns a header update never touches.
	orderUpdateColumns = postgres.Without(orderColumns,
		"id", "po_no", "workflow_history", "doc_version",
		"created_at", "created_by", "deleted_at", "deleted_by")

	detailUpdateColumns = postgres.Without(detailColumns,
		"id", "purchase_order_id", "sequence_no", "doc_version",
		"created_at", "created_by", "deleted_at", "deleted_by")
)

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// PurchaseOrderRepo implements purchase_order.Repository.
type PurchaseOrderRepo struct {
	txm *postgres.TxManager
}

var _ po.Repository = (*PurchaseOrderRepo)(nil)

// NewPurchaseOrderRepo creates the repository.
func NewPurchaseOrderRepo(txm *postgres.TxManager) *PurchaseOrderRepo {
	return &PurchaseOrderRepo{txm: txm}
}

// Create implements purchase_order.Repository.
func (r *PurchaseOrderRepo) Create(ctx context.Context, order *po.PurchaseOrder) error {
	q, err := insertOrder(order)
	if err != nil {
		return err
	}
	return r.exec(ctx, q, "insert purchase order")
}

// CreateDetail implements purchase_order.Repository.
func (r *PurchaseOrderRepo) CreateDetail(ctx context.Context, detail *po.Detail) error {
	q := builder().Insert(detailsTable).SetMap(postgres.ColumnMap(detail, detailColumns))
	return r.exec(ctx, q, "insert purchase order detail")
}

// CreateLink implements purchase_order.Repository.
func (r *PurchaseOrderRepo) CreateLink(ctx context.Context, link *po.PrDetailLink) error {
	q := builder().Insert(linksTable).SetMap(postgres.ColumnMap(link, linkColumns))
	return r.exec(ctx, q, "insert request link")
}

// Get implements purchase_order.Repository.
func (r *PurchaseOrderRepo) Get(ctx context.Context, orderID id.ID) (*po.PurchaseOrder, error) {
	sql, args, err := selectOrder(orderID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var order po.PurchaseOrder
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &order, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(po.EntityName, orderID)
		}
		return nil, fmt.Errorf("get purchase order: %w", err)
	}
	return &order, nil
}

// ListDetails implements purchase_order.Repository.
func (r *PurchaseOrderRepo) ListDetails(ctx context.Context, orderID id.ID) ([]po.Detail, error) {
	sql, args, err := selectDetails(orderID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var details []po.Detail
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &details, sql, args...); err != nil {
		return nil, fmt.Errorf("list purchase order details: %w", err)
	}
	if len(details) == 0 {
		return details, nil
	}

	detailIDs := make([]id.ID, len(details))
	for i := range details {
		detailIDs[i] = details[i].ID
	}
	links, err := r.links(ctx, detailIDs)
	if err != nil {
		return nil, err
	}
	for i := range details {
		details[i].Links = links[details[i].ID]
	}
	return details, nil
}

// GetDetail implements purchase_order.Repository.
func (r *PurchaseOrderRepo) GetDetail(ctx context.Context, orderID, detailID id.ID) (*po.Detail, error) {
	sql, args, err := selectDetails(orderID).Where(squirrel.Eq{"id": detailID}).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var detail po.Detail
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &detail, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(detailEntity, detailID)
		}
		return nil, fmt.Errorf("get purchase order detail: %w", err)
	}

	links, err := r.links(ctx, []id.ID{detailID})
	if err != nil {
		return nil, err
	}
	detail.Links = links[detailID]
	return &detail, nil
}

// UpdateHeader implements purchase_order.Repository.
func (r *PurchaseOrderRepo) UpdateHeader(ctx context.Context, order *po.PurchaseOrder, expectedVersion int) error {
	q := updateOrder(order, expectedVersion)
	version, err := r.versioned(ctx, q, ordersTable, po.EntityName, order.ID, expectedVersion)
	if err != nil {
		return err
	}
	order.DocVersion = version
	return nil
}

// AppendHistory implements purchase_order.Repository.
func (r *PurchaseOrderRepo) AppendHistory(ctx context.Context, orderID id.ID, entries ...po.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	q, err := appendHistory(orderID, entries)
	if err != nil {
		return err
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("append workflow history: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(po.EntityName, orderID)
	}
	return nil
}

// UpdateDetail implements purchase_order.Repository.
func (r *PurchaseOrderRepo) UpdateDetail(ctx context.Context, detail *po.Detail, expectedVersion int) error {
	q := builder().Update(detailsTable).
		SetMap(postgres.ColumnMap(detail, detailUpdateColumns)).
		Set("doc_version", squirrel.Expr("doc_version + 1")).
		Where(squirrel.Eq{"id": detail.ID, "purchase_order_id": detail.PurchaseOrderID, "doc_version": expectedVersion}).
		Where("deleted_at IS NULL").
		Suffix("RETURNING doc_version")

	version, err := r.versioned(ctx, q, detailsTable, detailEntity, detail.ID, expectedVersion)
	if err != nil {
		return err
	}
	detail.DocVersion = version
	return nil
}

// SoftDeleteDetail implements purchase_order.Repository.
func (r *PurchaseOrderRepo) SoftDeleteDetail(ctx context.Context, detail *po.Detail, expectedVersion int) error {
	q := softDelete(detailsTable, detail.ID, expectedVersion, detail.DeletedAt, detail.DeletedBy).
		Where(squirrel.Eq{"purchase_order_id": detail.PurchaseOrderID})

	version, err := r.versioned(ctx, q, detailsTable, detailEntity, detail.ID, expectedVersion)
	if err != nil {
		return err
	}
	detail.DocVersion = version
	return nil
}

// SoftDelete implements purchase_order.Repository.
func (r *PurchaseOrderRepo) SoftDelete(ctx context.Context, order *po.PurchaseOrder, expectedVersion int) error {
	q := softDelete(ordersTable, order.ID, expectedVersion, order.DeletedAt, order.DeletedBy)

	version, err := r.versioned(ctx, q, ordersTable, po.EntityName, order.ID, expectedVersion)
	if err != nil {
		return err
	}
	order.DocVersion = version
	return nil
}

// SumActiveDetails implements purchase_order.Repository.
func (r *PurchaseOrderRepo) SumActiveDetails(ctx context.Context, orderID id.ID) (po.Totals, error) {
	var totals po.Totals
	sql, args, err := sumDetails(orderID).ToSql()
	if err != nil {
		return totals, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &totals, sql, args...); err != nil {
		return totals, fmt.Errorf("sum purchase order details: %w", err)
	}
	return totals, nil
}

// NextSequenceNo implements purchase_order.Repository.
func (r *PurchaseOrderRepo) NextSequenceNo(ctx context.Context, orderID id.ID) (int, error) {
	sql, args, err := builder().
		Select("COALESCE(MAX(sequence_no), 0) + 1").
		From(detailsTable).
		Where(squirrel.Eq{"purchase_order_id": orderID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var next int
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&next); err != nil {
		return 0, fmt.Errorf("next sequence number: %w", err)
	}
	return next, nil
}

func (r *PurchaseOrderRepo) links(ctx context.Context, detailIDs []id.ID) (map[id.ID][]po.PrDetailLink, error) {
	sql, args, err := builder().
		Select(linkColumns...).
		From(linksTable).
		Where(squirrel.Eq{"po_detail_id": detailIDs}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var links []po.PrDetailLink
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &links, sql, args...); err != nil {
		return nil, fmt.Errorf("list request links: %w", err)
	}

	out := make(map[id.ID][]po.PrDetailLink, len(detailIDs))
	for _, l := range links {
		out[l.PoDetailID] = append(out[l.PoDetailID], l)
	}
	return out, nil
}

func (r *PurchaseOrderRepo) exec(ctx context.Context, q squirrel.Sqlizer, op string) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build %s: %w", op, err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// versioned runs an optimistic UPDATE ... RETURNING doc_version. When no row
// matches it distinguishes a missing row from a version conflict.
func (r *PurchaseOrderRepo) versioned(ctx context.Context, q squirrel.UpdateBuilder, table, entity string, rowID id.ID, expected int) (int, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	var version int
	err = querier.QueryRow(ctx, sql, args...).Scan(&version)
	if err == nil {
		return version, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("update %s: %w", table, err)
	}

	sql, args, err = builder().
		Select("doc_version").
		From(table).
		Where(squirrel.Eq{"id": rowID}).
		Where("deleted_at IS NULL").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	var actual int
	if err := querier.QueryRow(ctx, sql, args...).Scan(&actual); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperror.NewNotFound(entity, rowID)
		}
		return 0, fmt.Errorf("read %s version: %w", table, err)
	}
	return 0, apperror.NewConflict(entity, rowID, expected, actual)
}

// --- statement builders ---

func insertOrder(order *po.PurchaseOrder) (squirrel.InsertBuilder, error) {
	history, err := json.Marshal(order.History)
	if err != nil {
		return squirrel.InsertBuilder{}, fmt.Errorf("marshal workflow history: %w", err)
	}

	data := postgres.ColumnMap(order, orderColumns)
	data["workflow_history"] = history
	data["user_action"] = assignees(order.Assignees)
	return builder().Insert(ordersTable).SetMap(data), nil
}

func selectOrder(orderID id.ID) squirrel.SelectBuilder {
	return builder().
		Select(orderColumns...).
		From(ordersTable).
		Where(squirrel.Eq{"id": orderID}).
		Where("deleted_at IS NULL").
		Limit(1)
}

func selectDetails(orderID id.ID) squirrel.SelectBuilder {
	return builder().
		Select(detailColumns...).
		From(detailsTable).
		Where(squirrel.Eq{"purchase_order_id": orderID}).
		Where("deleted_at IS NULL").
		OrderBy("sequence_no")
}

func updateOrder(order *po.PurchaseOrder, expectedVersion int) squirrel.UpdateBuilder {
	data := postgres.ColumnMap(order, orderUpdateColumns)
	data["user_action"] = assignees(order.Assignees)

	return builder().Update(ordersTable).
		SetMap(data).
		Set("doc_version", squirrel.Expr("doc_version + 1")).
		Where(squirrel.Eq{"id": order.ID, "doc_version": expectedVersion}).
		Where("deleted_at IS NULL").
		Suffix("RETURNING doc_version")
}

func appendHistory(orderID id.ID, entries []po.HistoryEntry) (squirrel.UpdateBuilder, error) {
	raw, err := json.Marshal(entries)
	if err != nil {
		return squirrel.UpdateBuilder{}, fmt.Errorf("marshal workflow history: %w", err)
	}
	return builder().Update(ordersTable).
		Set("workflow_history", squirrel.Expr("COALESCE(workflow_history, '[]'::jsonb) || ?::jsonb", raw)).
		Where(squirrel.Eq{"id": orderID}), nil
}

func softDelete(table string, rowID id.ID, expectedVersion int, deletedAt any, deletedBy any) squirrel.UpdateBuilder {
	return builder().Update(table).
		Set("deleted_at", deletedAt).
		Set("deleted_by", deletedBy).
		Set("doc_version", squirrel.Expr("doc_version + 1")).
		Where(squirrel.Eq{"id": rowID, "doc_version": expectedVersion}).
		Where("deleted_at IS NULL").
		Suffix("RETURNING doc_version")
}

func sumDetails(orderID id.ID) squirrel.SelectBuilder {
	return builder().
		Select(
			"COALESCE(SUM(order_qty), 0) AS total_qty",
			"COALESCE(SUM(net_amount), 0) AS total_price",
			"COALESCE(SUM(tax_amount), 0) AS total_tax",
			"COALESCE(SUM(total_amount), 0) AS total_amount",
		).
		From(detailsTable).
		Where(squirrel.Eq{"purchase_order_id": orderID}).
		Where("deleted_at IS NULL")
}

// assignees is stored as text[]; an empty set is an empty array, never NULL.
func assignees(a po.Assignees) []string {
	if a == nil {
		return []string{}
	}
	return []string(a)
}

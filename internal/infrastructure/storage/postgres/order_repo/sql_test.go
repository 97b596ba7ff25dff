package order_repo

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement/internal/core/id"
	po "procurement/internal/domain/purchase_order"
)

func placeholders(from, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(parts, ",")
}

func TestSelectOrder(t *testing.T) {
	orderID := id.New()

	sql, args, err := selectOrder(orderID).ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql, "SELECT id, po_no, status, "), sql)
	assert.True(t, strings.HasSuffix(sql, " FROM purchase_orders WHERE id = $1 AND deleted_at IS NULL LIMIT 1"), sql)
	require.Len(t, args, 1)
	assert.Equal(t, orderID.String(), fmt.Sprint(args[0]))
}

func TestSelectDetails(t *testing.T) {
	orderID := id.New()

	sql, _, err := selectDetails(orderID).ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(sql, " FROM purchase_order_details WHERE purchase_order_id = $1 AND deleted_at IS NULL ORDER BY sequence_no"), sql)
	assert.NotContains(t, sql, "links")
}

func TestUpdateOrder_ExcludesImmutableColumns(t *testing.T) {
	order := &po.PurchaseOrder{ID: id.New(), PoNo: "PO24010001", Assignees: po.Assignees{"hod-1"}, DocVersion: 3}

	sql, args, err := updateOrder(order, 3).ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql, "UPDATE purchase_orders SET "), sql)
	for _, col := range []string{"po_no = ", "workflow_history = ", "created_at = ", "created_by = ", "deleted_at = "} {
		assert.NotContains(t, sql, col)
	}
	assert.Contains(t, sql, "user_action = ")
	assert.Contains(t, sql, "doc_version = doc_version + 1")
	assert.True(t, strings.HasSuffix(sql, "AND deleted_at IS NULL RETURNING doc_version"), sql)

	n := len(orderUpdateColumns)
	require.Len(t, args, n+2)
	assert.Contains(t, sql, fmt.Sprintf("doc_version = $%d", n+1))
	assert.Contains(t, sql, fmt.Sprintf("id = $%d", n+2))
	assert.Equal(t, 3, args[n])
	assert.Equal(t, order.ID.String(), fmt.Sprint(args[n+1]))
}

func TestUpdateOrder_EmptyAssigneesIsArray(t *testing.T) {
	order := &po.PurchaseOrder{ID: id.New()}

	_, args, err := updateOrder(order, 1).ToSql()
	require.NoError(t, err)

	assert.Contains(t, args, []string{})
}

func TestAppendHistory(t *testing.T) {
	orderID := id.New()
	entry := po.HistoryEntry{Action: po.ActionApproved, At: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), FromStage: "HOD", ToStage: "-"}

	q, err := appendHistory(orderID, []po.HistoryEntry{entry})
	require.NoError(t, err)
	sql, args, err := q.ToSql()
	require.NoError(t, err)

	assert.Equal(t, "UPDATE purchase_orders SET workflow_history = COALESCE(workflow_history, '[]'::jsonb) || $1::jsonb WHERE id = $2", sql)
	require.Len(t, args, 2)
	raw, ok := args[0].([]byte)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(string(raw), "["), "entries are appended as an array")
	assert.Contains(t, string(raw), `"HOD"`)
	assert.Equal(t, orderID.String(), fmt.Sprint(args[1]))
}

func TestInsertOrder_HistoryAsJSON(t *testing.T) {
	order := &po.PurchaseOrder{
		ID:      id.New(),
		PoNo:    "PO24010001",
		History: po.History{{Action: po.ActionCreated, FromStage: "-", ToStage: "Create"}},
		Totals:  po.Totals{TotalAmount: decimal.NewFromInt(10)},
	}

	q, err := insertOrder(order)
	require.NoError(t, err)
	sql, args, err := q.ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql, "INSERT INTO purchase_orders ("), sql)
	assert.Contains(t, sql, "workflow_history")
	assert.Len(t, args, len(orderColumns))

	var history []byte
	for _, a := range args {
		if b, ok := a.([]byte); ok {
			history = b
		}
	}
	assert.Contains(t, string(history), `"Create"`)
}

func TestSoftDelete(t *testing.T) {
	rowID := id.New()
	at := time.Now().UTC()
	by := "buyer-1"

	sql, args, err := softDelete(detailsTable, rowID, 2, &at, &by).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "UPDATE purchase_order_details SET deleted_at = $1, deleted_by = $2, doc_version = doc_version + 1 "+
		"WHERE doc_version = $3 AND id = $4 AND deleted_at IS NULL RETURNING doc_version", sql)
	assert.Equal(t, 2, args[2])
	assert.Equal(t, rowID.String(), fmt.Sprint(args[3]))
}

func TestSumDetails(t *testing.T) {
	orderID := id.New()

	sql, args, err := sumDetails(orderID).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "SELECT COALESCE(SUM(order_qty), 0) AS total_qty, COALESCE(SUM(net_amount), 0) AS total_price, "+
		"COALESCE(SUM(tax_amount), 0) AS total_tax, COALESCE(SUM(total_amount), 0) AS total_amount "+
		"FROM purchase_order_details WHERE purchase_order_id = $1 AND deleted_at IS NULL", sql)
	require.Len(t, args, 1)
	assert.Equal(t, orderID.String(), fmt.Sprint(args[0]))
}

func TestSelectApproved(t *testing.T) {
	ids := []id.ID{id.New(), id.New()}

	sql, args, err := selectApproved(ids, false).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "d.id, d.purchase_request_id, r.pr_no, r.requestor_id, d.product_id")
	assert.Contains(t, sql, "FROM purchase_request_details d JOIN purchase_requests r ON r.id = d.purchase_request_id")
	assert.Contains(t, sql, "WHERE d.id = ANY($1) AND r.status = $2 AND r.deleted_at IS NULL AND d.deleted_at IS NULL")
	assert.True(t, strings.HasSuffix(sql, "ORDER BY array_position($3::uuid[], d.id)"), sql)
	assert.Equal(t, []any{ids, "approved", ids}, args)

	locked, _, err := selectApproved(ids, true).ToSql()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(locked, "FOR UPDATE OF r"), locked)
}

func TestMarkCompleted(t *testing.T) {
	ids := []id.ID{id.New(), id.New(), id.New()}
	at := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	sql, args, err := markCompleted(ids, "buyer-1", at).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "UPDATE purchase_requests SET status = $1, updated_at = $2, updated_by = $3 "+
		"WHERE id IN ("+placeholders(4, 3)+") AND status = $7 AND deleted_at IS NULL", sql)
	assert.Equal(t, "completed", args[0])
	assert.Equal(t, "approved", args[6])
}

package demo

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement/internal/domain/consolidation"
	po "procurement/internal/domain/purchase_order"
	"procurement/internal/infrastructure/storage/memory"
)

var seededAt = time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)

func TestNew_StableIDs(t *testing.T) {
	a := New("po-default", seededAt)
	b := New("po-default", seededAt.Add(time.Hour))

	assert.Equal(t, a.DetailIDs(), b.DetailIDs())
	assert.Equal(t, a.Vendors[0].ID, b.Vendors[0].ID)
	assert.Len(t, a.DetailIDs(), 3)
}

func TestNew_LineAmounts(t *testing.T) {
	lines := New("po-default", seededAt).Requests[0].Details

	// 10 x 5 at 7%
	assert.True(t, decimal.NewFromInt(50).Equal(lines[0].NetAmount))
	assert.True(t, decimal.RequireFromString("3.5").Equal(lines[0].TaxAmount))
	assert.True(t, decimal.RequireFromString("53.5").Equal(lines[0].TotalAmount))
	for _, l := range lines {
		assert.True(t, l.Orderable())
	}
}

func TestLoadMemory(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	ds := New("po-default", seededAt)

	require.NoError(t, ds.LoadMemory(ctx, store))
	require.NoError(t, ds.LoadMemory(ctx, store), "loading twice keeps the same records")

	lines, err := store.Requests().FindApprovedDetails(ctx, ds.DetailIDs())
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Len(t, consolidation.GroupLines(lines), 2, "one order per vendor and currency")

	vendor, err := store.Catalogs().Vendor(ctx, ds.Vendors[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Alpha Supplies", vendor.Name)

	def, err := store.Workflows().Definition(ctx, "po-default")
	require.NoError(t, err)
	assert.Len(t, def.Stages, 4)

	p, found, err := store.Numbering().Pattern(ctx, po.DocType)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, ds.Pattern, p)
}

func TestInserts(t *testing.T) {
	stmts, err := New("po-default", seededAt).inserts()
	require.NoError(t, err)

	var tables []string
	for _, stmt := range stmts {
		sql, _, err := stmt.ToSql()
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(sql, " ON CONFLICT DO NOTHING"), sql)
		tables = append(tables, strings.Fields(sql)[2])
	}

	// Referenced rows come before the rows that reference them.
	assert.Less(t, indexOf(tables, "credit_terms"), indexOf(tables, "vendors"))
	assert.Less(t, indexOf(tables, "purchase_requests"), indexOf(tables, "purchase_request_details"))
	assert.Contains(t, tables, "sys_workflows")
	assert.Contains(t, tables, "sys_running_patterns")
}

func TestInserts_DetailColumns(t *testing.T) {
	assert.NotContains(t, detailColumns, "pr_no")
	assert.NotContains(t, detailColumns, "requestor_id")
	assert.Contains(t, detailColumns, "purchase_request_id")
	assert.NotContains(t, requestColumns, "deleted_at")
}

func indexOf(values []string, v string) int {
	for i, s := range values {
		if s == v {
			return i
		}
	}
	return -1
}

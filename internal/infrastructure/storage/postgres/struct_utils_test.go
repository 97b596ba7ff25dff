package postgres

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"procurement/internal/core/entity"
	"procurement/internal/core/id"
	po "procurement/internal/domain/purchase_order"
)

func TestExtractDBColumns_Detail(t *testing.T) {
	cols := ExtractDBColumns[po.Detail]()

	for _, want := range []string{"id", "purchase_order_id", "sequence_no", "total_amount", "doc_version", "created_at", "updated_by", "deleted_at"} {
		assert.Contains(t, cols, want)
	}
	assert.NotContains(t, cols, "-")
	assert.Equal(t, "id", cols[0])
}

func TestExtractDBColumns_OrderTotalsAreFlattened(t *testing.T) {
	cols := ExtractDBColumns[po.PurchaseOrder]()

	assert.Contains(t, cols, "total_qty")
	assert.Contains(t, cols, "workflow_history")
	assert.Contains(t, cols, "user_action")
}

func TestStructToMap(t *testing.T) {
	now := time.Now().UTC()
	d := po.Detail{
		ID:          id.New(),
		SequenceNo:  3,
		OrderQty:    decimal.NewFromInt(4),
		DocVersion:  2,
		AuditFields: entity.AuditFields{CreatedAt: now, CreatedBy: "buyer-1"},
		SoftDelete:  entity.SoftDelete{DeletedAt: &now},
	}

	m := StructToMap(&d)

	assert.Equal(t, d.ID, m["id"])
	assert.Equal(t, 3, m["sequence_no"])
	assert.Equal(t, 2, m["doc_version"])
	assert.Equal(t, "buyer-1", m["created_by"])
	assert.Equal(t, &now, m["deleted_at"])
	_, hasLinks := m["links"]
	assert.False(t, hasLinks)
}

func TestColumnMapAndWithout(t *testing.T) {
	d := po.Detail{ID: id.New(), SequenceNo: 1}
	cols := Without([]string{"id", "sequence_no", "doc_version"}, "doc_version")

	m := ColumnMap(d, cols)

	assert.Len(t, m, 2)
	assert.Equal(t, 1, m["sequence_no"])
}

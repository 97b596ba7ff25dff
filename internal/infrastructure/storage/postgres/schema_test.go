package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"procurement/internal/domain/catalogs"
	"procurement/internal/domain/directory"
	po "procurement/internal/domain/purchase_order"
	pr "procurement/internal/domain/purchase_request"
)

// tableDDL returns the CREATE TABLE body of name.
func tableDDL(t *testing.T, name string) string {
	t.Helper()
	start := strings.Index(Schema(), "CREATE TABLE IF NOT EXISTS "+name+" (")
	if start < 0 {
		t.Fatalf("table %s missing from schema", name)
	}
	body := Schema()[start:]
	return body[:strings.Index(body, ");")]
}

func TestSchemaCoversMappedColumns(t *testing.T) {
	tests := []struct {
		table string
		cols  []string
	}{
		{"purchase_orders", ExtractDBColumns[po.PurchaseOrder]()},
		{"purchase_order_details", ExtractDBColumns[po.Detail]()},
		{"purchase_order_pr_details", ExtractDBColumns[po.PrDetailLink]()},
		{"vendors", ExtractDBColumns[catalogs.Vendor]()},
		{"currencies", ExtractDBColumns[catalogs.Currency]()},
		{"tax_profiles", ExtractDBColumns[catalogs.TaxProfile]()},
		{"users", ExtractDBColumns[directory.UserProfile]()},
		{"sys_audit", ExtractDBColumns[AuditRecord]()},
	}
	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			ddl := tableDDL(t, tt.table)
			for _, col := range tt.cols {
				assert.Contains(t, ddl, "\n    "+col+" ", "column %s", col)
			}
		})
	}
}

func TestSchemaRequestDetailColumns(t *testing.T) {
	ddl := tableDDL(t, "purchase_request_details")
	for _, col := range ExtractDBColumns[pr.Detail]() {
		if col == "pr_no" || col == "requestor_id" {
			// read from the request header
			continue
		}
		assert.Contains(t, ddl, "\n    "+col+" ", "column %s", col)
	}
}

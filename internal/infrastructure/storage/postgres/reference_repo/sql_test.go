package reference_repo

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement/internal/core/apperror"
	"procurement/internal/core/id"
)

func TestCatalogSelect(t *testing.T) {
	key := id.New()

	sql, args, err := currencies.selectByID(key).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "SELECT id, code, name, exchange_rate FROM currencies WHERE id = $1 AND deleted_at IS NULL LIMIT 1", sql)
	require.Len(t, args, 1)
	assert.Equal(t, key.String(), fmt.Sprint(args[0]))
}

func TestCatalogTables(t *testing.T) {
	assert.Equal(t, []string{"id", "code", "name", "credit_term_id"}, vendors.cols)
	assert.Equal(t, []string{"id", "name", "days"}, creditTerms.cols)
	assert.Equal(t, []string{"id", "name"}, units.cols)
	assert.Equal(t, []string{"id", "name", "rate"}, taxProfiles.cols)
	assert.Equal(t, "tax_profile", taxProfiles.entity)
}

func TestSelectUsers(t *testing.T) {
	sql, args, err := selectUsers([]string{"buyer-1", "hod-1"}).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "SELECT id, name, department FROM users WHERE id IN ($1,$2) AND deleted_at IS NULL", sql)
	assert.Equal(t, []any{"buyer-1", "hod-1"}, args)
}

func TestLatestNumber(t *testing.T) {
	q, err := latestNumber("PO", "PO2401", "")
	require.NoError(t, err)
	sql, args, err := q.ToSql()
	require.NoError(t, err)

	assert.Equal(t, "SELECT po_no FROM purchase_orders WHERE po_no LIKE $1 AND char_length(po_no) >= $2 "+
		"ORDER BY char_length(po_no) DESC, po_no DESC LIMIT 1", sql)
	assert.Equal(t, []any{"PO2401%", 6}, args)
	assert.NotContains(t, sql, "deleted_at", "soft-deleted numbers stay reserved")
}

func TestLatestNumber_EscapesWildcards(t *testing.T) {
	q, err := latestNumber("PO", "PO_24%", `-X\`)
	require.NoError(t, err)
	_, args, err := q.ToSql()
	require.NoError(t, err)

	assert.Equal(t, `PO\_24\%%-X\\`, args[0])
	assert.Equal(t, 9, args[1])
}

func TestLatestNumber_UnknownDocType(t *testing.T) {
	_, err := latestNumber("GRN", "GRN", "")
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidArgument))
}

func TestSelectWorkflow(t *testing.T) {
	sql, args, err := selectWorkflow("po-default").ToSql()
	require.NoError(t, err)

	assert.Equal(t, "SELECT id, name, stages FROM sys_workflows WHERE id = $1 AND is_active", sql)
	assert.Equal(t, []any{"po-default"}, args)
}

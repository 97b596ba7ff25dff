package reference_repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"procurement/internal/core/apperror"
	"procurement/internal/core/numerator"
	po "procurement/internal/domain/purchase_order"
	"procurement/internal/infrastructure/storage/postgres"
)

const patternsTable = "sys_running_patterns"

// ErrNoTransaction is returned when a numbering lock is requested outside a transaction.
var ErrNoTransaction = errors.New("reference_repo: numbering lock requires a transaction")

// numberedTables maps document types to the table and column holding their numbers.
var numberedTables = map[string]struct{ table, column string }{
	po.DocType: {"purchase_orders", "po_no"},
}

// NumberingRepo implements numerator.Store and numerator.PatternSource.
type NumberingRepo struct {
	txm *postgres.TxManager
}

var (
	_ numerator.Store         = (*NumberingRepo)(nil)
	_ numerator.PatternSource = (*NumberingRepo)(nil)
)

// NewNumberingRepo creates the repository.
func NewNumberingRepo(txm *postgres.TxManager) *NumberingRepo {
	return &NumberingRepo{txm: txm}
}

// Lock implements numerator.Store with a transaction-scoped advisory lock,
// released on commit or rollback.
func (r *NumberingRepo) Lock(ctx context.Context, key string) error {
	tx := r.txm.GetTx(ctx)
	if tx == nil {
		return ErrNoTransaction
	}
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key); err != nil {
		return fmt.Errorf("acquire numbering lock: %w", err)
	}
	return nil
}

// LatestNumber implements numerator.Store. Longer numbers win, then the
// lexicographically greatest, so a counter that outgrew its width still
// sorts last. Soft-deleted documents are included.
func (r *NumberingRepo) LatestNumber(ctx context.Context, docType, prefix, suffix string) (string, error) {
	q, err := latestNumber(docType, prefix, suffix)
	if err != nil {
		return "", err
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return "", fmt.Errorf("build query: %w", err)
	}

	var latest string
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&latest); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("latest %s number: %w", docType, err)
	}
	return latest, nil
}

// Pattern implements numerator.PatternSource.
func (r *NumberingRepo) Pattern(ctx context.Context, docType string) (numerator.Pattern, bool, error) {
	var p numerator.Pattern
	sql, args, err := builder().
		Select("pattern").
		From(patternsTable).
		Where(squirrel.Eq{"doc_type": docType}).
		ToSql()
	if err != nil {
		return p, false, fmt.Errorf("build query: %w", err)
	}

	var raw []byte
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return p, false, nil
		}
		return p, false, fmt.Errorf("load %s pattern: %w", docType, err)
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, false, fmt.Errorf("decode %s pattern: %w", docType, err)
	}
	return p, true, nil
}

func latestNumber(docType, prefix, suffix string) (squirrel.SelectBuilder, error) {
	target, ok := numberedTables[docType]
	if !ok {
		return squirrel.SelectBuilder{}, apperror.NewInvalidArgument("document type is not numbered").
			WithDetail("doc_type", docType)
	}
	length := fmt.Sprintf("char_length(%s)", target.column)

	return builder().
		Select(target.column).
		From(target.table).
		Where(squirrel.Like{target.column: escapeLike(prefix) + "%" + escapeLike(suffix)}).
		Where(squirrel.GtOrEq{length: len([]rune(prefix)) + len([]rune(suffix))}).
		OrderBy(length+" DESC", target.column+" DESC").
		Limit(1), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

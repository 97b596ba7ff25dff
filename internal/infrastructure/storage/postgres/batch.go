package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

// ErrBatchNoTransaction is returned when a batch runs outside a transaction.
var ErrBatchNoTransaction = errors.New("batch requires transaction context")

// BatchExecutor sends many statements in a single round-trip.
type BatchExecutor struct {
	txManager *TxManager
}

// NewBatchExecutor creates a new batch executor.
func NewBatchExecutor(txManager *TxManager) *BatchExecutor {
	return &BatchExecutor{txManager: txManager}
}

// Exec builds stmts and executes them in order inside the transaction in ctx.
// The first failing statement aborts the batch.
func (e *BatchExecutor) Exec(ctx context.Context, stmts ...squirrel.Sqlizer) error {
	tx := e.txManager.GetTx(ctx)
	if tx == nil {
		return ErrBatchNoTransaction
	}

	batch, err := buildBatch(stmts)
	if err != nil {
		return err
	}
	if batch.Len() == 0 {
		return nil
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch statement %d: %w", i, err)
		}
	}
	return results.Close()
}

func buildBatch(stmts []squirrel.Sqlizer) (*pgx.Batch, error) {
	batch := &pgx.Batch{}
	for i, stmt := range stmts {
		sql, args, err := stmt.ToSql()
		if err != nil {
			return nil, fmt.Errorf("build batch statement %d: %w", i, err)
		}
		batch.Queue(sql, args...)
	}
	return batch, nil
}

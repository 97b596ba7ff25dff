package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"procurement/pkg/logger"
)

//go:embed schema.sql
var schemaSQL string

// Schema returns the DDL of every table the engine uses.
func Schema() string {
	return schemaSQL
}

// ApplySchema creates missing tables and indexes. Existing objects are left untouched.
func ApplySchema(ctx context.Context, pool *Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	logger.Info(ctx, "database schema applied")
	return nil
}

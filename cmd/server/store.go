package main

import (
	"context"
	"fmt"
	"time"

	"procurement/internal/config"
	corenumerator "procurement/internal/core/numerator"
	"procurement/internal/core/tx"
	"procurement/internal/domain/audit"
	"procurement/internal/domain/catalogs"
	"procurement/internal/domain/directory"
	po "procurement/internal/domain/purchase_order"
	pr "procurement/internal/domain/purchase_request"
	"procurement/internal/domain/workflow"
	"procurement/internal/infrastructure/http/v1/handlers"
	"procurement/internal/infrastructure/storage/demo"
	"procurement/internal/infrastructure/storage/memory"
	"procurement/internal/infrastructure/storage/postgres"
	"procurement/internal/infrastructure/storage/postgres/order_repo"
	"procurement/internal/infrastructure/storage/postgres/reference_repo"
	"procurement/pkg/logger"
)

// store bundles the repositories of one backing store.
type store struct {
	name string

	requests  pr.Repository
	orders    po.Repository
	catalogs  catalogs.Lookup
	directory directory.Directory
	numbering corenumerator.Store
	patterns  corenumerator.PatternSource
	workflows workflow.DefinitionSource
	audit     audit.Recorder
	txManager tx.Manager

	pinger handlers.Pinger
	pool   *postgres.Pool
}

// openStore connects to Postgres when DATABASE_URL is set and falls back
// to a seeded in-memory store otherwise.
func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	if cfg.Database.InMemory() {
		return openMemory(ctx, cfg)
	}
	return openPostgres(ctx, cfg)
}

func openMemory(ctx context.Context, cfg *config.Config) (*store, error) {
	mem := memory.New()

	ds := demo.New(cfg.Workflow.DefinitionID, time.Now())
	if err := ds.LoadMemory(ctx, mem); err != nil {
		return nil, fmt.Errorf("load demo data: %w", err)
	}
	logger.Info(ctx, "in-memory store seeded with demo data", "pr_detail_ids", ds.DetailIDs())

	return &store{
		name:      "memory",
		requests:  mem.Requests(),
		orders:    mem.Orders(),
		catalogs:  mem.Catalogs(),
		directory: mem.Directory(),
		numbering: mem.Numbering(),
		patterns:  mem.Numbering(),
		workflows: mem.Workflows(),
		audit:     mem.Audit(),
		txManager: mem,
	}, nil
}

func openPostgres(ctx context.Context, cfg *config.Config) (*store, error) {
	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	if cfg.Database.MaxConns > 0 {
		poolCfg.MaxConns = cfg.Database.MaxConns
	}
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	if cfg.Database.ApplySchema {
		if err := postgres.ApplySchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}

	txm := postgres.NewTxManager(pool)
	auditLog, err := postgres.NewAuditLog(txm, 0)
	if err != nil {
		pool.Close()
		return nil, err
	}
	numbering := reference_repo.NewNumberingRepo(txm)

	return &store{
		name:      "postgres",
		requests:  order_repo.NewPurchaseRequestRepo(txm),
		orders:    order_repo.NewPurchaseOrderRepo(txm),
		catalogs:  reference_repo.NewCatalogRepo(txm),
		directory: reference_repo.NewDirectoryRepo(txm),
		numbering: numbering,
		patterns:  numbering,
		workflows: reference_repo.NewWorkflowRepo(txm),
		audit:     auditLog,
		txManager: txm,
		pinger:    pool,
		pool:      pool,
	}, nil
}

func (s *store) logStats(ctx context.Context) {
	if s.pool != nil {
		s.pool.LogStats(ctx)
	}
}

func (s *store) close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Package main provides the procurement maintenance CLI.
//
//	procctl schema
//	procctl seed
//	procctl token --user buyer-1 [--name "Bea Buyer"] [--dept Purchasing]
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"procurement/internal/config"
	appctx "procurement/internal/core/context"
	"procurement/internal/domain/auth"
	"procurement/internal/infrastructure/storage/demo"
	"procurement/internal/infrastructure/storage/postgres"
	"procurement/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.App.LogLevel, Development: true})
	if err != nil {
		fmt.Printf("Error: failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx := context.Background()

	switch os.Args[1] {
	case "schema":
		applySchema(ctx, cfg)
	case "seed":
		seed(ctx, cfg)
	case "token":
		issueToken(cfg)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Procurement maintenance CLI

Usage:
  procctl <command> [options]

Commands:
  schema    Create missing tables and indexes
  seed      Apply the schema and load the demo dataset
  token     Print a bearer token for a user
  help      Show this help

Environment Variables:
  DATABASE_URL     Connection string (required by schema and seed)
  JWT_SECRET       Signing secret (token)
  PO_WORKFLOW_ID   Id of the seeded approval workflow

Examples:
  procctl seed
  procctl token --user buyer-1 --name "Bea Buyer" --dept Purchasing`)
}

func getPool(ctx context.Context, cfg *config.Config) *postgres.Pool {
	if cfg.Database.InMemory() {
		fmt.Println("Error: DATABASE_URL environment variable is required")
		os.Exit(1)
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.Database.URL))
	if err != nil {
		fmt.Printf("Error connecting to database: %v\n", err)
		os.Exit(1)
	}
	return pool
}

func applySchema(ctx context.Context, cfg *config.Config) {
	pool := getPool(ctx, cfg)
	defer pool.Close()

	if err := postgres.ApplySchema(ctx, pool); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Schema applied")
}

func seed(ctx context.Context, cfg *config.Config) {
	pool := getPool(ctx, cfg)
	defer pool.Close()

	if err := postgres.ApplySchema(ctx, pool); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	ds := demo.New(cfg.Workflow.DefinitionID, time.Now())
	if err := ds.LoadPostgres(ctx, postgres.NewTxManager(pool)); err != nil {
		fmt.Printf("Error seeding demo data: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✓ Demo data loaded")
	fmt.Println("Approved purchase request lines:")
	for _, detailID := range ds.DetailIDs() {
		fmt.Printf("  %s\n", detailID)
	}
}

func issueToken(cfg *config.Config) {
	var user appctx.UserContext

	for i := 2; i < len(os.Args); i++ {
		switch os.Args[i] {
		case "--user":
			if i+1 < len(os.Args) {
				user.UserID = os.Args[i+1]
				i++
			}
		case "--name":
			if i+1 < len(os.Args) {
				user.Name = os.Args[i+1]
				i++
			}
		case "--dept":
			if i+1 < len(os.Args) {
				user.Department = os.Args[i+1]
				i++
			}
		}
	}

	if user.UserID == "" {
		fmt.Println("Error: --user is required")
		fmt.Println("Usage: procctl token --user <id> [--name <name>] [--dept <department>]")
		os.Exit(1)
	}

	jwtConfig := auth.DefaultJWTConfig(cfg.Auth.JWTSecret)
	jwtConfig.AccessTokenTTL = cfg.Auth.TokenTTL

	token, expiresAt, err := auth.NewJWTService(jwtConfig).GenerateAccessToken(user)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Println(token)
}

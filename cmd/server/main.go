// Package main is the entry point for the procurement API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"procurement/internal/config"
	"procurement/internal/domain/auth"
	"procurement/internal/domain/consolidation"
	"procurement/internal/domain/notification"
	po "procurement/internal/domain/purchase_order"
	"procurement/internal/domain/workflow"
	v1 "procurement/internal/infrastructure/http/v1"
	"procurement/internal/infrastructure/http/v1/handlers"
	"procurement/internal/infrastructure/notify"
	"procurement/internal/infrastructure/numerator"
	navigators "procurement/internal/infrastructure/workflow"
	"procurement/pkg/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.Development(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	log.Infow("starting procurement server", "env", cfg.App.Env, "version", version)

	// --- Store ---
	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to open store", "error", err)
	}
	defer st.close()
	log.Infow("store ready", "store", st.name)

	// --- Workflow navigation ---
	nav, err := newNavigator(cfg.Workflow, st)
	if err != nil {
		log.Fatalw("failed to create workflow navigator", "error", err)
	}
	log.Infow("workflow navigator ready", "mode", cfg.Workflow.Mode, "workflow_id", cfg.Workflow.DefinitionID)

	// --- Notifications ---
	var dispatcher notification.Dispatcher = notify.Log{}
	if cfg.Notify.WebhookURL != "" {
		dispatcher = notify.NewWebhook(cfg.Notify.WebhookURL, cfg.Notify.Timeout)
	}
	sender := notification.NewSender(dispatcher, cfg.Notify.Timeout, cfg.Notify.Concurrency)

	// --- Services ---
	gen := numerator.New(st.numbering, st.patterns)

	consolidationService := consolidation.NewService(
		st.requests, st.orders, st.catalogs, gen, nav, st.audit, sender, st.txManager,
		consolidation.Config{
			WorkflowID:        cfg.Workflow.DefinitionID,
			NavigationTimeout: cfg.Workflow.Timeout,
			WriteTimeout:      cfg.WriteTimeout,
		},
	)
	approvalService := workflow.NewApprovalService(
		st.orders, st.catalogs, st.directory, nav, st.audit, sender, st.txManager,
		workflow.Config{
			NavigationTimeout: cfg.Workflow.Timeout,
			WriteTimeout:      cfg.WriteTimeout,
		},
	)
	orderService := po.NewService(st.orders, st.catalogs, st.audit, st.txManager, po.Config{
		WriteTimeout: cfg.WriteTimeout,
	})

	jwtConfig := auth.DefaultJWTConfig(cfg.Auth.JWTSecret)
	jwtConfig.AccessTokenTTL = cfg.Auth.TokenTTL

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Logger:        log,
		JWTValidator:  auth.NewJWTService(jwtConfig),
		Consolidation: consolidationService,
		Approval:      approvalService,
		Orders:        orderService,
		Health:        handlers.NewHealthHandler(st.name, st.pinger, version),
		Debug:         cfg.App.Development(),
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.WriteTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	// Notifications of already committed writes are still in flight.
	sender.Wait()
	st.logStats(shutdownCtx)

	log.Info("server stopped")
}

func newNavigator(cfg config.WorkflowConfig, st *store) (workflow.Navigator, error) {
	if cfg.Mode == config.WorkflowHTTP {
		return navigators.NewHTTPNavigator(cfg.URL, nil, cfg.Timeout), nil
	}
	nav, err := navigators.NewLocalNavigator(st.workflows)
	if err != nil {
		return nil, err
	}
	return nav, nil
}

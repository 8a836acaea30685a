package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/railqr/railqr-service/internal/handlers"
	"github.com/railqr/railqr-service/internal/prediction"
	"github.com/railqr/railqr-service/internal/repository"
	"github.com/railqr/railqr-service/internal/services"
	"github.com/railqr/railqr-service/internal/store"
	"github.com/railqr/railqr-service/pkg/server"
)

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(os.Stdout)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	_ = os.MkdirAll(filepath.Dir(cfg.Audit.Path), 0o755)
	db, err := store.Open(cfg.Audit.Path)
	if err != nil {
		return fmt.Errorf("open audit database: %w", err)
	}
	defer db.Close()

	db.Event("info", "startup", "Server starting", map[string]any{
		"version":   version,
		"http_addr": cfg.HTTP.Addr,
		"db_driver": cfg.Database.Driver,
		"audit_db":  cfg.Audit.Path,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Database.Driver == "sqlite3" {
		_ = os.MkdirAll(filepath.Dir(cfg.Database.DSN), 0o755)
	}
	inventory, err := repository.Open(ctx, repository.Options{
		Driver:         cfg.Database.Driver,
		DSN:            cfg.Database.DSN,
		Database:       cfg.Database.Name,
		ConnectTimeout: cfg.Database.ConnectTimeout,
	})
	if err != nil {
		db.Event("error", "store.failed", "Inventory store unavailable", map[string]any{
			"driver": cfg.Database.Driver,
			"error":  err.Error(),
		})
		return fmt.Errorf("open inventory store: %w", err)
	}
	defer inventory.Close()
	repo := repository.NewRepository(inventory, db)

	engineCfg, err := cfg.Prediction()
	if err != nil {
		return fmt.Errorf("engine config: %w", err)
	}
	orchestrator := prediction.NewOrchestrator(engineCfg)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := services.NewMetrics(reg)

	predictionService := services.NewPredictionService(orchestrator, repo, metrics)
	inventoryService := services.NewInventoryService(repo)
	authService := services.NewAuthService(cfg.Auth.InspectorPassword, cfg.Auth.InspectorPasswordHash)
	if !authService.Configured() {
		slog.Warn("Inspector password not configured; /auth/inspector will answer 503")
	}

	var alertPublisher services.Publisher
	if cfg.NATSEnabled() {
		natsService, err := services.NewNATSService(cfg, predictionService, metrics)
		if err != nil {
			db.Event("error", "nats.failed", "NATS service initialization failed", map[string]any{
				"nats_url": cfg.NATS.URL,
				"error":    err.Error(),
			})
			return err
		}
		defer natsService.Close()
		alertPublisher = natsService.GetConnection()

		go func() {
			if err := natsService.Start(ctx); err != nil {
				db.Event("error", "nats.failed", "NATS service failed", map[string]any{"error": err.Error()})
				slog.Error("NATS service failed", "error", err)
			}
		}()

		healthService := services.NewHealthService(natsService.GetConnection(), cfg)
		if err := healthService.Start(ctx); err != nil {
			db.Event("error", "health.failed", "Health service failed", map[string]any{"error": err.Error()})
			slog.Error("Health service failed", "error", err)
		}
	} else {
		slog.Info("NATS disabled; alerts are logged only")
	}
	alertService := services.NewAlertService(alertPublisher, cfg.NATS.AlertPrefix, metrics)

	httpServer := server.NewServer(cfg.HTTP.Addr, cfg.HTTP.CORSOrigins, reg,
		handlers.NewInventoryHandler(inventoryService),
		handlers.NewPredictionHandler(predictionService),
		handlers.NewAlertHandler(alertService, authService),
	)

	db.Event("info", "server.ready", "Server ready to accept requests", map[string]any{
		"http_addr": cfg.HTTP.Addr,
		"nats_url":  cfg.NATS.URL,
		"engine":    engineCfg.EngineDir,
	})

	if err := httpServer.Start(ctx); err != nil {
		db.Event("error", "http.failed", "HTTP server failed", map[string]any{"error": err.Error()})
		return err
	}

	db.Event("info", "shutdown", "Server stopped", nil)
	slog.Info("Server stopped")
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/modelsite/modelsite-go/pkg/api"
	"github.com/modelsite/modelsite-go/pkg/config"
	"github.com/modelsite/modelsite-go/pkg/metadatastore"
	"github.com/modelsite/modelsite-go/pkg/mlmodel"
	"github.com/modelsite/modelsite-go/pkg/scheduler"
)

func ServeCommand() *cobra.Command {
	var configFile string
	var port string

	var cmd = &cobra.Command{
		Use:   "serve [--config file] [--port port]",
		Short: "Starts the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if port != "" {
				cfg.Port = port
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "path to a YAML config file (defaults to CONFIG_FILE)")
	cmd.Flags().StringVarP(&port, "port", "p", "", "port to listen on (overrides PORT)")

	return cmd
}

func serve(ctx context.Context, cfg *config.Config) (err error) {
	log, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("Starting ModelSite backend", zap.String("environment", cfg.Environment))

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}
	store, err := metadatastore.NewSQLiteStore(ctx, cfg.DatabasePath, log.With(zap.String("service", "metadatastore")))
	if err != nil {
		return fmt.Errorf("failed to initialize SQLite storage: %w", err)
	}
	defer func() {
		err = multierr.Append(err, store.Close())
	}()
	log.Info("Initialized SQLite storage", zap.String("path", cfg.DatabasePath))

	jobs := scheduler.NewService(log.With(zap.String("service", "scheduler")))
	if cfg.MaintenanceSchedule != "" {
		if _, err := jobs.AddMaintenance(store, cfg.MaintenanceSchedule); err != nil {
			return fmt.Errorf("failed to schedule database maintenance: %w", err)
		}
	}
	jobs.Start()

	modelService := mlmodel.NewService(mlmodel.DefaultRegistry(), log.With(zap.String("service", "mlmodel")))
	server := api.NewServer(cfg, store, modelService, log.With(zap.String("service", "http")))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// Wait for an interrupt signal or a server failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case sig := <-quit:
		log.Info("Shutting down", zap.String("signal", sig.String()))
	case runErr = <-serverErr:
		log.Error("API server stopped", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
	defer cancel()

	err = multierr.Combine(
		runErr,
		server.Shutdown(shutdownCtx),
		jobs.Stop(shutdownCtx),
	)
	log.Info("Server exited")
	return err
}

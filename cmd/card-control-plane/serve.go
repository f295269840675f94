package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/upb/card-control-plane/app"
	"github.com/upb/card-control-plane/config"
	"github.com/upb/card-control-plane/repositories/postgres"
	"github.com/upb/card-control-plane/routes"
)

func serveCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long:  `Serve the authorization webhook, health endpoints and the management API until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			logger, err := initLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			return serve(ctx, cfg, logger, migrate)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "create the schema before serving")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger, migrate bool) error {
	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if migrate {
		if err := deps.RepoFactory.InitSchema(ctx); err != nil {
			_ = deps.Close(context.Background())
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
		logger.Info("schema initialized")
	}

	if err := deps.Start(ctx); err != nil {
		_ = deps.Close(context.Background())
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      routes.SetupRoutes(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("address", srv.Addr),
			zap.Bool("tls", cfg.Server.TLS.Enabled),
			zap.String("version", version))

		var err error
		if cfg.Server.TLS.Enabled {
			err = srv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err, ok := <-serverErr:
		if ok {
			runErr = fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	if err := deps.Close(shutdownCtx); err != nil {
		logger.Error("dependency shutdown failed", zap.Error(err))
	}

	logger.Info("server stopped")
	return runErr
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		Long:  `Create the cards, policies, transactions and audit_logs tables if they do not exist.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			logger, err := initLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			factory, err := postgres.NewRepositoryFactory(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to connect: %w", err)
			}
			defer func() { _ = factory.Close() }()

			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := factory.InitSchema(ctx); err != nil {
				return fmt.Errorf("failed to initialize schema: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "schema initialized")
			return nil
		},
	}
}

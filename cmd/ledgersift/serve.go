package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ledgersift/ledgersift/internal/ai/openai"
	"github.com/ledgersift/ledgersift/internal/common"
	"github.com/ledgersift/ledgersift/internal/config"
	"github.com/ledgersift/ledgersift/internal/pipeline"
	"github.com/ledgersift/ledgersift/internal/server"
	"github.com/ledgersift/ledgersift/internal/storage"
	"github.com/ledgersift/ledgersift/internal/taxonomy"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ingestion and classification API server",
		Long: `Start the HTTP server: bulk uploads, batch progress streaming,
classification, taxonomy maintenance, and transaction review.`,
		RunE: runServe,
	}

	cmd.Flags().Int("port", 0, "listen port (overrides config)")
	cmd.Flags().Float64("threshold", 0, "confidence threshold (overrides config)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}
	if threshold, _ := cmd.Flags().GetFloat64("threshold"); threshold > 0 {
		cfg.Pipeline.Threshold = threshold
	}

	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return common.NewUserError(fmt.Sprintf("could not open the database at %s", cfg.DatabasePath), err)
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	provider, err := openai.NewProvider(cfg.AI)
	if err != nil {
		return common.NewUserError("could not reach the AI services, check the ai configuration", err)
	}
	defer func() { _ = provider.Close() }()

	engine, err := taxonomy.New(ctx, store, provider,
		taxonomy.WithThreshold(cfg.Pipeline.Threshold))
	if err != nil {
		return fmt.Errorf("failed to load taxonomy: %w", err)
	}

	processor := pipeline.New(store, engine, cfg.Pipeline)

	srv, err := server.New(store, engine, processor, cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	slog.Info("ledgersift serving",
		"port", cfg.Server.Port,
		"database", cfg.DatabasePath,
		"threshold", cfg.Pipeline.Threshold)

	return srv.Run(ctx)
}

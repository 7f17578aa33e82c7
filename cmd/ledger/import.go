package main

import (
	"fmt"

	"github.com/semenkulikov/Online-school/internal/cache"
	"github.com/semenkulikov/Online-school/internal/db"
	"github.com/semenkulikov/Online-school/internal/importer"
	"github.com/semenkulikov/Online-school/internal/logger"
	"github.com/semenkulikov/Online-school/internal/queue"
	"github.com/semenkulikov/Online-school/internal/storage"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type importOptions struct {
	dryRun bool
}

func newImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import <path|s3://key>",
		Short: "Import a ledger workbook in a single transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Parse and write inside a transaction, then roll back")
	return cmd
}

func runImport(cmd *cobra.Command, source string, opts importOptions) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.Get()

	importOpts, err := importer.OptionsFromConfig(cfg.Importer)
	if err != nil {
		return err
	}

	// Object storage is only needed for s3:// sources and archiving.
	workbooks, err := storage.New(cfg)
	if err != nil {
		log.Debug().Err(err).Msg("Workbook storage disabled")
		workbooks = nil
	}

	data, err := storage.ReadSource(ctx, source, workbooks)
	if err != nil {
		return err
	}

	database, err := db.NewConnection(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	svc := importer.NewService(db.NewRepository(database), importOpts)

	if cfg.Redis.Enabled {
		redisClient, err := queue.NewRedisClient(cfg)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		svc.WithLock(cache.NewImportLock(redisClient.Client(), cfg)).
			WithCache(cache.NewSummaryCache(redisClient.Client(), cfg))
	}

	runID := uuid.NewString()
	report, err := svc.Import(ctx, importer.Request{
		RunID:  runID,
		Source: source,
		Data:   data,
		DryRun: opts.dryRun,
	})
	if err != nil {
		return fmt.Errorf("import %s failed: %w", runID, err)
	}

	if cfg.Storage.ArchiveImports && !opts.dryRun && workbooks != nil {
		key := storage.ArchiveKey(cfg.Storage.ArchivePrefix, runID, source)
		if err := workbooks.Upload(ctx, key, data); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to archive workbook")
		} else {
			log.Info().Str("key", key).Msg("Workbook archived")
		}
	}

	printReport(cmd.OutOrStdout(), runID, report)
	return nil
}

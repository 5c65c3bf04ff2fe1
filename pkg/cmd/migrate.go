package cmd

import (
	contextPkg "context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clintagossett/artvault/pkg/configs"
	ctxPkg "github.com/clintagossett/artvault/pkg/context"
	"github.com/clintagossett/artvault/pkg/internal/service"
	"github.com/clintagossett/artvault/pkg/internal/storage"
)

var (
	migrateBatchSize int
	migrateDryRun    bool
	migrateAll       bool

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "unified storage migration commands",
	}

	migrateCountCmd = &cobra.Command{
		Use:   "count",
		Short: "show migration progress counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := migrationContext()
			if err != nil {
				return err
			}

			res, err := service.NewMigrateService(ctx).CountPending(ctx)
			if err != nil {
				return err
			}

			return printJSON(cmd, res)
		},
	}

	migrateBatchCmd = &cobra.Command{
		Use:   "batch",
		Short: "migrate a batch of legacy versions into blob storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := migrationContext()
			if err != nil {
				return err
			}

			svc := service.NewMigrateService(ctx)

			for {
				res, err := svc.MigrateBatch(ctx, migrateBatchSize, migrateDryRun)
				if err != nil {
					return err
				}

				if err := printJSON(cmd, res); err != nil {
					return err
				}

				if !migrateAll || !res.HasMore || migrateDryRun {
					return nil
				}
			}
		},
	}

	migrateBackfillCmd = &cobra.Command{
		Use:   "backfill",
		Short: "backfill missing version provenance from artifact owners",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := migrationContext()
			if err != nil {
				return err
			}

			res, err := service.NewMigrateService(ctx).BackfillProvenance(ctx, migrateBatchSize)
			if err != nil {
				return err
			}

			return printJSON(cmd, res)
		},
	}

	migrateVerifyCmd = &cobra.Command{
		Use:   "verify",
		Short: "verify migration completeness",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := migrationContext()
			if err != nil {
				return err
			}

			res, err := service.NewMigrateService(ctx).VerifyMigration(ctx)
			if err != nil {
				return err
			}

			return printJSON(cmd, res)
		},
	}

	migrateFixEntryCmd = &cobra.Command{
		Use:   "fix-entrypoints",
		Short: "fill in missing entry points from file records",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := migrationContext()
			if err != nil {
				return err
			}

			res, err := service.NewMigrateService(ctx).FixMissingEntryPoints(ctx)
			if err != nil {
				return err
			}

			return printJSON(cmd, res)
		},
	}
)

// migrationContext 初始化配置与存储，返回注入了存储管理器的 context.
func migrationContext() (contextPkg.Context, error) {
	if err := configs.InitConfig(configPath); err != nil {
		return nil, fmt.Errorf("init config: %w", err)
	}

	ctx := contextPkg.Background()

	mgr, err := storage.Init(ctx)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	return ctxPkg.WithStorageManager(ctx, mgr), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(b))

	return nil
}

// registerMigrateCommands 注册迁移相关命令.
func registerMigrateCommands() {
	migrateCmd.PersistentFlags().IntVar(&migrateBatchSize, "batch-size", 0, "rows per batch (0 = config default)")
	migrateBatchCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "count without writing")
	migrateBatchCmd.Flags().BoolVar(&migrateAll, "all", false, "keep running batches until none remain")

	migrateCmd.AddCommand(migrateCountCmd)
	migrateCmd.AddCommand(migrateBatchCmd)
	migrateCmd.AddCommand(migrateBackfillCmd)
	migrateCmd.AddCommand(migrateVerifyCmd)
	migrateCmd.AddCommand(migrateFixEntryCmd)

	rootCmd.AddCommand(migrateCmd)
}

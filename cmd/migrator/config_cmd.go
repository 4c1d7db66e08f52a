package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lyzr/pubmigrate/cmd/migrator/service"
	"github.com/lyzr/pubmigrate/common/bootstrap"
	"github.com/lyzr/pubmigrate/common/config"
)

func newTransferConfigCmd() *cobra.Command {
	var dryRun bool
	var outputDir string

	cmd := &cobra.Command{
		Use:   "transfer-config",
		Short: "Copy types, stages, fields and move-constraints between communities",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("dry-run") {
				cfg.Migration.DryRun = dryRun
			}
			if outputDir == "" {
				outputDir = cfg.Migration.OutputDir
			}
			if err := validateConfigTransfer(cfg); err != nil {
				return withCode(exitUsage, err)
			}
			return runTransferConfig(cmd.Context(), cfg, outputDir)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Record target writes instead of performing them")
	cmd.Flags().StringVar(&outputDir, "output", "", "Report directory (default MIGRATION_OUTPUT_DIR)")

	return cmd
}

func validateConfigTransfer(cfg *config.Config) error {
	if !cfg.ConfigSource.Enabled() {
		return fmt.Errorf("missing required settings: CONFIG_SOURCE_COMMUNITY_SLUG")
	}
	if cfg.Target.CommunitySlug == "" {
		return fmt.Errorf("missing required settings: TARGET_COMMUNITY_SLUG")
	}
	if !cfg.Migration.DryRun && cfg.Target.APIKey == "" {
		return fmt.Errorf("missing required settings: TARGET_API_KEY")
	}
	return nil
}

func runTransferConfig(ctx context.Context, cfg *config.Config, outputDir string) error {
	// The mapping cache serves record migration only
	components, c, err := setup(ctx, cfg, bootstrap.WithoutCache())
	if err != nil {
		return err
	}
	defer components.Shutdown(context.Background())

	report, err := c.Runner.Run(ctx, service.RunOptions{
		ConfigOnly: true,
		OutputDir:  outputDir,
	})
	return finishRun(report, err)
}

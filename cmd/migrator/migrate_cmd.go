package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lyzr/pubmigrate/cmd/migrator/service"
	"github.com/lyzr/pubmigrate/common/config"
	"github.com/lyzr/pubmigrate/common/models"
)

type migrateOptions struct {
	dryRun     bool
	limit      int
	tables     []string
	skipConfig bool
	outputDir  string
}

func newMigrateCmd() *cobra.Command {
	var opts migrateOptions

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Transfer config, create every record, then link relations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := opts.apply(cmd, cfg); err != nil {
				return err
			}
			return runMigrate(cmd.Context(), cfg, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Record target writes instead of performing them")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Records to read per table (default SOURCE_RECORD_LIMIT)")
	cmd.Flags().StringSliceVar(&opts.tables, "table", nil, "Source table name or id to migrate (repeatable)")
	cmd.Flags().BoolVar(&opts.skipConfig, "skip-config", false, "Skip the config transfer")
	cmd.Flags().StringVar(&opts.outputDir, "output", "", "Report directory (default MIGRATION_OUTPUT_DIR)")

	return cmd
}

// apply lets flags override the environment
func (o *migrateOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("dry-run") {
		cfg.Migration.DryRun = o.dryRun
	}
	if o.limit < 0 {
		return withCode(exitUsage, fmt.Errorf("--limit must not be negative"))
	}
	if o.limit == 0 {
		o.limit = cfg.Source.RecordLimit
	}
	if len(o.tables) == 0 {
		o.tables = cfg.Source.Tables
	}
	if o.outputDir == "" {
		o.outputDir = cfg.Migration.OutputDir
	}
	if err := cfg.ValidateRun(); err != nil {
		return withCode(exitUsage, err)
	}
	return nil
}

func runMigrate(ctx context.Context, cfg *config.Config, opts migrateOptions) error {
	components, c, err := setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer components.Shutdown(context.Background())

	report, err := c.Runner.Run(ctx, service.RunOptions{
		Tables:     opts.tables,
		Limit:      opts.limit,
		SkipConfig: opts.skipConfig,
		OutputDir:  opts.outputDir,
	})
	return finishRun(report, err)
}

type runSummary struct {
	Status     string `json:"status"`
	RunID      string `json:"run_id"`
	DryRun     bool   `json:"dry_run"`
	Records    int    `json:"records"`
	Created    int    `json:"created"`
	Reused     int    `json:"reused"`
	Failed     int    `json:"failed"`
	Relations  int    `json:"relations"`
	Dropped    int    `json:"edges_dropped"`
	Operations int    `json:"operations,omitempty"`
}

// finishRun prints the run summary and turns the outcome into an exit code
func finishRun(report *models.RunReport, runErr error) error {
	var schemaErr *service.SchemaFetchError
	if errors.As(runErr, &schemaErr) {
		return withCode(exitSchema, runErr)
	}
	if report == nil {
		return runErr
	}

	totals := report.Totals()
	status := "completed"
	if report.Failed() {
		status = "completed_with_failures"
	}
	if runErr != nil {
		status = "interrupted"
	}

	if err := writeJSONLine(runSummary{
		Status:     status,
		RunID:      report.RunID,
		DryRun:     report.DryRun,
		Records:    totals.Records,
		Created:    totals.Created,
		Reused:     totals.Reused,
		Failed:     totals.Failed,
		Relations:  totals.RelationsApplied,
		Dropped:    totals.EdgesDropped,
		Operations: len(report.Operations),
	}); err != nil {
		return err
	}

	if runErr != nil {
		return runErr
	}
	if report.Failed() {
		return withCode(exitFailures, fmt.Errorf("run %s completed with failures", report.RunID))
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/lyzr/pubmigrate/cmd/migrator/mapping"
	"github.com/lyzr/pubmigrate/common/clients"
	"github.com/lyzr/pubmigrate/common/logger"
	"github.com/lyzr/pubmigrate/common/models"
	"github.com/lyzr/pubmigrate/common/telemetry"
)

// OperationLog is implemented by stores that record instead of writing
type OperationLog interface {
	Operations() []models.MigrationOperation
}

// RunnerDeps are the collaborators of a Runner. ConfigSource, Runs and
// Telemetry may be nil.
type RunnerDeps struct {
	Source       SourceProvider
	ConfigSource ConfigSource
	Target       EntityStore
	Mapper       *mapping.Mapper
	Types        *mapping.TypeResolver
	Runs         RunStore
	Telemetry    *telemetry.Telemetry
	Logger       *logger.Logger
}

// RunnerOptions are fixed for the lifetime of a Runner
type RunnerOptions struct {
	Community    string
	DryRun       bool
	SkipMigrated bool
	Migrator     MigratorOptions
}

// RunOptions shape a single run
type RunOptions struct {
	// Tables restricts the run to these source tables; empty means all
	Tables []string
	// Limit caps the records read per table; 0 means no cap
	Limit      int
	SkipConfig bool
	ConfigOnly bool
	OutputDir  string
}

// Runner executes a full migration: schema fetch, config transfer, record
// migration, then report assembly and persistence
type Runner struct {
	deps RunnerDeps
	opts RunnerOptions
}

// NewRunner creates a runner
func NewRunner(deps RunnerDeps, opts RunnerOptions) *Runner {
	return &Runner{deps: deps, opts: opts}
}

// Run migrates once. It returns a *SchemaFetchError, and no report, when a
// schema cannot be read; otherwise it always returns a report, along with
// the context error if the run was cancelled.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*models.RunReport, error) {
	runID := uuid.NewString()
	ctx = clients.WithRunID(ctx, runID)
	log := r.deps.Logger.WithRunID(runID)
	diags := NewDiagnostics(log)

	report := &models.RunReport{
		RunID:     runID,
		Community: r.opts.Community,
		DryRun:    r.opts.DryRun,
		StartedAt: time.Now().UTC(),
	}
	log.Info("migration run started", "community", r.opts.Community, "dry_run", r.opts.DryRun)

	configSource := r.deps.ConfigSource
	if opts.SkipConfig {
		configSource = nil
	}
	engine := NewConfigTransferEngine(configSource, r.deps.Target, diags, log)

	// Every read happens before the first write
	start := time.Now()
	snap, err := engine.Prepare(ctx)
	if err != nil {
		return nil, err
	}
	var inputs []TableInput
	if !opts.ConfigOnly {
		if inputs, err = r.fetchSource(ctx, opts, log); err != nil {
			return nil, err
		}
	}
	r.deps.Telemetry.RecordDuration("schema_fetch", start)

	remap := models.NewIDRemap()
	r.loadPriorRemaps(ctx, remap, log)

	start = time.Now()
	result := engine.Transfer(ctx, snap, remap)
	if configSource != nil {
		report.Config = &result.Summary
	}
	r.deps.Telemetry.RecordDuration("config_transfer", start)

	var runErr error
	if !opts.ConfigOnly && ctx.Err() == nil {
		start = time.Now()
		migrator := NewEntityMigrator(r.deps.Target, r.deps.Mapper, r.deps.Types, diags, log, r.opts.Migrator)
		report.Tables, runErr = migrator.Migrate(ctx, inputs, result.Catalog, remap)
		r.deps.Telemetry.RecordDuration("entity_migration", start)
	}
	if runErr == nil {
		runErr = ctx.Err()
	}

	report.FinishedAt = time.Now().UTC()
	report.Diagnostics = diags.Items()
	report.Remaps = remap.Entries()
	if oplog, ok := r.deps.Target.(OperationLog); ok {
		report.Operations = oplog.Operations()
	}

	r.persist(report, opts.OutputDir, log)
	LogSummary(log, report)
	return report, runErr
}

func (r *Runner) fetchSource(ctx context.Context, opts RunOptions, log *logger.Logger) ([]TableInput, error) {
	tables, err := r.deps.Source.ListTables(ctx)
	if err != nil {
		return nil, &SchemaFetchError{Scope: "source tables", Err: err}
	}

	wanted := make(map[string]bool, len(opts.Tables))
	for _, t := range opts.Tables {
		wanted[t] = true
	}

	inputs := make([]TableInput, 0, len(tables))
	for _, table := range tables {
		if len(wanted) > 0 && !wanted[table.Name] && !wanted[table.ID] {
			continue
		}
		records, err := r.deps.Source.ListRecords(ctx, table, opts.Limit)
		if err != nil {
			return nil, &SchemaFetchError{Scope: "records of table " + table.Name, Err: err}
		}
		log.Debug("source table loaded", "table", table.Name, "fields", len(table.Fields), "records", len(records))
		inputs = append(inputs, TableInput{Table: table, Records: records})
	}

	if len(wanted) > 0 && len(inputs) == 0 {
		return nil, &SchemaFetchError{Scope: "source tables", Err: errors.New("none of the requested tables exist")}
	}
	return inputs, nil
}

// loadPriorRemaps binds records migrated by earlier live runs so they are
// linked instead of created again
func (r *Runner) loadPriorRemaps(ctx context.Context, remap *models.IDRemap, log *logger.Logger) {
	if r.deps.Runs == nil || !r.opts.SkipMigrated || r.opts.DryRun {
		return
	}

	prior, err := r.deps.Runs.PriorEntityRemaps(ctx, r.opts.Community)
	if err != nil {
		log.Warn("failed to load earlier entity remaps, every record will be created", "error", err)
		return
	}
	for sourceID, targetID := range prior {
		remap.Put(models.RemapEntity, sourceID, targetID)
	}
	if len(prior) > 0 {
		log.Info("loaded entity remaps from earlier runs", "count", len(prior))
	}
}

func (r *Runner) persist(report *models.RunReport, outputDir string, log *logger.Logger) {
	// Persisting must happen even when the run context was cancelled
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if r.deps.Runs != nil {
		if err := r.deps.Runs.SaveRun(ctx, report); err != nil {
			log.Warn("failed to save run report", "error", err)
		}
	}

	if outputDir != "" {
		path, err := WriteReport(outputDir, report)
		if err != nil {
			log.Warn("failed to write report file", "error", err)
			return
		}
		log.Info("report written", "path", path)
	}
}

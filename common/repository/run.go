package repository

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lyzr/pubmigrate/common/db"
	"github.com/lyzr/pubmigrate/common/models"
)

//go:embed schema.sql
var schemaSQL string

// ErrRunNotFound is returned when no run has the requested id
var ErrRunNotFound = errors.New("run not found")

// ApplySchema creates the audit tables if they do not exist
func ApplySchema(database *db.DB) error {
	if _, err := database.Exec(context.Background(), schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// RunRepository stores migration run reports with their id remaps and
// recorded operations
type RunRepository struct {
	db *db.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(database *db.DB) *RunRepository {
	return &RunRepository{db: database}
}

// SaveRun inserts a run, its remap entries and its operations in one transaction
func (r *RunRepository) SaveRun(ctx context.Context, report *models.RunReport) error {
	runID, err := uuid.Parse(report.RunID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", report.RunID, err)
	}

	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	totals := report.Totals()

	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		query := `
			INSERT INTO migration_run (run_id, community, dry_run, failed, started_at, finished_at, records, created, report)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`
		_, err := tx.Exec(ctx, query,
			runID.String(),
			report.Community,
			report.DryRun,
			report.Failed(),
			report.StartedAt,
			report.FinishedAt,
			totals.Records,
			totals.Created,
			body,
		)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		remapRows := make([][]any, 0, len(report.Remaps))
		for _, e := range report.Remaps {
			remapRows = append(remapRows, []any{runID, string(e.Kind), e.SourceID, e.TargetID})
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"id_remap"},
			[]string{"run_id", "kind", "source_id", "target_id"},
			pgx.CopyFromRows(remapRows),
		); err != nil {
			return fmt.Errorf("failed to insert remaps: %w", err)
		}

		opRows := make([][]any, 0, len(report.Operations))
		for i, op := range report.Operations {
			payload, err := json.Marshal(op.Payload)
			if err != nil {
				return fmt.Errorf("failed to encode operation %d: %w", i, err)
			}
			opRows = append(opRows, []any{runID, i, string(op.Kind), op.Method, op.Endpoint, payload})
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"migration_operation"},
			[]string{"run_id", "seq", "operation", "method", "endpoint", "payload"},
			pgx.CopyFromRows(opRows),
		); err != nil {
			return fmt.Errorf("failed to insert operations: %w", err)
		}

		return nil
	})
}

// PriorEntityRemaps returns the entity bindings made by earlier live runs
// against community. The most recent binding of a source id wins.
func (r *RunRepository) PriorEntityRemaps(ctx context.Context, community string) (map[string]string, error) {
	query := `
		SELECT DISTINCT ON (m.source_id) m.source_id, m.target_id
		FROM id_remap m
		JOIN migration_run r ON r.run_id = m.run_id
		WHERE r.community = $1 AND NOT r.dry_run AND m.kind = $2
		ORDER BY m.source_id, r.started_at DESC
	`

	rows, err := r.db.Query(ctx, query, community, string(models.RemapEntity))
	if err != nil {
		return nil, fmt.Errorf("failed to query prior remaps: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var sourceID, targetID string
		if err := rows.Scan(&sourceID, &targetID); err != nil {
			return nil, fmt.Errorf("failed to scan remap: %w", err)
		}
		out[sourceID] = targetID
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating remaps: %w", err)
	}

	return out, nil
}

// GetRun retrieves the full report of a run
func (r *RunRepository) GetRun(ctx context.Context, runID string) (*models.RunReport, error) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return nil, ErrRunNotFound
	}

	var body []byte
	err = r.db.QueryRow(ctx, `SELECT report FROM migration_run WHERE run_id = $1`, id.String()).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	report := &models.RunReport{}
	if err := json.Unmarshal(body, report); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return report, nil
}

// ListRuns retrieves the most recent runs, newest first. An empty community
// lists runs of every community.
func (r *RunRepository) ListRuns(ctx context.Context, community string, limit int) ([]models.RunSummary, error) {
	query := `
		SELECT run_id::text, community, dry_run, failed, started_at, finished_at, records, created
		FROM migration_run
		WHERE $1 = '' OR community = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, community, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []models.RunSummary{}
	for rows.Next() {
		var s models.RunSummary
		err := rows.Scan(
			&s.RunID,
			&s.Community,
			&s.DryRun,
			&s.Failed,
			&s.StartedAt,
			&s.FinishedAt,
			&s.Records,
			&s.Created,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// ListRemaps retrieves the remap entries of a run, optionally of one kind
func (r *RunRepository) ListRemaps(ctx context.Context, runID string, kind models.RemapKind) ([]models.RemapEntry, error) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return nil, ErrRunNotFound
	}

	query := `
		SELECT kind, source_id, target_id
		FROM id_remap
		WHERE run_id = $1 AND ($2 = '' OR kind = $2)
		ORDER BY kind, source_id
	`

	rows, err := r.db.Query(ctx, query, id.String(), string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to list remaps: %w", err)
	}
	defer rows.Close()

	entries := []models.RemapEntry{}
	for rows.Next() {
		var e models.RemapEntry
		var k string
		if err := rows.Scan(&k, &e.SourceID, &e.TargetID); err != nil {
			return nil, fmt.Errorf("failed to scan remap: %w", err)
		}
		e.Kind = models.RemapKind(k)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating remaps: %w", err)
	}

	return entries, nil
}

// ListOperations retrieves the recorded operations of a run in call order
func (r *RunRepository) ListOperations(ctx context.Context, runID string) ([]models.MigrationOperation, error) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return nil, ErrRunNotFound
	}

	query := `
		SELECT operation, method, endpoint, payload
		FROM migration_operation
		WHERE run_id = $1
		ORDER BY seq
	`

	rows, err := r.db.Query(ctx, query, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	defer rows.Close()

	ops := []models.MigrationOperation{}
	for rows.Next() {
		var op models.MigrationOperation
		var kind string
		var payload []byte
		if err := rows.Scan(&kind, &op.Method, &op.Endpoint, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		op.Kind = models.OperationKind(kind)
		if len(payload) > 0 {
			op.Payload = json.RawMessage(payload)
		}
		ops = append(ops, op)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operations: %w", err)
	}

	return ops, nil
}

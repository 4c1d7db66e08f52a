package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lyzr/pubmigrate/common/logger"
	"github.com/lyzr/pubmigrate/common/models"
)

// ReportFileName is the name of the report file of a run
func ReportFileName(runID string) string {
	return fmt.Sprintf("migration_report_%s.json", runID)
}

// WriteReport writes report as indented JSON into dir and returns the path
func WriteReport(dir string, report *models.RunReport) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report dir: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	path := filepath.Join(dir, ReportFileName(report.RunID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// LogSummary logs one line per table and a closing total
func LogSummary(log *logger.Logger, report *models.RunReport) {
	if report.Config != nil {
		c := report.Config
		log.Info("config summary",
			"types", fmt.Sprintf("%d created, %d reused, %d failed", c.Types.Created, c.Types.Reused, c.Types.Failed),
			"stages", fmt.Sprintf("%d created, %d reused, %d failed", c.Stages.Created, c.Stages.Reused, c.Stages.Failed),
			"fields", fmt.Sprintf("%d created, %d reused, %d skipped, %d failed", c.Fields.Created, c.Fields.Reused, c.Fields.Skipped, c.Fields.Failed),
		)
	}

	for _, t := range report.Tables {
		log.Info("table summary",
			"table", t.Table,
			"records", t.Records,
			"created", t.Created,
			"reused", t.Reused,
			"skipped", t.Skipped,
			"failed", t.Failed,
			"relations", t.RelationsApplied,
			"edges_dropped", t.EdgesDropped,
		)
	}

	total := report.Totals()
	log.Info("migration run finished",
		"records", total.Records,
		"created", total.Created,
		"failed", total.Failed,
		"diagnostics", len(report.Diagnostics),
		"operations", len(report.Operations),
		"succeeded", !report.Failed(),
		"duration", report.FinishedAt.Sub(report.StartedAt).String(),
	)
}

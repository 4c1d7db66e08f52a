package service

import (
	"fmt"
	"sync"

	"github.com/lyzr/pubmigrate/common/logger"
	"github.com/lyzr/pubmigrate/common/models"
)

// SchemaFetchError means a schema could not be read. It aborts a run before
// any write.
type SchemaFetchError struct {
	Scope string
	Err   error
}

func (e *SchemaFetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.Scope, e.Err)
}

func (e *SchemaFetchError) Unwrap() error {
	return e.Err
}

// Diagnostics collects the non-fatal problems of a run, logging each one
type Diagnostics struct {
	mu    sync.Mutex
	items []models.Diagnostic
	log   *logger.Logger
}

// NewDiagnostics creates an empty collector
func NewDiagnostics(log *logger.Logger) *Diagnostics {
	return &Diagnostics{log: log}
}

// Add records and logs a diagnostic
func (d *Diagnostics) Add(diag models.Diagnostic) {
	d.mu.Lock()
	d.items = append(d.items, diag)
	d.mu.Unlock()

	args := []any{"kind", diag.Kind}
	if diag.Table != "" {
		args = append(args, "table", diag.Table)
	}
	if diag.RecordID != "" {
		args = append(args, "record_id", diag.RecordID)
	}
	if diag.Field != "" {
		args = append(args, "field", diag.Field)
	}
	d.log.Warn(diag.Message, args...)
}

// AddAll records several diagnostics
func (d *Diagnostics) AddAll(diags []models.Diagnostic) {
	for _, diag := range diags {
		d.Add(diag)
	}
}

// Items returns a copy of everything recorded so far
func (d *Diagnostics) Items() []models.Diagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.Diagnostic{}, d.items...)
}

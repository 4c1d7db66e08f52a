package models

import "time"

// DiagnosticKind classifies a non-fatal problem of a run
type DiagnosticKind string

const (
	DiagMappingAmbiguous        DiagnosticKind = "mapping_ambiguous"
	DiagCoercionFailure         DiagnosticKind = "coercion_failure"
	DiagEntityCreateFailure     DiagnosticKind = "entity_create_failure"
	DiagRelationResolveFailure  DiagnosticKind = "relation_resolve_failure"
	DiagRelationUpdateFailure   DiagnosticKind = "relation_update_failure"
	DiagConfigDependencyMissing DiagnosticKind = "config_dependency_missing"
	DiagConfigCreateFailure     DiagnosticKind = "config_create_failure"
	DiagVerificationDrift       DiagnosticKind = "verification_drift"
	DiagCacheFailure            DiagnosticKind = "cache_failure"
)

// Fails reports whether a diagnostic of this kind makes the run unsuccessful
func (k DiagnosticKind) Fails() bool {
	switch k {
	case DiagEntityCreateFailure, DiagRelationUpdateFailure, DiagConfigCreateFailure:
		return true
	}
	return false
}

// Diagnostic is a logged, non-fatal problem
type Diagnostic struct {
	Kind     DiagnosticKind `json:"kind"`
	Table    string         `json:"table,omitempty"`
	RecordID string         `json:"recordId,omitempty"`
	Field    string         `json:"field,omitempty"`
	Message  string         `json:"message"`
}

// TableSummary counts record outcomes for one source table
type TableSummary struct {
	Table            string         `json:"table"`
	EntityTypeID     string         `json:"entityTypeId,omitempty"`
	Mappings         []FieldMapping `json:"mappings,omitempty"`
	Unmapped         []string       `json:"unmapped,omitempty"`
	Records          int            `json:"records"`
	Created          int            `json:"created"`
	Reused           int            `json:"reused"`
	Skipped          int            `json:"skipped"`
	Failed           int            `json:"failed"`
	RelationsApplied int            `json:"relationsApplied"`
	RelationsFailed  int            `json:"relationsFailed"`
	EdgesDropped     int            `json:"edgesDropped"`
}

// ConfigCounts counts the outcome of one config object kind
type ConfigCounts struct {
	Created int `json:"created"`
	Reused  int `json:"reused"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// ConfigSummary summarises a config transfer
type ConfigSummary struct {
	Types           ConfigCounts `json:"types"`
	Stages          ConfigCounts `json:"stages"`
	Fields          ConfigCounts `json:"fields"`
	MoveConstraints ConfigCounts `json:"moveConstraints"`
}

// Failed reports whether any type, stage or field failed
func (s ConfigSummary) Failed() bool {
	return s.Types.Failed+s.Stages.Failed+s.Fields.Failed+s.MoveConstraints.Failed > 0
}

// RunReport is the persisted outcome of one migration run
type RunReport struct {
	RunID       string               `json:"runId"`
	Community   string               `json:"community"`
	DryRun      bool                 `json:"dryRun"`
	StartedAt   time.Time            `json:"startedAt"`
	FinishedAt  time.Time            `json:"finishedAt"`
	Config      *ConfigSummary       `json:"config,omitempty"`
	Tables      []TableSummary       `json:"tables"`
	Diagnostics []Diagnostic         `json:"diagnostics"`
	Remaps      []RemapEntry         `json:"remaps"`
	Operations  []MigrationOperation `json:"operations,omitempty"`
}

// Failed reports whether any record, type, stage, field or relation failed
func (r *RunReport) Failed() bool {
	if r.Config != nil && r.Config.Failed() {
		return true
	}
	for _, t := range r.Tables {
		if t.Failed > 0 || t.RelationsFailed > 0 {
			return true
		}
	}
	return false
}

// Totals sums the per-table counters
func (r *RunReport) Totals() TableSummary {
	total := TableSummary{Table: "total"}
	for _, t := range r.Tables {
		total.Records += t.Records
		total.Created += t.Created
		total.Reused += t.Reused
		total.Skipped += t.Skipped
		total.Failed += t.Failed
		total.RelationsApplied += t.RelationsApplied
		total.RelationsFailed += t.RelationsFailed
		total.EdgesDropped += t.EdgesDropped
	}
	return total
}

// RunSummary is the listing row of a stored run
type RunSummary struct {
	RunID      string    `json:"runId"`
	Community  string    `json:"community"`
	DryRun     bool      `json:"dryRun"`
	Failed     bool      `json:"failed"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Records    int       `json:"records"`
	Created    int       `json:"created"`
}

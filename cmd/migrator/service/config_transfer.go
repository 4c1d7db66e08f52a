package service

import (
	"context"
	"fmt"

	"github.com/lyzr/pubmigrate/cmd/migrator/relations"
	"github.com/lyzr/pubmigrate/common/logger"
	"github.com/lyzr/pubmigrate/common/models"
)

const moveConstraintsSlug = "moveConstraints"

// ConfigSnapshot is the config read once before a transfer starts
type ConfigSnapshot struct {
	SourceTypes  []models.EntityType
	SourceStages []models.Stage
	SourceFields []models.FieldDef

	TargetTypes  []models.EntityType
	TargetStages []models.Stage
	TargetFields []models.FieldDef
}

// ConfigResult is the outcome of a transfer. Catalog holds every target type
// and stage, existing or created, for the record migration that follows.
type ConfigResult struct {
	Summary models.ConfigSummary
	Catalog models.Catalog
}

// ConfigTransferEngine copies types, stages, fields and stage move-constraints
// from one community to another, in that order. Objects are matched by exact
// name so that a re-run reuses what an earlier run created.
type ConfigTransferEngine struct {
	source ConfigSource
	target EntityStore
	diags  *Diagnostics
	log    *logger.Logger
}

// NewConfigTransferEngine creates an engine. A nil source transfers nothing
// and only reports the target catalog.
func NewConfigTransferEngine(source ConfigSource, target EntityStore, diags *Diagnostics, log *logger.Logger) *ConfigTransferEngine {
	return &ConfigTransferEngine{source: source, target: target, diags: diags, log: log}
}

// Prepare reads the source config and the existing target objects. Any
// failure is a *SchemaFetchError.
func (e *ConfigTransferEngine) Prepare(ctx context.Context) (*ConfigSnapshot, error) {
	snap := &ConfigSnapshot{}
	var err error

	if e.source != nil {
		if snap.SourceTypes, err = e.source.ListTypes(ctx); err != nil {
			return nil, &SchemaFetchError{Scope: "source types", Err: err}
		}
		if snap.SourceStages, err = e.source.ListStages(ctx); err != nil {
			return nil, &SchemaFetchError{Scope: "source stages", Err: err}
		}
		if snap.SourceFields, err = e.source.ListFields(ctx); err != nil {
			return nil, &SchemaFetchError{Scope: "source fields", Err: err}
		}
	}

	if snap.TargetTypes, err = e.target.ListTypes(ctx); err != nil {
		return nil, &SchemaFetchError{Scope: "target types", Err: err}
	}
	if snap.TargetStages, err = e.target.ListStages(ctx); err != nil {
		return nil, &SchemaFetchError{Scope: "target stages", Err: err}
	}
	if e.source != nil {
		if snap.TargetFields, err = e.target.ListFields(ctx); err != nil {
			return nil, &SchemaFetchError{Scope: "target fields", Err: err}
		}
	}

	e.log.Info("config snapshot loaded",
		"source_types", len(snap.SourceTypes),
		"source_stages", len(snap.SourceStages),
		"source_fields", len(snap.SourceFields),
		"target_types", len(snap.TargetTypes),
		"target_stages", len(snap.TargetStages),
	)
	return snap, nil
}

// Transfer runs types, stages, fields and then move-constraints. Failures
// are recorded as diagnostics; dependants of a failed object are skipped.
func (e *ConfigTransferEngine) Transfer(ctx context.Context, snap *ConfigSnapshot, remap *models.IDRemap) ConfigResult {
	res := ConfigResult{
		Catalog: models.Catalog{
			Types:  append([]models.EntityType{}, snap.TargetTypes...),
			Stages: append([]models.Stage{}, snap.TargetStages...),
		},
	}

	e.transferTypes(ctx, snap, remap, &res)
	e.transferStages(ctx, snap, remap, &res)
	e.transferFields(ctx, snap, remap, &res)
	e.transferMoveConstraints(ctx, snap, remap, &res)

	s := res.Summary
	e.log.Info("config transfer finished",
		"types_created", s.Types.Created, "types_reused", s.Types.Reused, "types_failed", s.Types.Failed,
		"stages_created", s.Stages.Created, "stages_reused", s.Stages.Reused, "stages_failed", s.Stages.Failed,
		"fields_created", s.Fields.Created, "fields_reused", s.Fields.Reused,
		"fields_skipped", s.Fields.Skipped, "fields_failed", s.Fields.Failed,
		"constraints_set", s.MoveConstraints.Created, "constraints_failed", s.MoveConstraints.Failed,
	)
	return res
}

func (e *ConfigTransferEngine) transferTypes(ctx context.Context, snap *ConfigSnapshot, remap *models.IDRemap, res *ConfigResult) {
	byName := make(map[string]string, len(snap.TargetTypes))
	for _, t := range snap.TargetTypes {
		if _, ok := byName[t.Name]; !ok {
			byName[t.Name] = t.ID
		}
	}

	for _, src := range snap.SourceTypes {
		if id, ok := byName[src.Name]; ok {
			remap.Put(models.RemapEntityType, src.ID, id)
			res.Summary.Types.Reused++
			continue
		}
		if ctx.Err() != nil {
			res.Summary.Types.Skipped++
			continue
		}

		draft := models.EntityType{Name: src.Name, Description: src.Description, Icon: src.Icon}
		id, err := e.target.CreateType(ctx, draft)
		if err != nil {
			e.createFailed("type", src.Name, err)
			res.Summary.Types.Failed++
			continue
		}
		draft.ID = id
		byName[src.Name] = id
		remap.Put(models.RemapEntityType, src.ID, id)
		res.Catalog.Types = append(res.Catalog.Types, draft)
		res.Summary.Types.Created++
	}
}

func (e *ConfigTransferEngine) transferStages(ctx context.Context, snap *ConfigSnapshot, remap *models.IDRemap, res *ConfigResult) {
	byName := make(map[string]string, len(snap.TargetStages))
	for _, s := range snap.TargetStages {
		if _, ok := byName[s.Name]; !ok {
			byName[s.Name] = s.ID
		}
	}

	for _, src := range snap.SourceStages {
		if id, ok := byName[src.Name]; ok {
			remap.Put(models.RemapStage, src.ID, id)
			res.Summary.Stages.Reused++
			continue
		}
		if ctx.Err() != nil {
			res.Summary.Stages.Skipped++
			continue
		}

		// Constraints reference stages that may not exist yet; they are set
		// in a later pass
		draft := models.Stage{Name: src.Name, Description: src.Description, Color: src.Color}
		id, err := e.target.CreateStage(ctx, draft)
		if err != nil {
			e.createFailed("stage", src.Name, err)
			res.Summary.Stages.Failed++
			continue
		}
		draft.ID = id
		byName[src.Name] = id
		remap.Put(models.RemapStage, src.ID, id)
		res.Catalog.Stages = append(res.Catalog.Stages, draft)
		res.Summary.Stages.Created++
	}
}

func (e *ConfigTransferEngine) transferFields(ctx context.Context, snap *ConfigSnapshot, remap *models.IDRemap, res *ConfigResult) {
	byName := make(map[string]string, len(snap.TargetFields))
	for _, f := range snap.TargetFields {
		if _, ok := byName[f.Name]; !ok {
			byName[f.Name] = f.ID
		}
	}

	for _, src := range snap.SourceFields {
		typeID := ""
		if src.EntityTypeID != "" {
			mapped, ok := remap.Get(models.RemapEntityType, src.EntityTypeID)
			if !ok {
				e.diags.Add(models.Diagnostic{
					Kind:    models.DiagConfigDependencyMissing,
					Field:   src.Name,
					Message: fmt.Sprintf("field skipped: entity type %s was not transferred", src.EntityTypeID),
				})
				res.Summary.Fields.Skipped++
				continue
			}
			typeID = mapped
		}

		if id, ok := byName[src.Name]; ok {
			remap.Put(models.RemapField, src.ID, id)
			res.Summary.Fields.Reused++
			continue
		}
		if ctx.Err() != nil {
			res.Summary.Fields.Skipped++
			continue
		}

		draft := models.FieldDef{
			Name:         src.Name,
			Slug:         src.Slug,
			Description:  src.Description,
			Required:     src.Required,
			Type:         src.Type,
			EntityTypeID: typeID,
			Options:      src.Options,
		}
		id, err := e.target.CreateField(ctx, draft)
		if err != nil {
			e.createFailed("field", src.Name, err)
			res.Summary.Fields.Failed++
			continue
		}
		byName[src.Name] = id
		remap.Put(models.RemapField, src.ID, id)
		res.Summary.Fields.Created++
	}
}

// transferMoveConstraints is the barrier pass: every stage exists or has
// failed, so each constraint can be translated through the stage remap
func (e *ConfigTransferEngine) transferMoveConstraints(ctx context.Context, snap *ConfigSnapshot, remap *models.IDRemap, res *ConfigResult) {
	queue := relations.NewQueue()
	for _, src := range snap.SourceStages {
		queue.Defer(models.PendingRelation{
			OwnerID:    src.ID,
			Slug:       moveConstraintsSlug,
			RelatedIDs: src.MoveConstraints,
			Table:      src.Name,
		})
	}

	resolution := relations.Resolve(queue.Drain(), remap, models.RemapStage, models.RemapStage)
	for _, d := range resolution.Dropped {
		e.diags.Add(models.Diagnostic{
			Kind:    models.DiagConfigDependencyMissing,
			Table:   d.Table,
			Message: fmt.Sprintf("move constraint to stage %s skipped: %s", d.RelatedSourceID, d.Reason),
		})
		res.Summary.MoveConstraints.Skipped++
	}

	for _, u := range resolution.Updates {
		if ctx.Err() != nil {
			res.Summary.MoveConstraints.Skipped++
			continue
		}
		targets := u.Targets[moveConstraintsSlug]
		if err := e.target.SetMoveConstraints(ctx, u.OwnerTargetID, targets); err != nil {
			e.createFailed("move constraints of stage", u.Table, err)
			res.Summary.MoveConstraints.Failed++
			continue
		}
		setCatalogConstraints(res.Catalog.Stages, u.OwnerTargetID, targets)
		res.Summary.MoveConstraints.Created++
	}
}

func setCatalogConstraints(stages []models.Stage, id string, targets []string) {
	for i := range stages {
		if stages[i].ID == id {
			stages[i].MoveConstraints = append([]string{}, targets...)
			return
		}
	}
}

func (e *ConfigTransferEngine) createFailed(what, name string, err error) {
	e.diags.Add(models.Diagnostic{
		Kind:    models.DiagConfigCreateFailure,
		Message: fmt.Sprintf("failed to create %s %q: %v", what, name, err),
	})
}

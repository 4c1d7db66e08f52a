package service

import (
	"context"

	"github.com/lyzr/pubmigrate/common/models"
)

// SourceProvider reads the tabular source
type SourceProvider interface {
	ListTables(ctx context.Context) ([]models.TableDescriptor, error)
	ListRecords(ctx context.Context, table models.TableDescriptor, limit int) ([]models.SourceRecord, error)
}

// ConfigSource reads the types, stages and fields of a community
type ConfigSource interface {
	ListTypes(ctx context.Context) ([]models.EntityType, error)
	ListStages(ctx context.Context) ([]models.Stage, error)
	ListFields(ctx context.Context) ([]models.FieldDef, error)
}

// EntityReader reads a stored entity back
type EntityReader interface {
	GetEntity(ctx context.Context, id string) (*models.Entity, error)
}

// EntityStore is the target of a migration
type EntityStore interface {
	ConfigSource
	EntityReader

	CreateType(ctx context.Context, t models.EntityType) (string, error)
	CreateStage(ctx context.Context, s models.Stage) (string, error)
	CreateField(ctx context.Context, f models.FieldDef) (string, error)
	SetMoveConstraints(ctx context.Context, stageID string, targetStageIDs []string) error
	CreateEntity(ctx context.Context, draft models.EntityDraft) (string, error)
	UpdateRelations(ctx context.Context, entityID string, relations map[string][]string) error
}

// RunStore persists run reports and answers which records earlier runs created
type RunStore interface {
	SaveRun(ctx context.Context, report *models.RunReport) error
	PriorEntityRemaps(ctx context.Context, community string) (map[string]string, error)
}

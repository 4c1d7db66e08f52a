package service

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/lyzr/pubmigrate/common/clients"
	"github.com/lyzr/pubmigrate/common/logger"
	"github.com/lyzr/pubmigrate/common/models"
)

// DryRunRecorder stands in for the target store. Writes are recorded as
// operations and answered with placeholder ids; reads go to reader, which
// may be nil.
type DryRunRecorder struct {
	routes clients.Routes
	reader ConfigSource
	log    *logger.Logger

	mu     sync.Mutex
	ops    []models.MigrationOperation
	seq    map[string]int
	drafts map[string]models.EntityDraft
}

// NewDryRunRecorder creates a recorder whose endpoints are built from routes
func NewDryRunRecorder(routes clients.Routes, reader ConfigSource, log *logger.Logger) *DryRunRecorder {
	return &DryRunRecorder{
		routes: routes,
		reader: reader,
		log:    log,
		seq:    make(map[string]int),
		drafts: make(map[string]models.EntityDraft),
	}
}

func (r *DryRunRecorder) record(kind models.OperationKind, method, endpoint string, payload any, idKind string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ops = append(r.ops, models.MigrationOperation{
		Kind:     kind,
		Endpoint: endpoint,
		Method:   method,
		Payload:  payload,
	})
	r.log.Info("dry run: would call", "method", method, "endpoint", endpoint, "operation", kind)

	if idKind == "" {
		return ""
	}
	r.seq[idKind]++
	return fmt.Sprintf("dryrun-%s-%d", idKind, r.seq[idKind])
}

// Operations returns the recorded operations in call order
func (r *DryRunRecorder) Operations() []models.MigrationOperation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.MigrationOperation{}, r.ops...)
}

// ListTypes reads through to the live store when one is attached
func (r *DryRunRecorder) ListTypes(ctx context.Context) ([]models.EntityType, error) {
	if r.reader == nil {
		return nil, nil
	}
	return r.reader.ListTypes(ctx)
}

// ListStages reads through to the live store when one is attached
func (r *DryRunRecorder) ListStages(ctx context.Context) ([]models.Stage, error) {
	if r.reader == nil {
		return nil, nil
	}
	return r.reader.ListStages(ctx)
}

// ListFields reads through to the live store when one is attached
func (r *DryRunRecorder) ListFields(ctx context.Context) ([]models.FieldDef, error) {
	if r.reader == nil {
		return nil, nil
	}
	return r.reader.ListFields(ctx)
}

func (r *DryRunRecorder) CreateType(ctx context.Context, t models.EntityType) (string, error) {
	return r.record(models.OpCreateType, http.MethodPost, r.routes.Types(), clients.TypePayload(t), "type"), nil
}

func (r *DryRunRecorder) CreateStage(ctx context.Context, s models.Stage) (string, error) {
	return r.record(models.OpCreateStage, http.MethodPost, r.routes.Stages(), clients.StagePayload(s), "stage"), nil
}

func (r *DryRunRecorder) CreateField(ctx context.Context, f models.FieldDef) (string, error) {
	return r.record(models.OpCreateField, http.MethodPost, r.routes.Fields(), clients.FieldPayload(f), "field"), nil
}

func (r *DryRunRecorder) SetMoveConstraints(ctx context.Context, stageID string, targetStageIDs []string) error {
	r.record(models.OpSetMoveConstraints, http.MethodPut, r.routes.MoveConstraints(stageID), clients.MoveConstraintsPayload(targetStageIDs), "")
	return nil
}

func (r *DryRunRecorder) CreateEntity(ctx context.Context, draft models.EntityDraft) (string, error) {
	id := r.record(models.OpCreateEntity, http.MethodPost, r.routes.Pubs(), draft, "entity")

	r.mu.Lock()
	r.drafts[id] = draft
	r.mu.Unlock()
	return id, nil
}

func (r *DryRunRecorder) UpdateRelations(ctx context.Context, entityID string, relations map[string][]string) error {
	r.record(models.OpUpdateRelations, http.MethodPatch, r.routes.Relations(entityID), clients.RelationsPayload(relations), "")
	return nil
}

// GetEntity answers from the drafts recorded by CreateEntity
func (r *DryRunRecorder) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	draft, ok := r.drafts[id]
	if !ok {
		return nil, fmt.Errorf("dry run: no entity %s recorded", id)
	}
	return &models.Entity{
		ID:      id,
		TypeID:  draft.TypeID,
		StageID: draft.StageID,
		Title:   draft.Title,
		Slug:    draft.Slug,
		Values:  draft.Values,
	}, nil
}

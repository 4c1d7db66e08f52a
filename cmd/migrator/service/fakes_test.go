package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lyzr/pubmigrate/cmd/migrator/mapping"
	"github.com/lyzr/pubmigrate/common/logger"
	"github.com/lyzr/pubmigrate/common/models"
)

var fixedNow = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

// memStore is an in-memory target entity store
type memStore struct {
	mu  sync.Mutex
	seq int

	types       []models.EntityType
	stages      []models.Stage
	fields      []models.FieldDef
	entities    map[string]models.EntityDraft
	order       []string
	relations   map[string]map[string][]string
	constraints map[string][]string
	writes      int

	failTitlePrefix string
	failTypes       map[string]bool
	failStages      map[string]bool
	driftKey        string
	listErr         error
}

func newMemStore() *memStore {
	return &memStore{
		entities:    make(map[string]models.EntityDraft),
		relations:   make(map[string]map[string][]string),
		constraints: make(map[string][]string),
		failTypes:   make(map[string]bool),
		failStages:  make(map[string]bool),
	}
}

func (s *memStore) nextID(kind string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", kind, s.seq)
}

func (s *memStore) ListTypes(ctx context.Context) ([]models.EntityType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]models.EntityType{}, s.types...), nil
}

func (s *memStore) ListStages(ctx context.Context) ([]models.Stage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]models.Stage{}, s.stages...), nil
}

func (s *memStore) ListFields(ctx context.Context) ([]models.FieldDef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]models.FieldDef{}, s.fields...), nil
}

func (s *memStore) CreateType(ctx context.Context, t models.EntityType) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.failTypes[t.Name] {
		return "", fmt.Errorf("type %s rejected", t.Name)
	}
	t.ID = s.nextID("type")
	s.types = append(s.types, t)
	return t.ID, nil
}

func (s *memStore) CreateStage(ctx context.Context, st models.Stage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.failStages[st.Name] {
		return "", fmt.Errorf("stage %s rejected", st.Name)
	}
	st.ID = s.nextID("stage")
	s.stages = append(s.stages, st)
	return st.ID, nil
}

func (s *memStore) CreateField(ctx context.Context, f models.FieldDef) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	f.ID = s.nextID("field")
	s.fields = append(s.fields, f)
	return f.ID, nil
}

func (s *memStore) SetMoveConstraints(ctx context.Context, stageID string, targetStageIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	s.constraints[stageID] = append([]string{}, targetStageIDs...)
	return nil
}

func (s *memStore) CreateEntity(ctx context.Context, draft models.EntityDraft) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.failTitlePrefix != "" && strings.HasPrefix(draft.Title, s.failTitlePrefix) {
		return "", fmt.Errorf("entity %q rejected", draft.Title)
	}
	id := s.nextID("pub")
	s.entities[id] = draft
	s.order = append(s.order, id)
	return id, nil
}

func (s *memStore) UpdateRelations(ctx context.Context, entityID string, relations map[string][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if _, ok := s.entities[entityID]; !ok && !strings.HasPrefix(entityID, "existing-") {
		return fmt.Errorf("entity %s not found", entityID)
	}
	if s.relations[entityID] == nil {
		s.relations[entityID] = make(map[string][]string)
	}
	for slug, ids := range relations {
		s.relations[entityID][slug] = append([]string{}, ids...)
	}
	return nil
}

func (s *memStore) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft, ok := s.entities[id]
	if !ok {
		return nil, fmt.Errorf("entity %s not found", id)
	}
	values := make(map[string]any, len(draft.Values))
	for k, v := range draft.Values {
		values[k] = v
	}
	if s.driftKey != "" {
		values[s.driftKey] = "changed by store"
	}
	return &models.Entity{ID: id, TypeID: draft.TypeID, StageID: draft.StageID, Title: draft.Title, Slug: draft.Slug, Values: values}, nil
}

// entityByTitle returns the id of the entity whose title starts with prefix
func (s *memStore) entityByTitle(prefix string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		if strings.HasPrefix(s.entities[id].Title, prefix) {
			return id, true
		}
	}
	return "", false
}

// memSource is an in-memory source provider
type memSource struct {
	tables     []models.TableDescriptor
	records    map[string][]models.SourceRecord
	recordsErr error
}

func (s *memSource) ListTables(ctx context.Context) ([]models.TableDescriptor, error) {
	return s.tables, nil
}

func (s *memSource) ListRecords(ctx context.Context, table models.TableDescriptor, limit int) ([]models.SourceRecord, error) {
	if s.recordsErr != nil {
		return nil, s.recordsErr
	}
	recs := s.records[table.ID]
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// memRuns is an in-memory run store
type memRuns struct {
	saved []*models.RunReport
	prior map[string]string
}

func (r *memRuns) SaveRun(ctx context.Context, report *models.RunReport) error {
	r.saved = append(r.saved, report)
	return nil
}

func (r *memRuns) PriorEntityRemaps(ctx context.Context, community string) (map[string]string, error) {
	return r.prior, nil
}

func papersTable() models.TableDescriptor {
	return models.TableDescriptor{
		ID:   "tblPapers",
		Name: "Papers",
		Fields: []models.FieldDescriptor{
			{ID: "fldName", Name: "Name", Type: models.FieldSingleLineText},
			{ID: "fldRelated", Name: "Related Papers", Type: models.FieldLink},
			{ID: "fldScore", Name: "Score", Type: models.FieldNumber},
		},
	}
}

func paper(id, name string, related ...string) models.SourceRecord {
	values := map[string]any{"fldName": name}
	if len(related) > 0 {
		links := make([]any, 0, len(related))
		for _, r := range related {
			links = append(links, r)
		}
		values["fldRelated"] = links
	}
	return models.SourceRecord{ID: id, Values: values}
}

func testCatalog() models.Catalog {
	return models.Catalog{
		Types:  []models.EntityType{{ID: "type-preprint", Name: "Preprint"}},
		Stages: []models.Stage{{ID: "stage-draft", Name: "Draft"}, {ID: "stage-published", Name: "Published"}},
	}
}

func newTestMapper(t *testing.T) *mapping.Mapper {
	t.Helper()
	s, err := mapping.NewSuggester(mapping.DefaultRules(), mapping.DefaultTypeFallbacks())
	require.NoError(t, err)
	return mapping.NewMapper(s, nil)
}

func testMigratorOptions() MigratorOptions {
	return MigratorOptions{
		CommunitySlug:  "demo",
		TitleFallbacks: []string{"Name", "Title", "Subject", "ID"},
		Now:            fixedNow,
	}
}

func newTestMigrator(t *testing.T, store EntityStore, opts MigratorOptions) (*EntityMigrator, *Diagnostics) {
	t.Helper()
	diags := NewDiagnostics(logger.Discard())
	types := mapping.NewTypeResolver(nil, mapping.DefaultTableTypeRules())
	return NewEntityMigrator(store, newTestMapper(t), types, diags, logger.Discard(), opts), diags
}

func diagKinds(diags []models.Diagnostic) []models.DiagnosticKind {
	out := make([]models.DiagnosticKind, 0, len(diags))
	for _, d := range diags {
		out = append(out, d.Kind)
	}
	return out
}

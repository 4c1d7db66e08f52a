package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/pubmigrate/common/models"
)

func TestMigrateIdenticalTitlesGetDistinctSlugs(t *testing.T) {
	store := newMemStore()
	m, _ := newTestMigrator(t, store, testMigratorOptions())

	input := TableInput{Table: papersTable(), Records: []models.SourceRecord{
		paper("rec1", "Same"), paper("rec2", "Same"), paper("rec3", "Same"),
	}}
	summaries, err := m.Migrate(context.Background(), []TableInput{input}, testCatalog(), models.NewIDRemap())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 3, summaries[0].Created)

	slugs := make(map[string]bool)
	for _, id := range store.order {
		slugs[store.entities[id].Slug] = true
	}
	assert.Len(t, slugs, 3)

	first := store.entities[store.order[0]]
	assert.Equal(t, "Same [20260102_030405-1]", first.Title)
	assert.Equal(t, "same-20260102030405-1", first.Slug)
	assert.Equal(t, first.Title, first.Values["demo:title"])
	assert.Equal(t, "type-preprint", first.TypeID)
	assert.Equal(t, "stage-draft", first.StageID)
}

func TestMigrateTitleFallbacks(t *testing.T) {
	table := models.TableDescriptor{
		ID:   "tblNotes",
		Name: "Notes",
		Fields: []models.FieldDescriptor{
			{ID: "fldID", Name: "ID", Type: models.FieldFormula},
			{ID: "fldBody", Name: "Body", Type: models.FieldLongText},
		},
	}

	tests := []struct {
		name   string
		values map[string]any
		want   string
	}{
		{name: "fallback column", values: map[string]any{"fldID": "N-7", "fldBody": "text"}, want: "N-7 ["},
		{name: "synthesized", values: map[string]any{"fldBody": "text"}, want: "Notes Record recX ["},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			m, _ := newTestMigrator(t, store, testMigratorOptions())

			input := TableInput{Table: table, Records: []models.SourceRecord{{ID: "recX", Values: tt.values}}}
			_, err := m.Migrate(context.Background(), []TableInput{input}, testCatalog(), models.NewIDRemap())
			require.NoError(t, err)
			require.Len(t, store.order, 1)
			assert.Contains(t, store.entities[store.order[0]].Title, tt.want)
		})
	}
}

func TestMigrateListTitleIsJoined(t *testing.T) {
	table := models.TableDescriptor{
		ID:     "tblTags",
		Name:   "Tags",
		Fields: []models.FieldDescriptor{{ID: "fldTitle", Name: "Title", Type: models.FieldMultiSelect}},
	}
	store := newMemStore()
	m, _ := newTestMigrator(t, store, testMigratorOptions())

	rec := models.SourceRecord{ID: "recT", Values: map[string]any{"fldTitle": []any{"Alpha", "Beta"}}}
	input := TableInput{Table: table, Records: []models.SourceRecord{rec}}
	_, err := m.Migrate(context.Background(), []TableInput{input}, testCatalog(), models.NewIDRemap())
	require.NoError(t, err)

	require.Len(t, store.order, 1)
	assert.Equal(t, "Alpha, Beta [20260102_030405-1]", store.entities[store.order[0]].Title)
}

func TestMigrateSynthesizesDescription(t *testing.T) {
	store := newMemStore()
	m, _ := newTestMigrator(t, store, testMigratorOptions())

	rec := paper("recA", "Alpha")
	rec.Values["fldScore"] = 4.5
	input := TableInput{Table: papersTable(), Records: []models.SourceRecord{rec}}
	_, err := m.Migrate(context.Background(), []TableInput{input}, testCatalog(), models.NewIDRemap())
	require.NoError(t, err)

	draft := store.entities[store.order[0]]
	assert.Equal(t, "Record from Papers | Name: Alpha | Score: 4.5", draft.Description)
	assert.Equal(t, draft.Description, draft.Values["demo:description"])
	_, hasScore := draft.Values["demo:score"]
	assert.False(t, hasScore, "unmapped fields are not written")
}

func TestMigrateResolvesForwardReferences(t *testing.T) {
	store := newMemStore()
	m, _ := newTestMigrator(t, store, testMigratorOptions())

	// A links to B, which is created after A
	input := TableInput{Table: papersTable(), Records: []models.SourceRecord{
		paper("recA", "Alpha", "recB"),
		paper("recB", "Beta"),
	}}
	remap := models.NewIDRemap()
	summaries, err := m.Migrate(context.Background(), []TableInput{input}, testCatalog(), remap)
	require.NoError(t, err)

	aID, ok := remap.Get(models.RemapEntity, "recA")
	require.True(t, ok)
	bID, ok := remap.Get(models.RemapEntity, "recB")
	require.True(t, ok)

	assert.Equal(t, []string{bID}, store.relations[aID]["demo:relations"])
	assert.Equal(t, 1, summaries[0].RelationsApplied)
	assert.Zero(t, summaries[0].EdgesDropped)

	_, linkWritten := store.entities[aID].Values["demo:relations"]
	assert.False(t, linkWritten, "links are written by the relation pass only")
}

func TestMigrateFailedTargetOmitsEdge(t *testing.T) {
	store := newMemStore()
	store.failTitlePrefix = "Beta"
	m, diags := newTestMigrator(t, store, testMigratorOptions())

	input := TableInput{Table: papersTable(), Records: []models.SourceRecord{
		paper("recA", "Alpha", "recB", "recC", "recC"),
		paper("recB", "Beta"),
		paper("recC", "Gamma"),
	}}
	remap := models.NewIDRemap()
	summaries, err := m.Migrate(context.Background(), []TableInput{input}, testCatalog(), remap)
	require.NoError(t, err)

	s := summaries[0]
	assert.Equal(t, 2, s.Created)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.EdgesDropped)
	assert.Equal(t, 1, s.RelationsApplied)

	aID, _ := remap.Get(models.RemapEntity, "recA")
	cID, _ := remap.Get(models.RemapEntity, "recC")
	assert.Equal(t, []string{cID}, store.relations[aID]["demo:relations"])

	kinds := diagKinds(diags.Items())
	assert.Contains(t, kinds, models.DiagEntityCreateFailure)
	assert.Contains(t, kinds, models.DiagRelationResolveFailure)
}

func TestMigrateReusesRecordsFromEarlierRuns(t *testing.T) {
	store := newMemStore()
	m, _ := newTestMigrator(t, store, testMigratorOptions())

	remap := models.NewIDRemap()
	remap.Put(models.RemapEntity, "recB", "existing-b")

	input := TableInput{Table: papersTable(), Records: []models.SourceRecord{
		paper("recA", "Alpha", "recB"),
		paper("recB", "Beta", "recA"),
	}}
	summaries, err := m.Migrate(context.Background(), []TableInput{input}, testCatalog(), remap)
	require.NoError(t, err)

	assert.Equal(t, 1, summaries[0].Created)
	assert.Equal(t, 1, summaries[0].Reused)
	require.Len(t, store.order, 1)

	aID, _ := remap.Get(models.RemapEntity, "recA")
	assert.Equal(t, []string{"existing-b"}, store.relations[aID]["demo:relations"])
	assert.Equal(t, []string{aID}, store.relations["existing-b"]["demo:relations"])
}

func TestMigrateConcurrentCreatesKeepSourceOrderTitles(t *testing.T) {
	store := newMemStore()
	opts := testMigratorOptions()
	opts.Concurrency = 4
	m, _ := newTestMigrator(t, store, opts)

	var records []models.SourceRecord
	for _, id := range []string{"r1", "r2", "r3", "r4", "r5", "r6"} {
		records = append(records, paper(id, "Paper "+id))
	}
	remap := models.NewIDRemap()
	summaries, err := m.Migrate(context.Background(), []TableInput{{Table: papersTable(), Records: records}}, testCatalog(), remap)
	require.NoError(t, err)
	assert.Equal(t, 6, summaries[0].Created)

	id, ok := remap.Get(models.RemapEntity, "r3")
	require.True(t, ok)
	assert.Equal(t, "Paper r3 [20260102_030405-3]", store.entities[id].Title)
}

func TestMigrateVerificationDrift(t *testing.T) {
	store := newMemStore()
	store.driftKey = "demo:title"
	opts := testMigratorOptions()
	opts.Verify = true
	m, diags := newTestMigrator(t, store, opts)

	input := TableInput{Table: papersTable(), Records: []models.SourceRecord{paper("recA", "Alpha")}}
	summaries, err := m.Migrate(context.Background(), []TableInput{input}, testCatalog(), models.NewIDRemap())
	require.NoError(t, err)
	assert.Equal(t, 1, summaries[0].Created)
	assert.Contains(t, diagKinds(diags.Items()), models.DiagVerificationDrift)
}

func TestMigrateSkipsTableWithoutType(t *testing.T) {
	store := newMemStore()
	m, diags := newTestMigrator(t, store, testMigratorOptions())

	input := TableInput{Table: papersTable(), Records: []models.SourceRecord{paper("recA", "Alpha"), paper("recB", "Beta")}}
	summaries, err := m.Migrate(context.Background(), []TableInput{input}, models.Catalog{}, models.NewIDRemap())
	require.NoError(t, err)

	assert.Equal(t, 2, summaries[0].Skipped)
	assert.Zero(t, store.writes)
	assert.Contains(t, diagKinds(diags.Items()), models.DiagConfigDependencyMissing)
}

func TestMigrateDefaultStage(t *testing.T) {
	store := newMemStore()
	opts := testMigratorOptions()
	opts.DefaultStage = "published"
	m, _ := newTestMigrator(t, store, opts)

	input := TableInput{Table: papersTable(), Records: []models.SourceRecord{paper("recA", "Alpha")}}
	_, err := m.Migrate(context.Background(), []TableInput{input}, testCatalog(), models.NewIDRemap())
	require.NoError(t, err)
	assert.Equal(t, "stage-published", store.entities[store.order[0]].StageID)
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello World", "hello-world"},
		{"Ünïcode & Co. [x-1]", "ncode--co-x-1"},
		{"already-a-slug", "already-a-slug"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), tt.in)
	}
}

package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lyzr/pubmigrate/cmd/migrator/coerce"
	"github.com/lyzr/pubmigrate/cmd/migrator/mapping"
	"github.com/lyzr/pubmigrate/cmd/migrator/relations"
	"github.com/lyzr/pubmigrate/common/logger"
	"github.com/lyzr/pubmigrate/common/models"
)

const (
	titleSlug       = "title"
	descriptionSlug = "description"
)

// MigratorOptions shapes record migration
type MigratorOptions struct {
	// CommunitySlug prefixes every value and relation key ("<slug>:title")
	CommunitySlug  string
	TitleFallbacks []string
	DefaultStage   string
	// RelationSlugs are the target slugs whose values are record links
	RelationSlugs []string
	Concurrency   int
	Verify        bool
	Now           func() time.Time
}

// TableInput is one source table with the records to migrate
type TableInput struct {
	Table   models.TableDescriptor
	Records []models.SourceRecord
}

// EntityMigrator migrates records in two passes: every record is created
// first, then relations are resolved through the id remap and written.
type EntityMigrator struct {
	store    EntityStore
	mapper   *mapping.Mapper
	types    *mapping.TypeResolver
	verifier *Verifier
	diags    *Diagnostics
	log      *logger.Logger
	opts     MigratorOptions

	relationSlugs map[string]bool
}

// NewEntityMigrator creates a migrator writing to store
func NewEntityMigrator(store EntityStore, mapper *mapping.Mapper, types *mapping.TypeResolver, diags *Diagnostics, log *logger.Logger, opts MigratorOptions) *EntityMigrator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if len(opts.RelationSlugs) == 0 {
		opts.RelationSlugs = []string{"relations"}
	}

	m := &EntityMigrator{
		store:         store,
		mapper:        mapper,
		types:         types,
		diags:         diags,
		log:           log,
		opts:          opts,
		relationSlugs: make(map[string]bool, len(opts.RelationSlugs)),
	}
	for _, s := range opts.RelationSlugs {
		m.relationSlugs[s] = true
	}
	if opts.Verify {
		m.verifier = NewVerifier(store)
	}
	return m
}

type pendingCreate struct {
	recordID string
	draft    models.EntityDraft
}

type createOutcome struct {
	created bool
	reused  bool
}

// Migrate creates every record of every table, waits for all creates to
// finish, then applies relations. Records whose source id is already bound
// in remap are not created again but still get their relations written.
func (m *EntityMigrator) Migrate(ctx context.Context, inputs []TableInput, catalog models.Catalog, remap *models.IDRemap) ([]models.TableSummary, error) {
	queue := relations.NewQueue()
	stamper := newTitleStamper(m.opts.Now())
	stageID := m.resolveStage(catalog.Stages)

	summaries := make([]models.TableSummary, 0, len(inputs))
	tableIndex := make(map[string]int, len(inputs))

	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return summaries, err
		}

		summary, err := m.migrateTable(ctx, in, catalog, stageID, stamper, queue, remap)
		tableIndex[in.Table.Name] = len(summaries)
		summaries = append(summaries, summary)
		if err != nil {
			return summaries, err
		}
	}

	// Creation barrier: every create above has returned
	m.log.Info("all records created, resolving relations", "pending", queue.Len())
	if err := m.link(ctx, queue, remap, summaries, tableIndex); err != nil {
		return summaries, err
	}
	return summaries, nil
}

func (m *EntityMigrator) migrateTable(
	ctx context.Context,
	in TableInput,
	catalog models.Catalog,
	stageID string,
	stamper *titleStamper,
	queue *relations.Queue,
	remap *models.IDRemap,
) (models.TableSummary, error) {
	log := m.log.WithTable(in.Table.Name)
	summary := models.TableSummary{Table: in.Table.Name, Records: len(in.Records)}

	tm := m.mapper.ForTable(ctx, in.Table)
	m.diags.AddAll(tm.Diagnostics)
	summary.Mappings = tm.Mappings
	for _, f := range tm.Unmapped {
		summary.Unmapped = append(summary.Unmapped, f.Name)
	}

	entityType, ok := m.types.Resolve(in.Table.Name, catalog.Types)
	if !ok {
		summary.Skipped = len(in.Records)
		m.diags.Add(models.Diagnostic{
			Kind:    models.DiagConfigDependencyMissing,
			Table:   in.Table.Name,
			Message: "no target entity type available; table skipped",
		})
		return summary, nil
	}
	summary.EntityTypeID = entityType.ID

	// Transform in source order so titles and discriminators are stable
	creates := make([]pendingCreate, 0, len(in.Records))
	for _, rec := range in.Records {
		draft, rels := m.transform(in.Table, tm, rec, stamper)
		draft.TypeID = entityType.ID
		draft.StageID = stageID
		for _, rel := range rels {
			queue.Defer(rel)
		}
		creates = append(creates, pendingCreate{recordID: rec.ID, draft: draft})
	}

	outcomes := make([]createOutcome, len(creates))
	var g errgroup.Group
	g.SetLimit(m.opts.Concurrency)
	for i := range creates {
		i := i
		g.Go(func() error {
			outcomes[i] = m.create(ctx, in.Table.Name, creates[i], remap)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		switch {
		case o.reused:
			summary.Reused++
		case o.created:
			summary.Created++
		default:
			summary.Failed++
		}
	}

	log.Info("table migrated",
		"records", summary.Records,
		"created", summary.Created,
		"reused", summary.Reused,
		"failed", summary.Failed,
	)
	return summary, ctx.Err()
}

func (m *EntityMigrator) create(ctx context.Context, table string, pc pendingCreate, remap *models.IDRemap) createOutcome {
	if existing, ok := remap.Get(models.RemapEntity, pc.recordID); ok {
		m.log.Debug("record already migrated", "table", table, "record_id", pc.recordID, "entity_id", existing)
		return createOutcome{reused: true}
	}

	id, err := m.store.CreateEntity(ctx, pc.draft)
	if err != nil {
		m.diags.Add(models.Diagnostic{
			Kind:     models.DiagEntityCreateFailure,
			Table:    table,
			RecordID: pc.recordID,
			Message:  err.Error(),
		})
		return createOutcome{}
	}
	remap.Put(models.RemapEntity, pc.recordID, id)

	if m.verifier != nil {
		drift, err := m.verifier.Verify(ctx, id, pc.draft)
		switch {
		case err != nil:
			m.diags.Add(models.Diagnostic{Kind: models.DiagVerificationDrift, Table: table, RecordID: pc.recordID, Message: err.Error()})
		case drift != "":
			m.diags.Add(models.Diagnostic{Kind: models.DiagVerificationDrift, Table: table, RecordID: pc.recordID, Message: "stored values differ: " + drift})
		}
	}
	return createOutcome{created: true}
}

// transform builds the create payload of one record and its relation intents
func (m *EntityMigrator) transform(table models.TableDescriptor, tm *mapping.TableMapping, rec models.SourceRecord, stamper *titleStamper) (models.EntityDraft, []models.PendingRelation) {
	values := make(map[string]any)
	ranks := make(map[string]int)
	var rels []models.PendingRelation

	for _, f := range table.Fields {
		raw, present := rec.Values[f.ID]
		if !present || raw == nil {
			continue
		}
		fm, ok := tm.Lookup(f.ID)
		if !ok {
			continue
		}

		res := coerce.Coerce(raw, f.Type)
		if res.Problem != "" {
			m.diags.Add(models.Diagnostic{
				Kind:     models.DiagCoercionFailure,
				Table:    table.Name,
				RecordID: rec.ID,
				Field:    f.Name,
				Message:  res.Problem,
			})
		}

		if res.IsLink || m.relationSlugs[fm.TargetSlug] {
			ids := res.Links
			if !res.IsLink {
				ids = linkIDs(res.Value)
			}
			rels = append(rels, models.PendingRelation{
				OwnerID:    rec.ID,
				Slug:       m.key(fm.TargetSlug),
				RelatedIDs: ids,
				Table:      table.Name,
			})
			continue
		}

		if res.Value == nil {
			continue
		}

		// Higher confidence wins a shared slug; ties keep the earlier field
		key := m.key(fm.TargetSlug)
		if prev, taken := ranks[key]; taken && prev >= fm.Confidence.Rank() {
			continue
		}
		values[key] = res.Value
		ranks[key] = fm.Confidence.Rank()
	}

	title := stamper.next(m.baseTitle(table, rec, values))
	values[m.key(titleSlug)] = title

	descKey := m.key(descriptionSlug)
	description, ok := values[descKey].(string)
	if !ok || description == "" {
		description = synthesizeDescription(table, rec)
		values[descKey] = description
	}

	return models.EntityDraft{
		Title:       title,
		Slug:        Slugify(title),
		Description: description,
		Values:      values,
	}, rels
}

// baseTitle picks the mapped title, then the first non-empty fallback
// column, then "<table> Record <id>"
func (m *EntityMigrator) baseTitle(table models.TableDescriptor, rec models.SourceRecord, values map[string]any) string {
	if v, ok := values[m.key(titleSlug)]; ok {
		if s := strings.TrimSpace(coerce.Text(v)); s != "" {
			return s
		}
	}

	for _, name := range m.opts.TitleFallbacks {
		for _, f := range table.Fields {
			if f.Name != name {
				continue
			}
			if raw, ok := rec.Values[f.ID]; ok && raw != nil {
				if s := strings.TrimSpace(coerce.Text(raw)); s != "" {
					return s
				}
			}
		}
	}

	return fmt.Sprintf("%s Record %s", table.Name, rec.ID)
}

func synthesizeDescription(table models.TableDescriptor, rec models.SourceRecord) string {
	parts := []string{"Record from " + table.Name}
	for _, f := range table.Fields {
		if len(parts) > maxDescriptionParts {
			break
		}
		raw, ok := rec.Values[f.ID]
		if !ok || raw == nil {
			continue
		}
		s := fmt.Sprint(raw)
		if s == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", f.Name, s))
	}
	return strings.Join(parts, " | ")
}

func linkIDs(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{fmt.Sprint(t)}
	}
}

func (m *EntityMigrator) key(slug string) string {
	if m.opts.CommunitySlug == "" {
		return slug
	}
	return m.opts.CommunitySlug + ":" + slug
}

func (m *EntityMigrator) resolveStage(stages []models.Stage) string {
	if m.opts.DefaultStage != "" {
		for _, s := range stages {
			if strings.EqualFold(s.Name, m.opts.DefaultStage) {
				return s.ID
			}
		}
	}
	if len(stages) > 0 {
		return stages[0].ID
	}
	return ""
}

// link is the second pass: resolve every deferred relation and write one
// update per entity
func (m *EntityMigrator) link(ctx context.Context, queue *relations.Queue, remap *models.IDRemap, summaries []models.TableSummary, tableIndex map[string]int) error {
	res := relations.Resolve(queue.Drain(), remap, models.RemapEntity, models.RemapEntity)

	var mu sync.Mutex
	bump := func(table string, fn func(*models.TableSummary)) {
		mu.Lock()
		defer mu.Unlock()
		if i, ok := tableIndex[table]; ok {
			fn(&summaries[i])
		}
	}

	for _, d := range res.Dropped {
		m.diags.Add(models.Diagnostic{
			Kind:     models.DiagRelationResolveFailure,
			Table:    d.Table,
			RecordID: d.OwnerSourceID,
			Field:    d.Slug,
			Message:  fmt.Sprintf("relation to %s dropped: %s", d.RelatedSourceID, d.Reason),
		})
		bump(d.Table, func(s *models.TableSummary) { s.EdgesDropped++ })
	}

	var g errgroup.Group
	g.SetLimit(m.opts.Concurrency)
	for _, u := range res.Updates {
		u := u
		g.Go(func() error {
			if err := m.store.UpdateRelations(ctx, u.OwnerTargetID, u.Targets); err != nil {
				m.diags.Add(models.Diagnostic{
					Kind:     models.DiagRelationUpdateFailure,
					Table:    u.Table,
					RecordID: u.OwnerSourceID,
					Message:  err.Error(),
				})
				bump(u.Table, func(s *models.TableSummary) { s.RelationsFailed++ })
				return nil
			}
			bump(u.Table, func(s *models.TableSummary) { s.RelationsApplied++ })
			return nil
		})
	}
	_ = g.Wait()

	return ctx.Err()
}

package mapping

import (
	"context"
	"sync"

	"github.com/lyzr/pubmigrate/common/models"
)

// TableMapping is the decided mapping of one source table
type TableMapping struct {
	Table       string
	Mappings    []models.FieldMapping
	Unmapped    []models.FieldDescriptor
	Diagnostics []models.Diagnostic

	byField map[string]models.FieldMapping
}

// Lookup returns the mapping of a source field id
func (tm *TableMapping) Lookup(fieldID string) (models.FieldMapping, bool) {
	m, ok := tm.byField[fieldID]
	return m, ok
}

// Mapper decides each field's mapping once per run, consulting the cache
// before the suggester
type Mapper struct {
	suggester *Suggester
	cache     *MappingCache

	mu      sync.Mutex
	decided map[string]*TableMapping
}

// NewMapper creates a mapper. cache may be nil.
func NewMapper(suggester *Suggester, cache *MappingCache) *Mapper {
	return &Mapper{
		suggester: suggester,
		cache:     cache,
		decided:   make(map[string]*TableMapping),
	}
}

// ForTable returns the mapping of a table, computing it on first use.
// A cached entry is kept unless a fresh suggestion ranks strictly higher.
func (m *Mapper) ForTable(ctx context.Context, table models.TableDescriptor) *TableMapping {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tm, ok := m.decided[table.Name]; ok {
		return tm
	}

	tm := &TableMapping{
		Table:   table.Name,
		byField: make(map[string]models.FieldMapping, len(table.Fields)),
	}

	cached, err := m.cache.Load(ctx, table.Name)
	if err != nil {
		tm.Diagnostics = append(tm.Diagnostics, models.Diagnostic{
			Kind:    models.DiagCacheFailure,
			Table:   table.Name,
			Message: err.Error(),
		})
	}

	toCache := make(map[string]Suggestion, len(table.Fields))
	for _, f := range table.Fields {
		chosen, ok := cached[f.ID]
		if fresh, found := m.suggester.Suggest(f.Name, f.Type); found {
			if !ok || fresh.Confidence.Rank() > chosen.Confidence.Rank() {
				chosen, ok = fresh, true
			}
		}

		if !ok {
			tm.Unmapped = append(tm.Unmapped, f)
			tm.Diagnostics = append(tm.Diagnostics, models.Diagnostic{
				Kind:    models.DiagMappingAmbiguous,
				Table:   table.Name,
				Field:   f.Name,
				Message: "no mapping rule or type fallback applies; field dropped",
			})
			continue
		}

		fm := models.FieldMapping{
			FieldID:    f.ID,
			FieldName:  f.Name,
			FieldType:  f.Type,
			TargetSlug: chosen.TargetSlug,
			Confidence: chosen.Confidence,
		}
		tm.Mappings = append(tm.Mappings, fm)
		tm.byField[f.ID] = fm
		toCache[f.ID] = chosen
	}

	if err := m.cache.Store(ctx, table.Name, toCache); err != nil {
		tm.Diagnostics = append(tm.Diagnostics, models.Diagnostic{
			Kind:    models.DiagCacheFailure,
			Table:   table.Name,
			Message: err.Error(),
		})
	}

	m.decided[table.Name] = tm
	return tm
}

package mapping

import (
	"regexp"
	"strings"

	"github.com/lyzr/pubmigrate/common/models"
)

// TypeResolver picks the target entity type for a source table
type TypeResolver struct {
	explicit map[string]string
	rules    []TableTypeRule
}

// NewTypeResolver builds a resolver. explicit maps table names to type names
// and wins over rules.
func NewTypeResolver(explicit map[string]string, rules []TableTypeRule) *TypeResolver {
	return &TypeResolver{explicit: explicit, rules: rules}
}

// Resolve returns the type for table among types. It falls back to the first
// type and fails only when there are no types.
func (r *TypeResolver) Resolve(table string, types []models.EntityType) (models.EntityType, bool) {
	if len(types) == 0 {
		return models.EntityType{}, false
	}

	if name, ok := r.explicit[table]; ok {
		if t, found := typeByName(types, name); found {
			return t, true
		}
	}

	lower := strings.ToLower(table)
	for _, rule := range r.rules {
		for _, p := range rule.Patterns {
			if matched, err := regexp.MatchString(p, lower); err != nil || !matched {
				continue
			}
			if t, found := typeByName(types, rule.TypeName); found {
				return t, true
			}
		}
	}

	return types[0], true
}

func typeByName(types []models.EntityType, name string) (models.EntityType, bool) {
	for _, t := range types {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return models.EntityType{}, false
}

package mapping

import "github.com/lyzr/pubmigrate/common/models"

// MappingRule maps source field names matching any of Patterns to TargetSlug.
// Patterns are regular expressions searched in the lowercased field name.
// Confidence caps what the rule can yield. Guard, when set, is a CEL
// expression over `field.name` and `field.type` that must hold.
type MappingRule struct {
	TargetSlug string            `json:"targetFieldSlug"`
	Patterns   []string          `json:"namePatterns"`
	Confidence models.Confidence `json:"confidence"`
	Guard      string            `json:"guard,omitempty"`
}

// TypeFallback maps a source field type to a target slug when no name rule matched
type TypeFallback struct {
	Type       models.FieldType `json:"fieldType"`
	TargetSlug string           `json:"targetFieldSlug"`
}

// TableTypeRule assigns tables whose lowercased name matches one of Patterns
// to the target entity type named TypeName
type TableTypeRule struct {
	TypeName string   `json:"typeName"`
	Patterns []string `json:"patterns"`
}

// DefaultRules is the stock rule table. Order is priority: the first rule
// with a matching pattern wins.
func DefaultRules() []MappingRule {
	return []MappingRule{
		{TargetSlug: "title", Patterns: []string{"title", "name", "heading", "subject"}, Confidence: models.ConfidenceHigh},
		{TargetSlug: "description", Patterns: []string{"description", "abstract", "summary", "notes"}, Confidence: models.ConfidenceHigh},
		{TargetSlug: "pubTypeId", Patterns: []string{"type", "category", "kind"}, Confidence: models.ConfidenceHigh},
		{TargetSlug: "relations", Patterns: []string{"related", "link", "reference", "parent", "child"}, Confidence: models.ConfidenceHigh},
		{TargetSlug: "status", Patterns: []string{"status", "state", "phase"}, Confidence: models.ConfidenceHigh},
		{TargetSlug: "assignee", Patterns: []string{"assignee", "owner", "responsible"}, Confidence: models.ConfidenceHigh},
		{TargetSlug: "author", Patterns: []string{"author", "creator", "contributor"}, Confidence: models.ConfidenceHigh},
		{TargetSlug: "email", Patterns: []string{"email", "contact", "mail"}, Confidence: models.ConfidenceHigh},
		{TargetSlug: "url", Patterns: []string{"url", "link", "website"}, Confidence: models.ConfidenceHigh},
		{TargetSlug: "date", Patterns: []string{"date", "created", "updated", "timestamp"}, Confidence: models.ConfidenceHigh},
	}
}

// DefaultTypeFallbacks is the stock type fallback table
func DefaultTypeFallbacks() []TypeFallback {
	return []TypeFallback{
		{Type: models.FieldLink, TargetSlug: "relations"},
		{Type: models.FieldURL, TargetSlug: "url"},
		{Type: models.FieldEmail, TargetSlug: "email"},
	}
}

// DefaultTableTypeRules is the stock table name -> entity type table
func DefaultTableTypeRules() []TableTypeRule {
	return []TableTypeRule{
		{TypeName: "preprint", Patterns: []string{"preprint", "article", "manuscript", "paper", "publication"}},
		{TypeName: "review", Patterns: []string{"review", "referee", "evaluation", "assessment"}},
	}
}

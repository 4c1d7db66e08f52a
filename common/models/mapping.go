package models

// Confidence ranks how sure a suggested mapping is
type Confidence string

const (
	ConfidenceNone   Confidence = ""
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Rank orders confidences so that higher is better
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

// FieldMapping binds a source field to a target field slug
type FieldMapping struct {
	FieldID    string     `json:"fieldId"`
	FieldName  string     `json:"fieldName"`
	FieldType  FieldType  `json:"fieldType"`
	TargetSlug string     `json:"targetFieldSlug"`
	Confidence Confidence `json:"confidence"`
}

// PendingRelation is a relation intent captured during transform and
// resolved after the creation barrier. RelatedIDs are source-side ids and
// may contain duplicates.
type PendingRelation struct {
	OwnerID    string   `json:"sourceEntityId"`
	Slug       string   `json:"targetFieldSlug"`
	RelatedIDs []string `json:"relatedSourceIds"`
	Table      string   `json:"table,omitempty"`
}

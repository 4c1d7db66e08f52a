package models

// EntityType is a target entity type (pub type)
type EntityType struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

// Stage is a target workflow stage. MoveConstraints holds the ids of the
// stages an entity may move to from this one.
type Stage struct {
	ID              string   `json:"id,omitempty"`
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	Color           string   `json:"color,omitempty"`
	MoveConstraints []string `json:"moveConstraints,omitempty"`
}

// FieldDef is a target field definition. EntityTypeID is empty for
// community-level fields.
type FieldDef struct {
	ID           string   `json:"id,omitempty"`
	Name         string   `json:"name"`
	Slug         string   `json:"slug,omitempty"`
	Description  string   `json:"description,omitempty"`
	Required     bool     `json:"required,omitempty"`
	Type         string   `json:"type,omitempty"`
	EntityTypeID string   `json:"pubType,omitempty"`
	Options      []string `json:"options,omitempty"`
}

// HasOptions reports whether the field type carries a fixed option list
func (f FieldDef) HasOptions() bool {
	return f.Type == "select" || f.Type == "multi-select"
}

// EntityDraft is the payload of a create-entity call
type EntityDraft struct {
	TypeID      string         `json:"pubTypeId"`
	StageID     string         `json:"stageId,omitempty"`
	Title       string         `json:"title"`
	Slug        string         `json:"slug"`
	Description string         `json:"description,omitempty"`
	Values      map[string]any `json:"values"`
}

// Entity is a stored target entity as read back from the store
type Entity struct {
	ID      string         `json:"id"`
	TypeID  string         `json:"pubTypeId,omitempty"`
	StageID string         `json:"stageId,omitempty"`
	Title   string         `json:"title,omitempty"`
	Slug    string         `json:"slug,omitempty"`
	Values  map[string]any `json:"values"`
}

// Catalog lists the target types and stages records can be assigned to
type Catalog struct {
	Types  []EntityType `json:"types"`
	Stages []Stage      `json:"stages"`
}

package models

// FieldType is the declared type of a source column
type FieldType string

const (
	FieldSingleLineText FieldType = "singleLineText"
	FieldSingleSelect   FieldType = "singleSelect"
	FieldMultiSelect    FieldType = "multipleSelects"
	FieldDate           FieldType = "date"
	FieldDateTime       FieldType = "dateTime"
	FieldLongText       FieldType = "multilineText"
	FieldRichText       FieldType = "richText"
	FieldCheckbox       FieldType = "checkbox"
	FieldNumber         FieldType = "number"
	FieldFormula        FieldType = "formula"
	FieldLink           FieldType = "multipleRecordLinks"
	FieldLookup         FieldType = "multipleLookupValues"
	FieldURL            FieldType = "url"
	FieldEmail          FieldType = "email"
)

// FieldDescriptor describes one column of a source table
type FieldDescriptor struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Type FieldType `json:"type"`
}

// TableDescriptor describes one source table and its columns in declaration order
type TableDescriptor struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Fields []FieldDescriptor `json:"fields"`
}

// Field returns the descriptor with the given id
func (t TableDescriptor) Field(id string) (FieldDescriptor, bool) {
	for _, f := range t.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

// SourceRecord is one row of a source table. Values are keyed by field id;
// a missing key means the cell is empty.
type SourceRecord struct {
	ID     string         `json:"id"`
	Values map[string]any `json:"fields"`
}

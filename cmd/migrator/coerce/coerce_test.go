package coerce

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lyzr/pubmigrate/common/models"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		name      string
		raw       any
		fieldType models.FieldType
		want      any
		problem   bool
	}{
		{"single select string", "Accepted", models.FieldSingleSelect, "Accepted", false},
		{"single select number", 3.0, models.FieldSingleSelect, "3", false},
		{"multi select list", []any{"a", 2.5}, models.FieldMultiSelect, []string{"a", "2.5"}, false},
		{"multi select scalar", "a", models.FieldMultiSelect, []string{"a"}, false},
		{"date", "2022-02-10", models.FieldDate, "2022-02-10", false},
		{"date unparseable passes through", "Feb 10", models.FieldDate, "Feb 10", true},
		{"date time zulu", "2024-01-02T03:04:05.000Z", models.FieldDateTime, "2024-01-02T03:04:05+00:00", false},
		{"date time offset", "2024-01-02T03:04:05+02:00", models.FieldDateTime, "2024-01-02T03:04:05+02:00", false},
		{"date time naive", "2024-01-02T03:04:05", models.FieldDateTime, "2024-01-02T03:04:05", false},
		{"date time garbage", "soon", models.FieldDateTime, "soon", true},
		{"long text number", 12.0, models.FieldLongText, "12", false},
		{"checkbox true", true, models.FieldCheckbox, true, false},
		{"checkbox string false", "false", models.FieldCheckbox, false, false},
		{"checkbox text", "x", models.FieldCheckbox, true, false},
		{"number string", " 4.5 ", models.FieldNumber, 4.5, false},
		{"number int", 7, models.FieldNumber, 7.0, false},
		{"number garbage dropped", "n/a", models.FieldNumber, nil, true},
		{"number nan dropped", "NaN", models.FieldNumber, nil, true},
		{"formula number", 2.0, models.FieldFormula, 2.0, false},
		{"formula bool", true, models.FieldFormula, true, false},
		{"formula list", []any{"a", "b"}, models.FieldFormula, "a, b", false},
		{"lookup list", []any{"x"}, models.FieldLookup, []any{"x"}, false},
		{"lookup scalar", "x", models.FieldLookup, []any{"x"}, false},
		{"lookup empty", "", models.FieldLookup, []any{}, false},
		{"lookup zero string", "0", models.FieldLookup, []any{"0"}, false},
		{"lookup false string", "false", models.FieldLookup, []any{"false"}, false},
		{"lookup zero number", 0.0, models.FieldLookup, []any{}, false},
		{"lookup false bool", false, models.FieldLookup, []any{}, false},
		{"url", "https://example.org", models.FieldURL, "https://example.org", false},
		{"email", "a@example.org", models.FieldEmail, "a@example.org", false},
		{"unknown passthrough", map[string]any{"k": 1.0}, models.FieldType("barcode"), map[string]any{"k": 1.0}, false},
		{"nil omitted", nil, models.FieldNumber, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Coerce(tt.raw, tt.fieldType)
			assert.Equal(t, tt.want, got.Value)
			assert.Equal(t, tt.problem, got.Problem != "", got.Problem)
			assert.False(t, got.IsLink)
		})
	}
}

func TestCoerceLinks(t *testing.T) {
	got := Coerce([]any{"recA", "recB", "recA"}, models.FieldLink)
	assert.True(t, got.IsLink)
	assert.Nil(t, got.Value, "link ids are never written as values")
	assert.Equal(t, []string{"recA", "recB", "recA"}, got.Links)

	got = Coerce("recA", models.FieldLink)
	assert.Equal(t, []string{"recA"}, got.Links)

	got = Coerce("", models.FieldLink)
	assert.Empty(t, got.Links)
}

func TestCoerceRichText(t *testing.T) {
	got := Coerce("**bold** text", models.FieldRichText)
	assert.Equal(t, "**bold** text", got.Value)
	assert.False(t, got.Lossy)

	var doc any
	err := json.Unmarshal([]byte(`{"type":"doc","content":[
		{"type":"paragraph","content":[{"type":"text","text":"Hello "},{"type":"text","text":"world"}]},
		{"type":"paragraph","content":[{"type":"text","text":"Second"}]}
	]}`), &doc)
	assert.NoError(t, err)

	got = Coerce(doc, models.FieldRichText)
	assert.Equal(t, "Hello world\nSecond", got.Value)
	assert.True(t, got.Lossy)

	got = Coerce(map[string]any{"type": "doc"}, models.FieldRichText)
	assert.Equal(t, `{"type":"doc"}`, got.Value)
}

func TestCoerceIsIdempotentForScalars(t *testing.T) {
	inputs := []struct {
		raw       any
		fieldType models.FieldType
	}{
		{"Accepted", models.FieldSingleSelect},
		{"2022-02-10", models.FieldDate},
		{"2024-01-02T03:04:05Z", models.FieldDateTime},
		{"notes", models.FieldLongText},
		{"x", models.FieldRichText},
		{true, models.FieldCheckbox},
		{"yes", models.FieldCheckbox},
		{"=SUM", models.FieldFormula},
		{"https://example.org", models.FieldURL},
		{"a@example.org", models.FieldEmail},
	}

	for _, in := range inputs {
		once := Coerce(in.raw, in.fieldType).Value
		twice := Coerce(once, in.fieldType).Value
		assert.Equal(t, once, twice, "%v as %s", in.raw, in.fieldType)
	}
}

func TestCoerceNeverPanics(t *testing.T) {
	weird := []any{
		struct{}{},
		make(chan int),
		[]any{nil, map[string]any{}, []any{}},
		map[string]any{"f": func() {}},
		json.Number("abc"),
	}
	types := []models.FieldType{
		models.FieldSingleSelect, models.FieldMultiSelect, models.FieldDate, models.FieldDateTime,
		models.FieldLongText, models.FieldRichText, models.FieldCheckbox, models.FieldNumber,
		models.FieldFormula, models.FieldLink, models.FieldLookup, models.FieldURL, models.FieldEmail,
	}

	for _, v := range weird {
		for _, ft := range types {
			assert.NotPanics(t, func() { Coerce(v, ft) })
		}
	}
}

func TestText(t *testing.T) {
	assert.Equal(t, "Alpha, Beta", Text([]any{"Alpha", "Beta"}))
	assert.Equal(t, "Alpha, Beta", Text([]string{"Alpha", "Beta"}))
	assert.Equal(t, "4.5", Text(4.5))
	assert.Equal(t, "", Text(nil))
}

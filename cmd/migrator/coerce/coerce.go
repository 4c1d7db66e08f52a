package coerce

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lyzr/pubmigrate/common/models"
)

const (
	dateLayout          = "2006-01-02"
	dateTimeLayout      = "2006-01-02T15:04:05.999999999-07:00"
	naiveDateTimeLayout = "2006-01-02T15:04:05.999999999"
)

// Result is the coerced form of one source cell.
// A nil Value means the field is omitted. Links is set for link fields,
// whose ids are never written as values. Problem is non-empty when the
// input could not be coerced as its type demands.
type Result struct {
	Value   any
	Links   []string
	IsLink  bool
	Lossy   bool
	Problem string
}

// Coerce normalizes a raw source value according to its declared type.
// It never panics.
func Coerce(raw any, fieldType models.FieldType) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Value: raw, Problem: fmt.Sprintf("coercion panicked: %v", r)}
		}
	}()

	if fieldType == models.FieldLink {
		res.IsLink = true
	}
	if raw == nil {
		return res
	}

	switch fieldType {
	case models.FieldSingleSelect, models.FieldURL, models.FieldEmail, models.FieldLongText:
		res.Value = stringify(raw)

	case models.FieldMultiSelect:
		res.Value = stringList(raw)

	case models.FieldDate:
		res.Value, res.Problem = coerceDate(raw)

	case models.FieldDateTime:
		res.Value, res.Problem = coerceDateTime(raw)

	case models.FieldRichText:
		res.Value, res.Lossy = richText(raw)

	case models.FieldCheckbox:
		res.Value = truthy(raw)

	case models.FieldNumber:
		res.Value, res.Problem = coerceNumber(raw)

	case models.FieldFormula:
		switch v := raw.(type) {
		case float64, float32, int, int64, int32, bool:
			res.Value = v
		case json.Number:
			if f, err := v.Float64(); err == nil {
				res.Value = f
			} else {
				res.Value = v.String()
			}
		default:
			res.Value = stringify(raw)
		}

	case models.FieldLink:
		ids := stringList(raw)
		if s, scalar := raw.(string); scalar && s == "" {
			ids = []string{}
		}
		res.Links = ids

	case models.FieldLookup:
		switch v := raw.(type) {
		case []any:
			res.Value = v
		default:
			if !blank(raw) {
				res.Value = []any{raw}
			} else {
				res.Value = []any{}
			}
		}

	default:
		res.Value = raw
	}

	return res
}

func coerceDate(raw any) (any, string) {
	s, ok := raw.(string)
	if !ok {
		return raw, fmt.Sprintf("date value is %T, not a string", raw)
	}
	d, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return raw, fmt.Sprintf("unparseable date %q", s)
	}
	return d.Format(dateLayout), ""
}

func coerceDateTime(raw any) (any, string) {
	s, ok := raw.(string)
	if !ok {
		return raw, ""
	}
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z") + "+00:00"
	}

	if t, err := time.Parse(dateTimeLayout, s); err == nil {
		return t.Format(dateTimeLayout), ""
	}
	if t, err := time.Parse(naiveDateTimeLayout, s); err == nil {
		return t.Format(naiveDateTimeLayout), ""
	}
	return raw, fmt.Sprintf("unparseable date-time %q", raw)
}

func coerceNumber(raw any) (any, string) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case int32:
		f = float64(v)
	case bool:
		if v {
			f = 1
		}
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil, fmt.Sprintf("non-numeric value %q", v.String())
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Sprintf("non-numeric value %q", v)
		}
		f = parsed
	default:
		return nil, fmt.Sprintf("non-numeric value of type %T", raw)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Sprintf("non-finite number %v", f)
	}
	return f, ""
}

// Text renders a raw or coerced value as plain text. Lists are joined with ", ".
func Text(v any) string {
	return stringify(v)
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, stringify(e))
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(t, ", ")
	case map[string]any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

func stringList(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, stringify(e))
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return []string{stringify(v)}
	}
}

// blank reports whether a lookup scalar carries nothing: nil, "", zero or false.
// Strings are never parsed, so "0" and "false" are values.
func blank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	case int:
		return t == 0
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == 0
	default:
		return false
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			return b
		}
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

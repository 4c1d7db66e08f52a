package coerce

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// richText projects a rich text cell to plain text. Markdown strings pass
// through; structured documents keep only their text leaves.
func richText(raw any) (string, bool) {
	if s, ok := raw.(string); ok {
		return s, false
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return stringify(raw), true
	}

	text := plainText(gjson.ParseBytes(b))
	if text == "" {
		return string(b), true
	}
	return text, true
}

// plainText collects text leaves depth first. Siblings that are blocks
// (carry their own content) are separated by newlines, inline runs are
// concatenated.
func plainText(r gjson.Result) string {
	switch {
	case r.Type == gjson.String:
		return r.String()
	case r.IsObject():
		if t := r.Get("text"); t.Type == gjson.String {
			return t.String()
		}
		for _, key := range []string{"content", "children"} {
			if c := r.Get(key); c.IsArray() {
				return plainText(c)
			}
		}
		return ""
	case r.IsArray():
		var parts []string
		block := false
		r.ForEach(func(_, v gjson.Result) bool {
			if v.IsObject() && (v.Get("content").IsArray() || v.Get("children").IsArray()) {
				block = true
			}
			if s := plainText(v); s != "" {
				parts = append(parts, s)
			}
			return true
		})
		sep := ""
		if block {
			sep = "\n"
		}
		return strings.Join(parts, sep)
	default:
		return ""
	}
}

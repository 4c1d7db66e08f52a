package mapping

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lyzr/pubmigrate/common/models"
)

// Suggestion is a proposed target slug for a source field
type Suggestion struct {
	TargetSlug string
	Confidence models.Confidence
}

type compiledPattern struct {
	raw string
	re  *regexp.Regexp
}

type compiledRule struct {
	slug       string
	patterns   []compiledPattern
	confidence models.Confidence
	guard      *guard
}

// Suggester proposes field mappings from an ordered rule table and a type
// fallback table. It holds no mutable state once built.
type Suggester struct {
	rules     []compiledRule
	fallbacks map[models.FieldType]string
}

// NewSuggester compiles the rule tables
func NewSuggester(rules []MappingRule, fallbacks []TypeFallback) (*Suggester, error) {
	env, err := newGuardEnv()
	if err != nil {
		return nil, err
	}

	s := &Suggester{
		rules:     make([]compiledRule, 0, len(rules)),
		fallbacks: make(map[models.FieldType]string, len(fallbacks)),
	}

	for i, r := range rules {
		if r.TargetSlug == "" {
			return nil, fmt.Errorf("rule %d has no target slug", i)
		}
		cr := compiledRule{slug: r.TargetSlug, confidence: r.Confidence}
		if cr.confidence == models.ConfidenceNone {
			cr.confidence = models.ConfidenceHigh
		}
		for _, p := range r.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("rule %q: invalid pattern %q: %w", r.TargetSlug, p, err)
			}
			cr.patterns = append(cr.patterns, compiledPattern{raw: p, re: re})
		}
		if r.Guard != "" {
			g, err := compileGuard(env, r.Guard)
			if err != nil {
				return nil, fmt.Errorf("rule %q: %w", r.TargetSlug, err)
			}
			cr.guard = g
		}
		s.rules = append(s.rules, cr)
	}

	for _, fb := range fallbacks {
		if _, dup := s.fallbacks[fb.Type]; !dup {
			s.fallbacks[fb.Type] = fb.TargetSlug
		}
	}

	return s, nil
}

// Suggest returns the mapping for a field, or false when nothing applies.
// Name rules are tried in declaration order before the type fallback.
func (s *Suggester) Suggest(name string, fieldType models.FieldType) (Suggestion, bool) {
	lower := strings.ToLower(name)

	for _, r := range s.rules {
		for _, p := range r.patterns {
			if !p.re.MatchString(lower) {
				continue
			}
			if r.guard != nil && !r.guard.allows(name, fieldType) {
				break
			}
			conf := models.ConfidenceMedium
			if p.raw == lower && r.confidence == models.ConfidenceHigh {
				conf = models.ConfidenceHigh
			}
			return Suggestion{TargetSlug: r.slug, Confidence: conf}, true
		}
	}

	if slug, ok := s.fallbacks[fieldType]; ok {
		return Suggestion{TargetSlug: slug, Confidence: models.ConfidenceMedium}, true
	}
	return Suggestion{}, false
}

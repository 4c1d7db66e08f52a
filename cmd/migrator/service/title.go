package service

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
)

const maxDescriptionParts = 3

var slugStrip = regexp.MustCompile(`[^a-z0-9-]`)

// Slugify lowercases, turns spaces into hyphens and drops every other
// character outside [a-z0-9-]
func Slugify(title string) string {
	return slugStrip.ReplaceAllString(strings.ReplaceAll(strings.ToLower(title), " ", "-"), "")
}

// titleStamper appends a run-unique discriminator to titles. The trailing
// counter keeps slugs distinct even when base titles collide.
type titleStamper struct {
	stamp string

	mu  sync.Mutex
	seq int
}

func newTitleStamper(now time.Time) *titleStamper {
	return &titleStamper{stamp: now.Format("20060102_150405")}
}

func (s *titleStamper) next(base string) string {
	s.mu.Lock()
	s.seq++
	n := s.seq
	s.mu.Unlock()
	return fmt.Sprintf("%s [%s-%d]", base, s.stamp, n)
}

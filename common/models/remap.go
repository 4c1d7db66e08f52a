package models

import (
	"sort"
	"sync"
)

// RemapKind partitions the id remap
type RemapKind string

const (
	RemapEntityType RemapKind = "type"
	RemapStage      RemapKind = "stage"
	RemapField      RemapKind = "field"
	RemapEntity     RemapKind = "entity"
)

// RemapEntry is one source -> target id binding
type RemapEntry struct {
	Kind     RemapKind `json:"kind"`
	SourceID string    `json:"sourceId"`
	TargetID string    `json:"targetId"`
}

// IDRemap is the append-only source id -> target id mapping of a run.
// The first binding of a source id wins; entries are never removed.
type IDRemap struct {
	mu      sync.RWMutex
	entries map[RemapKind]map[string]string
}

// NewIDRemap creates an empty remap
func NewIDRemap() *IDRemap {
	return &IDRemap{entries: make(map[RemapKind]map[string]string)}
}

// Put binds sourceID to targetID. It returns false, leaving the existing
// binding in place, when sourceID is already bound.
func (r *IDRemap) Put(kind RemapKind, sourceID, targetID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	byKind, ok := r.entries[kind]
	if !ok {
		byKind = make(map[string]string)
		r.entries[kind] = byKind
	}
	if _, exists := byKind[sourceID]; exists {
		return false
	}
	byKind[sourceID] = targetID
	return true
}

// Get returns the target id bound to sourceID
func (r *IDRemap) Get(kind RemapKind, sourceID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.entries[kind][sourceID]
	return id, ok
}

// Len returns the number of bindings of a kind
func (r *IDRemap) Len(kind RemapKind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries[kind])
}

// Entries dumps every binding sorted by kind then source id
func (r *IDRemap) Entries() []RemapEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]RemapEntry, 0)
	for kind, byKind := range r.entries {
		for src, dst := range byKind {
			out = append(out, RemapEntry{Kind: kind, SourceID: src, TargetID: dst})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out
}

package relations

import (
	"sync"

	"github.com/lyzr/pubmigrate/common/models"
)

// Queue holds relation intents until every owner has been created.
// Intents are drained exactly once, in the order they were deferred.
type Queue struct {
	mu      sync.Mutex
	pending []models.PendingRelation
	drained bool
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	return &Queue{}
}

// Defer enqueues an intent. Intents with no related ids are ignored.
// It reports false once the queue has been drained.
func (q *Queue) Defer(rel models.PendingRelation) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.drained {
		return false
	}
	if len(rel.RelatedIDs) == 0 {
		return true
	}
	rel.RelatedIDs = append([]string(nil), rel.RelatedIDs...)
	q.pending = append(q.pending, rel)
	return true
}

// Len returns the number of queued intents
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Drain hands over every queued intent and closes the queue
func (q *Queue) Drain() []models.PendingRelation {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.pending
	q.pending = nil
	q.drained = true
	return out
}

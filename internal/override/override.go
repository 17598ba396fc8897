// Package override tracks the call-site anchors a user unfolded by hand.
package override

import (
	"sort"
	"sync"

	"github.com/phobologic/autofold/internal/model"
)

// Tracker holds one override set per document. A set is created on the
// first observation for its document and lives until Clear.
type Tracker struct {
	mu   sync.Mutex
	docs map[model.DocumentID]map[int]struct{}
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{docs: make(map[model.DocumentID]map[int]struct{})}
}

// RecordTransition records a visibility change of the construct anchored at
// line, observed outside a reconciliation pass. It returns true when the
// override set changed; repeated calls with the same arguments are no-ops.
func (t *Tracker) RecordTransition(doc model.DocumentID, line int, nowVisible bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.docs[doc]
	if !ok {
		set = make(map[int]struct{})
		t.docs[doc] = set
	}

	_, present := set[line]
	switch {
	case nowVisible && !present:
		set[line] = struct{}{}
		return true
	case !nowVisible && present:
		delete(set, line)
		return true
	}
	return false
}

// IsOverridden reports whether the user unfolded the anchor at line.
func (t *Tracker) IsOverridden(doc model.DocumentID, line int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.docs[doc][line]
	return ok
}

// Remove drops line from the set after the reconciler refolded it.
func (t *Tracker) Remove(doc model.DocumentID, line int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.docs[doc]
	if !ok {
		return false
	}
	if _, present := set[line]; !present {
		return false
	}
	delete(set, line)
	return true
}

// Clear empties the set for doc.
func (t *Tracker) Clear(doc model.DocumentID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.docs, doc)
}

// Lines returns the overridden anchors of doc in ascending order.
func (t *Tracker) Lines(doc model.DocumentID) []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := t.docs[doc]
	if len(set) == 0 {
		return nil
	}
	lines := make([]int, 0, len(set))
	for line := range set {
		lines = append(lines, line)
	}
	sort.Ints(lines)
	return lines
}

// Len returns the number of overridden anchors in doc.
func (t *Tracker) Len(doc model.DocumentID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.docs[doc])
}

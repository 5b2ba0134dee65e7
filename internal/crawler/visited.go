package crawler

import (
	"sort"
	"sync"
)

// VisitedSet records identifiers already claimed by a dispatch.
// The first caller to claim an identifier is the only one allowed to
// schedule fetch work for it.
type VisitedSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewVisitedSet returns an empty VisitedSet.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{seen: make(map[string]struct{})}
}

// TryClaim marks id as visited and reports whether this call claimed it.
// Concurrent callers racing on the same id see exactly one true.
func (v *VisitedSet) TryClaim(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.seen[id]; ok {
		return false
	}
	v.seen[id] = struct{}{}
	return true
}

// Len returns the number of claimed identifiers.
func (v *VisitedSet) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.seen)
}

// Snapshot returns the claimed identifiers in sorted order.
func (v *VisitedSet) Snapshot() []string {
	v.mu.Lock()
	ids := make([]string, 0, len(v.seen))
	for id := range v.seen {
		ids = append(ids, id)
	}
	v.mu.Unlock()
	sort.Strings(ids)
	return ids
}

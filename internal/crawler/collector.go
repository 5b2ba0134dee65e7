package crawler

import (
	"maps"
	"sync"
)

// ErrorCollector maps identifiers to the first failure recorded for them.
// Later failures for the same identifier are dropped: the node is already
// excluded from the downloaded set.
type ErrorCollector struct {
	mu     sync.Mutex
	errors map[string]error
}

// NewErrorCollector returns an empty ErrorCollector.
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{errors: make(map[string]error)}
}

// Record stores err for id unless a failure is already recorded.
// It reports whether err was stored.
func (c *ErrorCollector) Record(id string, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.errors[id]; ok {
		return false
	}
	c.errors[id] = err
	return true
}

// Has reports whether a failure is recorded for id.
func (c *ErrorCollector) Has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.errors[id]
	return ok
}

// Len returns the number of failed identifiers.
func (c *ErrorCollector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errors)
}

// Snapshot returns a copy of the recorded failures.
func (c *ErrorCollector) Snapshot() map[string]error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.errors)
}

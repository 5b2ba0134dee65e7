package crawler

import "sync"

// CompletionTracker counts outstanding asynchronous units of work whose
// total is not known in advance.
//
// Design decision: We use a register/arrive counter instead of a
// sync.WaitGroup because:
//  1. Units are registered from worker goroutines while Await is already
//     blocked, which WaitGroup forbids once the count has reached zero
//  2. Await has to give up when the orchestrator is closed, so it must be
//     selectable against a stop channel
//
// Register must happen before the matching unit is scheduled, and Arrive
// must run exactly once on every exit path of that unit (use defer).
type CompletionTracker struct {
	mu          sync.Mutex
	outstanding int

	// zero is closed when outstanding drops to zero while someone waits.
	// It is nil when nobody is waiting.
	zero chan struct{}
}

// NewCompletionTracker returns a tracker with nothing outstanding.
func NewCompletionTracker() *CompletionTracker {
	return &CompletionTracker{}
}

// Register adds one outstanding unit.
func (t *CompletionTracker) Register() {
	t.mu.Lock()
	t.outstanding++
	t.mu.Unlock()
}

// Arrive marks one unit as finished.
// It panics if called more often than Register: an unbalanced arrive is a
// bookkeeping bug that would otherwise let Await return early.
func (t *CompletionTracker) Arrive() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.outstanding == 0 {
		panic("crawler: CompletionTracker.Arrive called without matching Register")
	}
	t.outstanding--
	if t.outstanding == 0 && t.zero != nil {
		close(t.zero)
		t.zero = nil
	}
}

// Outstanding returns the number of registered units that have not arrived.
func (t *CompletionTracker) Outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outstanding
}

// Await blocks until no units are outstanding or stop is closed.
// It returns true when the count reached zero. Await may be called while
// other goroutines keep registering and arriving, and may be called again
// after it returns.
func (t *CompletionTracker) Await(stop <-chan struct{}) bool {
	t.mu.Lock()
	if t.outstanding == 0 {
		t.mu.Unlock()
		return true
	}
	if t.zero == nil {
		t.zero = make(chan struct{})
	}
	zero := t.zero
	t.mu.Unlock()

	select {
	case <-zero:
		return true
	case <-stop:
		return false
	}
}

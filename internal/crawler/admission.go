package crawler

import (
	"context"
	"sync"
	"sync/atomic"
)

// cancelledContext is handed to jobs that will never reach a worker, so
// they can settle their bookkeeping without doing the actual work.
var cancelledContext = func() context.Context {
	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(ErrClosed)
	return ctx
}()

// hostState is the admission state of a single host.
// A job is either counted in active (running or handed to the pool) or
// sitting in pending, never both.
type hostState struct {
	mu      sync.Mutex
	active  int
	pending []Job
}

// HostAdmissionController caps the number of concurrent fetches per host
// and queues the overflow in FIFO order.
//
// Design decision: Host states live in a sync.Map, each with its own mutex,
// rather than in one map behind a single lock, so that admissions for
// unrelated hosts never serialize on each other. A host state's lock is
// never held while calling into the pool or running a job.
type HostAdmissionController struct {
	limit  int
	pool   *WorkerPool
	hosts  sync.Map // host key -> *hostState
	closed atomic.Bool
}

// NewHostAdmissionController creates a controller that runs admitted jobs
// on pool, at most limit at a time per host.
func NewHostAdmissionController(pool *WorkerPool, limit int) *HostAdmissionController {
	return &HostAdmissionController{limit: limit, pool: pool}
}

func (a *HostAdmissionController) state(host string) *hostState {
	if st, ok := a.hosts.Load(host); ok {
		return st.(*hostState)
	}
	st, _ := a.hosts.LoadOrStore(host, &hostState{})
	return st.(*hostState)
}

// Submit runs job on the pool if host is below its limit, otherwise queues
// it behind the host's earlier jobs. After Close, job runs immediately on
// the caller's goroutine with a cancelled context.
func (a *HostAdmissionController) Submit(host string, job Job) {
	st := a.state(host)

	st.mu.Lock()
	if a.closed.Load() {
		st.mu.Unlock()
		job(cancelledContext)
		return
	}
	if st.active >= a.limit {
		st.pending = append(st.pending, job)
		st.mu.Unlock()
		return
	}
	st.active++
	st.mu.Unlock()

	a.start(st, job)
}

// start hands an admitted job to the pool. If the pool refuses it, the job
// is settled with a cancelled context and the host's next job is tried.
func (a *HostAdmissionController) start(st *hostState, job Job) {
	for {
		err := a.pool.Submit(func(ctx context.Context) {
			defer a.release(st)
			job(ctx)
		})
		if err == nil {
			return
		}
		job(cancelledContext)

		next, ok := st.advance()
		if !ok {
			return
		}
		job = next
	}
}

// release frees the slot held by a finished job, promoting the next
// pending job of the same host if there is one.
func (a *HostAdmissionController) release(st *hostState) {
	if next, ok := st.advance(); ok {
		a.start(st, next)
	}
}

// advance pops the next pending job, keeping the active count steady.
// With nothing pending it gives the slot back instead.
func (st *hostState) advance() (Job, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.pending) > 0 {
		next := st.pending[0]
		st.pending[0] = nil
		st.pending = st.pending[1:]
		return next, true
	}
	st.active--
	return nil, false
}

// Close stops admitting work and settles every queued job with a cancelled
// context. Jobs already handed to the pool are left alone.
// It returns the number of discarded jobs.
func (a *HostAdmissionController) Close() int {
	a.closed.Store(true)

	discarded := 0
	a.hosts.Range(func(_, value any) bool {
		st := value.(*hostState)
		st.mu.Lock()
		pending := st.pending
		st.pending = nil
		st.mu.Unlock()

		for _, job := range pending {
			job(cancelledContext)
		}
		discarded += len(pending)
		return true
	})
	return discarded
}

// Active returns the number of admitted jobs for host.
func (a *HostAdmissionController) Active(host string) int {
	st, ok := a.hosts.Load(host)
	if !ok {
		return 0
	}
	s := st.(*hostState)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Pending returns the number of jobs queued for host.
func (a *HostAdmissionController) Pending(host string) int {
	st, ok := a.hosts.Load(host)
	if !ok {
		return 0
	}
	s := st.(*hostState)
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

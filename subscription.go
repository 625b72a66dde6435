package rxsched

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Subscription is a handle for a single cancellable unit of scheduled work.
//
// Aggregates that hold many subscriptions must track them by Id,
// never by value comparison.
type Subscription interface {
	// Unsubscribe transitions the subscription into closed state and
	// requests a best-effort abort of the associated work.
	// Second and later calls are no-op.
	Unsubscribe()
	// IsClosed reports whether Unsubscribe has been called.
	IsClosed() bool
	// Id is a stable identity assigned at creation.
	Id() string
}

var _ Subscription = &SpawnHandle{}

// SpawnHandle is the leaf subscription returned from scheduling.
// It owns at most one backend abort capability,
// registered once while the task is being spawned.
//
// The closed flag and the cancel channel are safe under concurrent
// Unsubscribe and IsClosed calls.
type SpawnHandle struct {
	id       string
	closed   uint32
	cancelCh chan struct{}

	mu         sync.Mutex
	registered bool
	abort      func()
}

func NewSpawnHandle() *SpawnHandle {
	return &SpawnHandle{
		id:       uuid.NewString(),
		cancelCh: make(chan struct{}),
	}
}

func (h *SpawnHandle) Id() string {
	return h.id
}

func (h *SpawnHandle) IsClosed() bool {
	return atomic.LoadUint32(&h.closed) == 1
}

// Cancelled is closed when Unsubscribe is called.
// The deferred task selects on it during its delay wait.
// Long-running work may also select on it to stop cooperatively.
func (h *SpawnHandle) Cancelled() <-chan struct{} {
	return h.cancelCh
}

// Unsubscribe closes the handle and invokes the backend abort capability
// if one is registered. Interruption of in-flight work is best-effort;
// whether a started body can be interrupted is decided by the backend,
// not by this handle.
func (h *SpawnHandle) Unsubscribe() {
	if !atomic.CompareAndSwapUint32(&h.closed, 0, 1) {
		return
	}
	close(h.cancelCh)

	h.mu.Lock()
	abort := h.abort
	h.abort = nil
	h.mu.Unlock()

	if abort != nil {
		abort()
	}
}

// RegisterAbort hands the backend abort capability to this handle.
// Backends call this once while spawning; the capability is never replaced.
//
// If the handle was unsubscribed before registration, abort is invoked
// immediately so that an early Unsubscribe still reaches the backend.
//
// panic: If called twice.
func (h *SpawnHandle) RegisterAbort(abort func()) {
	h.mu.Lock()
	if h.registered {
		h.mu.Unlock()
		panic(fmt.Errorf("%w: RegisterAbort is called twice", ErrInvalidArg))
	}
	h.registered = true
	if !h.IsClosed() {
		h.abort = abort
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	if abort != nil {
		abort()
	}
}

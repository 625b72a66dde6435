package rxsched

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ngicks/gommon/pkg/common"
)

// NewDeferredTask bundles work and state into a not-yet-executed task,
// creating a fresh SpawnHandle for it.
//
// work will be called at most once, with the handle and state,
// and only if the handle is still open at the moment a backend is about
// to invoke it. state is captured here; the caller must not mutate it
// afterwards when the task goes to a Shared scheduler.
//
// delay is a minimum wait before invocation, not an exact deadline.
// Zero means run as soon as the backend gets to it.
//
// Nothing runs until the returned Deferred is handed to a Spawn.
func NewDeferredTask[T any](work func(handle *SpawnHandle, state T), delay time.Duration, state T) (*SpawnHandle, *Deferred) {
	handle := NewSpawnHandle()
	d := &Deferred{
		handle: handle,
		delay:  delay,
	}
	if work != nil {
		d.work = func() { work(handle, state) }
	}
	return handle, d
}

// Deferred is a deferred unit of work driven by a scheduler backend.
type Deferred struct {
	handle *SpawnHandle
	delay  time.Duration
	work   func()
	done   uint32
}

func (d *Deferred) Handle() *SpawnHandle {
	return d.handle
}

// Delay is the minimum wait the backend must realize before Do.
// Backends that implement the wait themselves (timer re-enqueue) read
// this and then call Do; others just call Run.
func (d *Deferred) Delay() time.Duration {
	return d.delay
}

func (d *Deferred) IsDone() bool {
	return atomic.LoadUint32(&d.done) == 1
}

// Do invokes the work if the handle is still open.
// This is the pre-execution guard: a handle closed at this instant
// suppresses the body entirely. The body is invoked at most once
// even if Do is called from many goroutines.
func (d *Deferred) Do(ctx context.Context) {
	if d.work == nil || d.handle.IsClosed() || !atomic.CompareAndSwapUint32(&d.done, 0, 1) {
		return
	}
	select {
	case <-ctx.Done():
		// Fast path: the backend is already being torn down.
		return
	default:
	}
	d.work()
}

// Run realizes the delay wait and then calls Do.
// The wait ends early when the handle is unsubscribed or ctx is cancelled,
// in which case the body is skipped.
func (d *Deferred) Run(ctx context.Context) {
	if d.delay > 0 {
		timer := common.NewTimerReal()
		defer timer.Stop()
		if !timer.Stop() {
			// non-blocking receive in case the fresh timer already fired.
			select {
			case <-timer.C():
			default:
			}
		}
		timer.Reset(d.delay)
		select {
		case <-ctx.Done():
			return
		case <-d.handle.Cancelled():
			return
		case <-timer.C():
		}
	}
	d.Do(ctx)
}

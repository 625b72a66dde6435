// Package gorun is the managed-runtime Shared backend: every spawned
// task gets its own goroutine under an explicit Runtime handle.
//
// Submission ordering is register-then-submit: the abort capability is in
// the handle before the task goroutine starts, so an Unsubscribe right
// after Spawn reliably reaches the per-task context.
//
// Cancellation interrupts the delay wait at its suspension point. A body
// that already started runs to completion unless it observes the handle
// or the context on its own.
package gorun

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ngicks/rxsched"
	"github.com/ngicks/rxsched/internal/state"
	"github.com/ngicks/type-param-common/set"
)

type inflightIDs struct {
	*set.Set[string]
	sync.Mutex
}

func newInflightIDs() inflightIDs {
	return inflightIDs{
		Set: set.New[string](),
	}
}

func (ids *inflightIDs) Add(id string) {
	ids.Lock()
	ids.Set.Add(id)
	ids.Unlock()
}

func (ids *inflightIDs) Delete(id string) {
	ids.Lock()
	ids.Set.Delete(id)
	ids.Unlock()
}

func (ids *inflightIDs) Has(id string) bool {
	ids.Lock()
	has := ids.Set.Has(id)
	ids.Unlock()
	return has
}

var _ rxsched.SharedScheduler = &Runtime{}

// Runtime owns the goroutines it spawns. It is always passed around
// explicitly; there is no package-level instance.
type Runtime struct {
	state.EndState
	wg sync.WaitGroup

	ctx       context.Context
	cancel    context.CancelFunc
	activeNum int64
	inflight  inflightIDs
}

func NewRuntime() *Runtime {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runtime{
		ctx:      ctx,
		cancel:   cancel,
		inflight: newInflightIDs(),
	}
}

func (r *Runtime) Spawn(task *rxsched.Deferred, handle *rxsched.SpawnHandle) error {
	if task == nil || handle == nil {
		return fmt.Errorf("spawn: %w", rxsched.ErrInvalidArg)
	}
	if r.IsEnded() {
		return fmt.Errorf("spawn: %w", rxsched.ErrAlreadyEnded)
	}

	taskCtx, cancel := context.WithCancel(r.ctx)
	handle.RegisterAbort(cancel)

	id := handle.Id()
	r.inflight.Add(id)
	atomic.AddInt64(&r.activeNum, 1)
	r.wg.Add(1)
	go func() {
		defer func() {
			cancel()
			r.inflight.Delete(id)
			atomic.AddInt64(&r.activeNum, -1)
			r.wg.Done()
		}()
		task.Run(taskCtx)
	}()
	return nil
}

// ActiveTaskNum is the number of task goroutines currently alive,
// delay waits included.
func (r *Runtime) ActiveTaskNum() int64 {
	return atomic.LoadInt64(&r.activeNum)
}

// IsInflight reports whether the task spawned with a handle of this id
// has not yet returned.
func (r *Runtime) IsInflight(id string) bool {
	return r.inflight.Has(id)
}

// Wait blocks until every spawned task goroutine has returned.
// Spawning concurrently with Wait is the caller's synchronization.
func (r *Runtime) Wait() {
	r.wg.Wait()
}

// Shutdown rejects further Spawn calls, cancels all task contexts and
// waits for the goroutines to return. Delay waits end immediately;
// started bodies still run to completion.
func (r *Runtime) Shutdown() {
	if r.SetEnded() {
		r.cancel()
	}
	r.wg.Wait()
}

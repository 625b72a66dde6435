// Package eventloop is the Local scheduler backend: one goroutine,
// the one that called Run, executes every task body sequentially.
//
// Cancellation is purely cooperative. A closed handle keeps the body
// from starting and cancels a pending delay timer; a started body always
// runs to completion since nothing else shares the loop goroutine.
//
// Submission ordering is submit-then-register, which is race-free in the
// Local model: Spawn and Unsubscribe happen on the caller's side of the
// single execution context, never concurrently with capability
// registration.
package eventloop

import (
	"context"
	"fmt"
	"time"

	"github.com/ngicks/rxsched"
	"github.com/ngicks/rxsched/internal/state"
)

var _ rxsched.LocalScheduler = &Loop{}

// Loop is a single-goroutine cooperative task loop.
//
// Delayed tasks never block the loop: they sit on a timer and are
// re-enqueued when it fires, so other tasks keep running meanwhile.
type Loop struct {
	state.WorkingState
	state.EndState

	queue chan *rxsched.Deferred
	endCh chan struct{}
}

const DefaultQueueSize = 1 << 10

// New returns a loop whose queue holds up to queueSize tasks.
// Passing zero selects DefaultQueueSize.
func New(queueSize uint) *Loop {
	if queueSize == 0 {
		queueSize = DefaultQueueSize
	}
	return &Loop{
		queue: make(chan *rxsched.Deferred, queueSize),
		endCh: make(chan struct{}),
	}
}

// Run drives the loop on the calling goroutine until ctx is cancelled or
// End is called. Every task body executes here.
//
// If the loop is already ended, it returns ErrAlreadyEnded.
// If another Run is active, it returns ErrAlreadyStarted.
func (l *Loop) Run(ctx context.Context) error {
	if l.IsEnded() {
		return rxsched.ErrAlreadyEnded
	}
	if !l.SetWorking() {
		return rxsched.ErrAlreadyStarted
	}
	defer l.SetWorking(false)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.endCh:
			return nil
		default:
		}
		select {
		case <-ctx.Done():
			return nil
		case <-l.endCh:
			return nil
		case task := <-l.queue:
			task.Do(ctx)
		}
	}
}

// Spawn enqueues the task for the loop goroutine. It never blocks;
// a full queue surfaces as ErrQueueFull and the task will not run.
//
// A task with a delay is parked on a timer first. Stopping that timer is
// the abort capability registered into handle; an immediate task needs
// no backend capability beyond the pre-execution guard.
func (l *Loop) Spawn(task *rxsched.Deferred, handle *rxsched.SpawnHandle) error {
	if task == nil || handle == nil {
		return fmt.Errorf("spawn: %w", rxsched.ErrInvalidArg)
	}
	if l.IsEnded() {
		return fmt.Errorf("spawn: %w", rxsched.ErrAlreadyEnded)
	}

	if delay := task.Delay(); delay > 0 {
		timer := time.AfterFunc(delay, func() {
			l.requeue(task)
		})
		handle.RegisterAbort(func() { timer.Stop() })
		return nil
	}

	select {
	case l.queue <- task:
	default:
		return fmt.Errorf("spawn: %w", rxsched.ErrQueueFull)
	}
	return nil
}

// requeue runs on the timer goroutine when a delay elapses.
// The loop goroutine is the only receiver, so this may wait for a free
// slot; End releases it if the loop is gone.
func (l *Loop) requeue(task *rxsched.Deferred) {
	select {
	case l.queue <- task:
	case <-l.endCh:
	}
}

// Flush posts a barrier task and waits until the loop has executed it,
// meaning every task enqueued before Flush has run or been skipped.
// Pending delayed tasks are not waited for.
func (l *Loop) Flush(ctx context.Context) error {
	done := make(chan struct{})
	_, barrier := rxsched.NewDeferredTask(func(h *rxsched.SpawnHandle, _ struct{}) {
		close(done)
	}, 0, struct{}{})

	select {
	case l.queue <- barrier:
	case <-l.endCh:
		return fmt.Errorf("flush: %w", rxsched.ErrAlreadyEnded)
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-l.endCh:
		return fmt.Errorf("flush: %w", rxsched.ErrAlreadyEnded)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// End stops the loop and releases timer goroutines of pending delayed
// tasks. Tasks still queued are discarded; their bodies never run.
func (l *Loop) End() {
	if l.SetEnded() {
		close(l.endCh)
	}
}

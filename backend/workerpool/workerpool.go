// Package workerpool adapts github.com/ngicks/workerpool as a Shared
// scheduler backend.
//
// Cancellation is cooperative only: a closed handle prevents the body
// from starting and interrupts a pending delay wait, but a body that
// already started always runs to completion.
//
// Submission ordering is submit-then-register: the job may reach a worker
// before the abort capability lands in the handle. The window is benign
// here because both the pre-execution guard and the delay wait observe
// the handle directly; only interruption through the per-job context is
// delayed by it.
package workerpool

import (
	"context"
	"fmt"

	"github.com/ngicks/rxsched"
	"github.com/ngicks/rxsched/internal/state"
	"github.com/ngicks/workerpool"
)

type job struct {
	ctx  context.Context
	task *rxsched.Deferred
}

var _ workerpool.WorkExecuter[string, job] = &executor{}

type executor struct{}

// Exec drives the deferred task on a worker. The worker realizes the
// delay wait itself, so a delayed task occupies its worker until the
// delay elapses or the task is aborted.
func (e *executor) Exec(ctx context.Context, id string, param job) error {
	combined, cancel := context.WithCancel(param.ctx)
	defer cancel()

	go func() {
		select {
		case <-combined.Done():
		case <-ctx.Done():
		}
		cancel()
	}()

	param.task.Run(combined)
	return nil
}

// WorkerPool is the worker management surface of the underlying pool.
type WorkerPool interface {
	Add(delta int) (ok bool)
	Remove(delta int)
	Kill()
	Wait()
}

var _ rxsched.SharedScheduler = &WorkerPoolScheduler{}

// WorkerPoolScheduler is a Shared scheduler backed by an in-memory
// worker pool. Initially the pool has zero workers; call Add.
//
// Spawn never blocks: tasks land in a bounded intake queue drained by a
// forwarder goroutine, and a full queue surfaces as ErrQueueFull.
type WorkerPoolScheduler struct {
	state.EndState
	WorkerPool

	pool   *workerpool.Pool[string, job]
	intake chan job
	endCh  chan struct{}
	doneCh chan struct{}
}

const DefaultQueueSize = 1 << 10

// New returns a worker pool scheduler whose intake queue holds up to
// queueSize tasks. Passing zero selects DefaultQueueSize.
func New(queueSize uint) *WorkerPoolScheduler {
	if queueSize == 0 {
		queueSize = DefaultQueueSize
	}
	pool := workerpool.New[string, job](&executor{}, workerpool.NewUuidPool())
	s := &WorkerPoolScheduler{
		WorkerPool: pool,
		pool:       pool,
		intake:     make(chan job, queueSize),
		endCh:      make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	go s.forward()
	return s
}

func (s *WorkerPoolScheduler) forward() {
	defer close(s.doneCh)
	for {
		select {
		case <-s.endCh:
			return
		default:
		}
		select {
		case <-s.endCh:
			return
		case j := <-s.intake:
			select {
			case s.pool.Sender() <- j:
			case <-s.endCh:
				return
			}
		}
	}
}

func (s *WorkerPoolScheduler) Spawn(task *rxsched.Deferred, handle *rxsched.SpawnHandle) error {
	if task == nil || handle == nil {
		return fmt.Errorf("spawn: %w", rxsched.ErrInvalidArg)
	}
	if s.IsEnded() {
		return fmt.Errorf("spawn: %w", rxsched.ErrAlreadyEnded)
	}

	jobCtx, cancel := context.WithCancel(context.Background())

	select {
	case <-s.endCh:
		cancel()
		return fmt.Errorf("spawn: %w", rxsched.ErrAlreadyEnded)
	default:
	}

	select {
	case s.intake <- job{ctx: jobCtx, task: task}:
	default:
		cancel()
		return fmt.Errorf("spawn: %w", rxsched.ErrQueueFull)
	}

	handle.RegisterAbort(cancel)
	return nil
}

// End stops the intake forwarder and kills the workers.
// Accepted tasks still sitting in the intake queue are discarded;
// their bodies never run.
func (s *WorkerPoolScheduler) End() {
	if !s.SetEnded() {
		return
	}
	close(s.endCh)
	<-s.doneCh
	s.pool.Kill()
	s.pool.Wait()
}

package rxsched

import "time"

// SharedScheduler submits deferred tasks to a backend that may run them
// on any of its goroutines. Task bodies and captured state must be safe
// to hand over to another goroutine.
//
// Spawn registers the backend abort capability into handle. Whether that
// happens before or after the backend could first touch the task is a
// per-backend property; every adapter documents its ordering and the
// resulting race window. A non-nil error means the backend did not accept
// the task (shut down or saturated); the task is then guaranteed to never
// run and the caller decides what to do next.
type SharedScheduler interface {
	Spawn(task *Deferred, handle *SpawnHandle) error
}

// LocalScheduler is the single-goroutine variant of SharedScheduler.
// Every task body runs on the one goroutine driving the backend loop,
// so captured state needs no cross-goroutine synchronization.
// The Spawn contract is otherwise identical to SharedScheduler.
type LocalScheduler interface {
	Spawn(task *Deferred, handle *SpawnHandle) error
}

// ScheduleShared builds a deferred task and spawns it on s.
// It returns as soon as the backend accepted the task, without waiting
// for execution. The returned handle cancels the task at any time;
// before the body starts the cancellation is guaranteed, afterwards it
// is best-effort per backend.
func ScheduleShared[T any](s SharedScheduler, work func(handle *SpawnHandle, state T), delay time.Duration, state T) (*SpawnHandle, error) {
	handle, task := NewDeferredTask(work, delay, state)
	if err := s.Spawn(task, handle); err != nil {
		return nil, err
	}
	return handle, nil
}

// ScheduleLocal is ScheduleShared for a LocalScheduler.
func ScheduleLocal[T any](l LocalScheduler, work func(handle *SpawnHandle, state T), delay time.Duration, state T) (*SpawnHandle, error) {
	handle, task := NewDeferredTask(work, delay, state)
	if err := l.Spawn(task, handle); err != nil {
		return nil, err
	}
	return handle, nil
}

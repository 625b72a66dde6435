package rxsched_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ngicks/rxsched"
)

// recordingScheduler accepts one task and keeps it
// so the test can drive it by hand.
type recordingScheduler struct {
	err    error
	task   *rxsched.Deferred
	handle *rxsched.SpawnHandle
}

func (s *recordingScheduler) Spawn(task *rxsched.Deferred, handle *rxsched.SpawnHandle) error {
	if s.err != nil {
		return s.err
	}
	s.task = task
	s.handle = handle
	handle.RegisterAbort(func() {})
	return nil
}

func TestScheduleShared(t *testing.T) {
	t.Run("returns the task handle synchronously", func(t *testing.T) {
		backend := &recordingScheduler{}

		var called bool
		handle, err := rxsched.ScheduleShared(backend, func(h *rxsched.SpawnHandle, _ struct{}) {
			called = true
		}, 0, struct{}{})

		if err != nil {
			t.Fatalf("must not error: %s", err)
		}
		if handle == nil {
			t.Fatalf("handle must be non nil")
		}
		if handle != backend.task.Handle() {
			t.Fatalf("returned handle must be the task handle")
		}
		if called {
			t.Fatalf("work must not be called before a backend drives the task")
		}

		backend.task.Do(context.Background())
		if !called {
			t.Fatalf("work must be called once the backend drives the task")
		}
	})

	t.Run("submission failure is surfaced", func(t *testing.T) {
		backend := &recordingScheduler{
			err: fmt.Errorf("spawn: %w", rxsched.ErrQueueFull),
		}

		handle, err := rxsched.ScheduleShared(backend, func(h *rxsched.SpawnHandle, _ struct{}) {}, 0, struct{}{})

		if handle != nil {
			t.Fatalf("handle must be nil on submission failure")
		}
		if !errors.Is(err, rxsched.ErrQueueFull) {
			t.Fatalf("err must be ErrQueueFull, got: %v", err)
		}
	})
}

func TestScheduleLocal(t *testing.T) {
	backend := &recordingScheduler{}

	var called int
	handle, err := rxsched.ScheduleLocal(backend, func(h *rxsched.SpawnHandle, state int) {
		called = state
	}, 0, 7)

	if err != nil {
		t.Fatalf("must not error: %s", err)
	}
	if handle == nil {
		t.Fatalf("handle must be non nil")
	}

	backend.task.Do(context.Background())
	if called != 7 {
		t.Fatalf("work must receive state, got %d", called)
	}
}

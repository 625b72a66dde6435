package rxsched_test

import (
	"context"
	"encoding/hex"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/ngicks/gommon/pkg/randstr"
	"github.com/ngicks/rxsched"
)

var randGen *randstr.Generator = randstr.New(randstr.EncoderFactory(hex.NewEncoder))

func randStrLen(t *testing.T, length int) string {
	t.Helper()
	str, err := randGen.StringLen(int64(length))
	if err != nil {
		t.Fatalf("randstr: %s", err)
	}
	return str
}

func TestDeferred(t *testing.T) {
	t.Run("closed handle suppresses the body", func(t *testing.T) {
		var callCount int32
		handle, task := rxsched.NewDeferredTask(func(h *rxsched.SpawnHandle, _ struct{}) {
			atomic.AddInt32(&callCount, 1)
		}, 0, struct{}{})

		handle.Unsubscribe()

		for i := 0; i < 10; i++ {
			task.Do(context.Background())
		}

		if count := atomic.LoadInt32(&callCount); count != 0 {
			t.Fatalf("work must not be called, called %d times", count)
		}
		if task.IsDone() {
			t.Fatalf("IsDone must be false")
		}
	})

	t.Run("body runs exactly once", func(t *testing.T) {
		var callCount int32
		_, task := rxsched.NewDeferredTask(func(h *rxsched.SpawnHandle, _ struct{}) {
			atomic.AddInt32(&callCount, 1)
		}, 0, struct{}{})

		for i := 0; i < 10; i++ {
			task.Do(context.Background())
		}

		if count := atomic.LoadInt32(&callCount); count != 1 {
			t.Fatalf("work call count is not correct, called %d times", count)
		}
		if !task.IsDone() {
			t.Fatalf("IsDone must be true")
		}
	})

	t.Run("cancelled ctx suppresses the body", func(t *testing.T) {
		var callCount int32
		_, task := rxsched.NewDeferredTask(func(h *rxsched.SpawnHandle, _ struct{}) {
			atomic.AddInt32(&callCount, 1)
		}, 0, struct{}{})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		task.Do(ctx)

		if count := atomic.LoadInt32(&callCount); count != 0 {
			t.Fatalf("work must not be called, called %d times", count)
		}
	})

	t.Run("state and handle are passed to the body", func(t *testing.T) {
		type payload struct {
			Id  string
			Num int
		}

		want := payload{Id: randStrLen(t, 16), Num: 42}

		var got payload
		var gotHandle *rxsched.SpawnHandle
		handle, task := rxsched.NewDeferredTask(func(h *rxsched.SpawnHandle, state payload) {
			gotHandle = h
			got = state
		}, 0, want)

		task.Do(context.Background())

		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("state mismatch. diff =%s", diff)
		}
		if gotHandle != handle {
			t.Fatalf("body must receive the handle returned from NewDeferredTask")
		}
	})

	t.Run("delay is a lower bound", func(t *testing.T) {
		delay := 30 * time.Millisecond

		var doneAt atomic.Value
		_, task := rxsched.NewDeferredTask(func(h *rxsched.SpawnHandle, _ struct{}) {
			doneAt.Store(time.Now())
		}, delay, struct{}{})

		start := time.Now()
		task.Run(context.Background())

		stored := doneAt.Load()
		if stored == nil {
			t.Fatalf("work must be called")
		}
		if elapsed := stored.(time.Time).Sub(start); elapsed < delay {
			t.Fatalf("work started %s after Run, must be at least %s", elapsed, delay)
		}
	})

	t.Run("unsubscribe during delay skips the body", func(t *testing.T) {
		var callCount int32
		handle, task := rxsched.NewDeferredTask(func(h *rxsched.SpawnHandle, _ struct{}) {
			atomic.AddInt32(&callCount, 1)
		}, 50*time.Millisecond, struct{}{})

		returned := make(chan struct{})
		go func() {
			task.Run(context.Background())
			close(returned)
		}()

		handle.Unsubscribe()

		select {
		case <-returned:
		case <-time.After(time.Second):
			t.Fatalf("Run must return early when the handle is closed")
		}

		time.Sleep(200 * time.Millisecond)
		if count := atomic.LoadInt32(&callCount); count != 0 {
			t.Fatalf("work must not be called, called %d times", count)
		}
	})

	t.Run("zero delay runs without a timer", func(t *testing.T) {
		var callCount int32
		_, task := rxsched.NewDeferredTask(func(h *rxsched.SpawnHandle, _ struct{}) {
			atomic.AddInt32(&callCount, 1)
		}, 0, struct{}{})

		task.Run(context.Background())

		if count := atomic.LoadInt32(&callCount); count != 1 {
			t.Fatalf("work call count is not correct, called %d times", count)
		}
	})
}

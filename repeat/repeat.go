// Package repeat re-arms a task on a SharedScheduler each time it fires,
// following a cron-like schedule or a fixed interval.
package repeat

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ngicks/gommon/pkg/common"
	"github.com/ngicks/rxsched"
	"github.com/robfig/cron/v3"
)

var (
	ErrAlreadyScheduled = errors.New("already scheduled")
	ErrOnceSchedule     = errors.New("schedule did not advance")
)

// Schedule decides the next fire time after a given point in time.
// cron.Schedule satisfies this.
type Schedule interface {
	Next(time.Time) time.Time
}

// Expression parses a standard cron expression,
// e.g. "30 12 * * *" or "@every 4h25m".
func Expression(exp string) (Schedule, error) {
	return cron.ParseStandard(exp)
}

// Every fires at a fixed interval. Intervals under a second are rounded
// up to a second by the underlying cron schedule.
func Every(interval time.Duration) Schedule {
	return cron.Every(interval)
}

// Rescheduler drives work on a SharedScheduler repeatedly.
// One occurrence is armed at a time; when its body fires it arms the
// next one. Unsubscribe cancels the armed occurrence and stops the
// cycle for good.
type Rescheduler struct {
	mu        sync.Mutex
	err       error
	scheduler rxsched.SharedScheduler
	schedule  Schedule
	work      func(scheduled time.Time)
	ongoing   *rxsched.SpawnHandle
	scheduled bool
	closed    bool
	prev      time.Time

	// NowGetter is consulted for delay computation. Replaceable before
	// Schedule is called, for tests.
	NowGetter common.NowGetter
}

// NewRescheduler creates a Rescheduler.
//
// panic: If schedule, scheduler or work is nil.
func NewRescheduler(schedule Schedule, scheduler rxsched.SharedScheduler, work func(scheduled time.Time)) *Rescheduler {
	if schedule == nil || scheduler == nil || work == nil {
		panic(fmt.Errorf(
			"%w: one or more of arguments is nil. schedule is nil=[%t], scheduler is nil=[%t], work is nil=[%t]",
			rxsched.ErrInvalidArg,
			schedule == nil,
			scheduler == nil,
			work == nil,
		))
	}
	return &Rescheduler{
		scheduler: scheduler,
		schedule:  schedule,
		work:      work,
		NowGetter: common.NowGetterReal{},
	}
}

// Schedule arms the first occurrence.
//
// ErrAlreadyScheduled is returned on a second call without a preceding
// Unsubscribe. ErrOnceSchedule is returned if the schedule does not
// advance past now. Spawn errors of the underlying scheduler are
// returned as-is. Errors other than ErrAlreadyScheduled are sticky:
// once returned, every later Schedule call returns the same error.
func (r *Rescheduler) Schedule() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("schedule: %w", rxsched.ErrAlreadyEnded)
	}
	if r.err != nil {
		return r.err
	}
	if r.scheduled {
		return ErrAlreadyScheduled
	}
	r.scheduled = true
	r.prev = r.NowGetter.GetNow()
	return r.arm()
}

// arm computes the next occurrence and spawns it. Callers hold mu.
func (r *Rescheduler) arm() error {
	next := r.schedule.Next(r.prev)
	if !next.After(r.prev) {
		r.err = ErrOnceSchedule
		return r.err
	}

	delay := next.Sub(r.NowGetter.GetNow())
	if delay < 0 {
		delay = 0
	}

	handle, err := rxsched.ScheduleShared(
		r.scheduler,
		func(h *rxsched.SpawnHandle, scheduled time.Time) {
			r.work(scheduled)
			r.rearm()
		},
		delay,
		next,
	)
	if err != nil {
		r.err = err
		return err
	}

	r.ongoing = handle
	r.prev = next
	return nil
}

func (r *Rescheduler) rearm() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.err != nil {
		return
	}
	// sticky via r.err; surfaced through Err.
	_ = r.arm()
}

// Err is the sticky error, if any arming failed so far.
func (r *Rescheduler) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Rescheduler) IsClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Unsubscribe cancels the armed occurrence and stops rescheduling.
// An occurrence whose body already started still completes; no new one
// is armed after it.
func (r *Rescheduler) Unsubscribe() {
	r.mu.Lock()
	ongoing := r.ongoing
	r.ongoing = nil
	r.closed = true
	r.mu.Unlock()

	if ongoing != nil {
		ongoing.Unsubscribe()
	}
}

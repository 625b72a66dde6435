// Package rxsched is the scheduling layer of a reactive-stream library.
//
// It separates what to run and when (a deferred task with an optional
// minimum delay) from which backend runs it, and hands every scheduled
// task a leaf cancellation handle.
//
// Backends live under ./backend:
//   - backend/workerpool: worker pool, Shared.
//   - backend/gorun: one goroutine per task under an explicit Runtime
//     handle, Shared.
//   - backend/eventloop: single-goroutine cooperative loop, Local.
//
// Cancellation before the body starts is guaranteed by the pre-execution
// guard. Once a body started, interruption depends entirely on the
// backend; each adapter documents whether and where it can interrupt.
package rxsched

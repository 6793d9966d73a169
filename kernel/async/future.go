// Package async implements the kernel's single-threaded cooperative task
// executor: tasks are explicit state machines (Future[T] implementations)
// that are polled to completion by a single run loop, rather than goroutines
// scheduled by the Go runtime. This mirrors the hand-rolled coroutine model
// a freestanding kernel needs, since it cannot rely on the Go scheduler
// (which assumes a running OS and a multiplexed thread pool neither of
// which exist at this level).
package async

// PollState describes the outcome of polling a Future.
type PollState int

const (
	// Pending indicates the future has not yet produced a value and has
	// registered interest in being polled again via the supplied Waker.
	Pending PollState = iota

	// Ready indicates the future has produced its final value.
	Ready
)

// Future is a resumable computation that eventually produces a value of
// type T. Poll must not block; if the result is not yet available it must
// register cx.Waker() with whatever will complete the computation and
// return Pending.
type Future[T any] interface {
	Poll(cx *Context) (T, PollState)
}

// Waker is an opaque handle that, when woken, causes the task it is
// associated with to be re-queued for polling.
type Waker interface {
	Wake()
}

// Context is passed to Poll so a pending future can register its waker.
type Context struct {
	waker Waker
}

// NewContext builds a Context around the given waker.
func NewContext(w Waker) *Context {
	return &Context{waker: w}
}

// Waker returns the waker associated with this polling context.
func (c *Context) Waker() Waker {
	return c.waker
}

// unit is the output type of a Task's future, standing in for Rust's ().
type unit = struct{}

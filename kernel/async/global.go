package async

import (
	ktime "gopheros/kernel/time"
	"time"
)

// global holds the process-wide executor instance. Like the HBA register
// block and the nanosecond clock, there is exactly one of these for the
// lifetime of the kernel.
var global *Executor

// Init installs and returns the package-wide executor instance. It must be
// called exactly once during boot, before Spawn, SpawnAsync or Sleep are
// used.
func Init() *Executor {
	global = NewExecutor()
	return global
}

// Global returns the process-wide executor installed by Init.
func Global() *Executor {
	return global
}

// Spawn registers f with the global executor and admits it to the ready
// queue immediately. Intended for boot-time spawns; see Executor.SpawnTask.
func Spawn(f Future[unit]) TaskID {
	return global.SpawnTask(f)
}

// SpawnAsync queues f for admission with the global executor's pending
// spawns queue. See Executor.SpawnAsync.
func SpawnAsync(f Future[unit]) Future[unit] {
	return global.SpawnAsync(f)
}

// Sleep returns a future that becomes Ready once d has elapsed, measured
// against the kernel's monotonic clock. The deadline is registered with the
// global executor's sleeper queue; the timer interrupt handler is what
// actually advances the clock and asks the executor to re-check deadlines.
func Sleep(d time.Duration) Future[unit] {
	waker := &AtomicWaker{}
	done := new(int32)
	deadline := ktime.Now().Add(d)
	global.addSleeper(waker, deadline, done)
	return &doneFuture{waker: waker, done: done}
}

package sync

import (
	"gopheros/kernel/async"
	"gopheros/kernel/queue"
	"sync/atomic"
)

// asyncMutexWaiterCapacity bounds the number of tasks that may be
// concurrently parked waiting for a single AsyncMutex.
const asyncMutexWaiterCapacity = 20

// AsyncMutex is a cooperative mutex: a contended Lock call suspends the
// calling task (by returning a Pending future) rather than spinning, which
// is what makes it safe to use from task code without risking the single
// hardware thread busy-waiting on itself. It guards a value of type V,
// handed out through an AsyncMutexGuard once acquired.
type AsyncMutex[V any] struct {
	locked  int32
	value   V
	waiters *queue.Ring[*async.AtomicWaker]
}

// NewAsyncMutex constructs an unlocked AsyncMutex wrapping value.
func NewAsyncMutex[V any](value V) *AsyncMutex[V] {
	return &AsyncMutex[V]{
		value:   value,
		waiters: queue.New[*async.AtomicWaker](asyncMutexWaiterCapacity),
	}
}

// TryLock attempts to acquire the mutex without suspending. It returns
// ok=false if the mutex is already held.
func (m *AsyncMutex[V]) TryLock() (guard *AsyncMutexGuard[V], ok bool) {
	if atomic.SwapInt32(&m.locked, 1) == 1 {
		return nil, false
	}
	return &AsyncMutexGuard[V]{mutex: m}, true
}

func (m *AsyncMutex[V]) unlock() {
	atomic.StoreInt32(&m.locked, 0)
	if waker, ok := m.waiters.Pop(); ok {
		waker.Wake()
	}
}

// Lock returns a future that resolves to an AsyncMutexGuard once the mutex
// has been acquired, suspending the caller in the meantime if it is
// currently held.
//
// TODO: the waiter is enqueued here, before lockFuture.Poll ever runs its
// first TryLock. An uncontended Lock resolves immediately without that
// waiter ever being registered (lockFuture.waker.Register is never called),
// so it sits in m.waiters as a no-op entry that unlock() can still Pop and
// Wake on a later contended release, waking nothing. original_source's
// kernel/src/sync.rs carries the same gap under its own `// TODO: queueing`.
func (m *AsyncMutex[V]) Lock() async.Future[*AsyncMutexGuard[V]] {
	waker := &async.AtomicWaker{}
	if err := m.waiters.Push(waker); err != nil {
		panic("sync: AsyncMutex waiter queue full")
	}
	return &lockFuture[V]{mutex: m, waker: waker}
}

// AsyncMutexGuard grants access to the value protected by an AsyncMutex.
// The holder must call Unlock when finished; Go has no destructor to do
// this implicitly, so callers are expected to `defer guard.Unlock()`.
type AsyncMutexGuard[V any] struct {
	mutex *AsyncMutex[V]
}

// Value returns a pointer to the guarded value.
func (g *AsyncMutexGuard[V]) Value() *V {
	return &g.mutex.value
}

// Unlock releases the mutex, waking the next waiter if one is queued.
func (g *AsyncMutexGuard[V]) Unlock() {
	g.mutex.unlock()
}

// lockFuture backs Lock.
type lockFuture[V any] struct {
	mutex *AsyncMutex[V]
	waker *async.AtomicWaker
}

func (f *lockFuture[V]) Poll(cx *async.Context) (*AsyncMutexGuard[V], async.PollState) {
	if guard, ok := f.mutex.TryLock(); ok {
		return guard, async.Ready
	}

	f.waker.Take()
	f.waker.Register(cx.Waker())

	if guard, ok := f.mutex.TryLock(); ok {
		return guard, async.Ready
	}
	return nil, async.Pending
}

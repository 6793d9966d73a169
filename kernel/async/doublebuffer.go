package async

import (
	"gopheros/kernel/queue"
	"sync"
)

// doubleBuffer is a bounded queue split into a front and back half so the
// executor can swap the front out for an empty buffer, drain it at leisure,
// and push survivors onto the (now current) front without contending with
// producers that are still pushing new entries onto what is now the back
// half. It backs both the sleepers and pending-spawns queues described in
// the executor's design.
type doubleBuffer[T any] struct {
	mu    sync.Mutex
	front *queue.Ring[T]
	back  *queue.Ring[T]
}

func newDoubleBuffer[T any](capacity int) *doubleBuffer[T] {
	return &doubleBuffer[T]{
		front: queue.New[T](capacity),
		back:  queue.New[T](capacity),
	}
}

// push appends v to the currently active front half. It takes d.mu to read
// the front pointer; its callers (Sleep, SpawnAsync and the executor loop)
// all run in task context, not in interrupt handlers.
func (d *doubleBuffer[T]) push(v T) error {
	d.mu.Lock()
	front := d.front
	d.mu.Unlock()
	return front.Push(v)
}

// swap exchanges the front and back halves and returns the half that was
// front before the call, for the executor to drain. The half returned here
// becomes the new back half; by the time swap is called again it must have
// been fully drained and any survivors pushed back onto the (new) front.
func (d *doubleBuffer[T]) swap() *queue.Ring[T] {
	d.mu.Lock()
	defer d.mu.Unlock()
	old := d.front
	d.front = d.back
	d.back = old
	return old
}

// isEmpty reports whether the active front half currently holds nothing.
func (d *doubleBuffer[T]) isEmpty() bool {
	d.mu.Lock()
	front := d.front
	d.mu.Unlock()
	return front.IsEmpty()
}

package async

import "sync/atomic"

// TaskID uniquely identifies a task for the lifetime of the kernel. Ids are
// assigned monotonically and never reused.
type TaskID uint64

var nextTaskID uint64

func newTaskID() TaskID {
	return TaskID(atomic.AddUint64(&nextTaskID, 1) - 1)
}

// Task couples a TaskID with the future driving it. A task's future always
// produces unit: any value a task computes is communicated through shared
// state it closed over, not through its own completion value.
type Task struct {
	id     TaskID
	future Future[unit]
}

// NewTask wraps f in a Task with a freshly assigned id.
func NewTask(f Future[unit]) *Task {
	return &Task{id: newTaskID(), future: f}
}

// ID returns the task's assigned id.
func (t *Task) ID() TaskID {
	return t.id
}

// poll drives the task's future once.
func (t *Task) poll(cx *Context) PollState {
	_, state := t.future.Poll(cx)
	return state
}

package async

import (
	"testing"
)

// countdownFuture becomes Ready after being polled n times.
type countdownFuture struct {
	remaining int
	polls     *int
}

func (f *countdownFuture) Poll(cx *Context) (unit, PollState) {
	*f.polls++
	if f.remaining == 0 {
		return unit{}, Ready
	}
	f.remaining--
	cx.Waker().Wake()
	return unit{}, Pending
}

// neverReadyFuture always returns Pending without re-waking itself; used to
// verify the ready queue drains, leaving the executor nothing to re-poll,
// instead of the task being polled again in a busy loop.
type neverReadyFuture struct {
	polled *bool
}

func (f *neverReadyFuture) Poll(cx *Context) (unit, PollState) {
	*f.polled = true
	return unit{}, Pending
}

func TestExecutorLivenessToCompletion(t *testing.T) {
	e := NewExecutor()

	polls := 0
	id := e.SpawnTask(&countdownFuture{remaining: 3, polls: &polls})

	for i := 0; i < 10 && len(e.tasks) > 0; i++ {
		e.runReadyTasks()
	}

	if exp, got := 4, polls; got != exp {
		t.Fatalf("expected future to be polled %d times; got %d", exp, got)
	}

	if _, exists := e.tasks[id]; exists {
		t.Fatal("expected completed task to be removed from tasks map")
	}
	if _, exists := e.wakerCache[id]; exists {
		t.Fatal("expected completed task's waker to be removed from cache")
	}
}

func TestExecutorParksWhenAlwaysPending(t *testing.T) {
	e := NewExecutor()

	var polled bool
	e.SpawnTask(&neverReadyFuture{polled: &polled})

	e.runReadyTasks()

	if !polled {
		t.Fatal("expected the future to be polled at least once")
	}
	if !e.readyQueue.IsEmpty() {
		t.Fatal("expected ready queue to drain after a single Pending poll with no self-wake")
	}
}

func TestExecutorRemovesMissingTaskSilently(t *testing.T) {
	e := NewExecutor()

	if err := e.readyQueue.Push(TaskID(999)); err != nil {
		t.Fatalf("unexpected error pushing task id: %v", err)
	}

	e.runReadyTasks()

	if !e.readyQueue.IsEmpty() {
		t.Fatal("expected stale task id to be drained without panicking")
	}
}

func TestSpawnAsyncAdmission(t *testing.T) {
	e := NewExecutor()
	global = e
	defer func() { global = nil }()

	polls := 0
	admission := e.SpawnAsync(&countdownFuture{remaining: 0, polls: &polls})

	fakeWaker := &taskWaker{id: TaskID(0), e: e}
	cx := NewContext(fakeWaker)

	if _, state := admission.Poll(cx); state != Pending {
		t.Fatal("expected admission future to be Pending before processPendingSpawns runs")
	}

	e.processPendingSpawns()

	if _, state := admission.Poll(cx); state != Ready {
		t.Fatal("expected admission future to be Ready after processPendingSpawns runs")
	}

	if e.readyQueue.IsEmpty() {
		t.Fatal("expected the spawned task to be admitted onto the ready queue")
	}
}

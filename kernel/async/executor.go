package async

import (
	"gopheros/kernel/cpu"
	"gopheros/kernel/queue"
	ktime "gopheros/kernel/time"
	"sync"
	"sync/atomic"
)

const (
	// readyQueueCapacity bounds the number of woken-but-not-yet-polled
	// task ids the executor will hold at once.
	readyQueueCapacity = 100

	// pendingSpawnCapacity bounds the number of tasks a task may have
	// in flight via SpawnAsync before admission is deferred.
	pendingSpawnCapacity = 64

	// sleeperCapacity bounds the number of outstanding sleep() futures.
	sleeperCapacity = 128
)

// sleeperEntry tracks one outstanding sleep() deadline.
type sleeperEntry struct {
	waker    *AtomicWaker
	deadline ktime.Instant
	done     *int32
}

// pendingSpawn tracks one task awaiting admission into the ready queue,
// along with the waker/done-flag pair used to resolve the future returned
// by SpawnAsync.
type pendingSpawn struct {
	task  *Task
	waker *AtomicWaker
	done  *int32
}

// Executor is the single-threaded cooperative scheduler. There is exactly
// one instance per kernel, installed via Init and reached by package-level
// helpers (Spawn, SpawnAsync, Sleep) so that deeply nested futures can reach
// it without threading a reference through every call site.
type Executor struct {
	mu         sync.Mutex
	tasks      map[TaskID]*Task
	wakerCache map[TaskID]Waker

	readyQueue *queue.Ring[TaskID]

	pendingSpawns *doubleBuffer[pendingSpawn]
	sleepers      *doubleBuffer[sleeperEntry]

	checkSleepers uint32
}

// NewExecutor constructs an empty Executor.
func NewExecutor() *Executor {
	return &Executor{
		tasks:         make(map[TaskID]*Task),
		wakerCache:    make(map[TaskID]Waker),
		readyQueue:    queue.New[TaskID](readyQueueCapacity),
		pendingSpawns: newDoubleBuffer[pendingSpawn](pendingSpawnCapacity),
		sleepers:      newDoubleBuffer[sleeperEntry](sleeperCapacity),
	}
}

// taskWaker implements Waker by re-enqueuing a specific task id onto the
// executor's ready queue.
type taskWaker struct {
	id TaskID
	e  *Executor
}

func (w *taskWaker) Wake() {
	if err := w.e.readyQueue.Push(w.id); err != nil {
		panic("async: ready queue full (increase readyQueueCapacity)")
	}
}

// SpawnTask registers f directly with the executor and admits it to the
// ready queue immediately. It is intended for boot-time spawns made before
// the run loop has started, where there is no risk of contending with a
// poll in progress. Tasks that spawn further work from within their own
// poll should prefer SpawnAsync.
func (e *Executor) SpawnTask(f Future[unit]) TaskID {
	task := NewTask(f)

	e.mu.Lock()
	e.tasks[task.id] = task
	e.mu.Unlock()

	if err := e.readyQueue.Push(task.id); err != nil {
		panic("async: ready queue full (increase readyQueueCapacity)")
	}
	return task.id
}

// doneFuture resolves once some out-of-band producer sets *done to a
// non-zero value and wakes waker. It backs both the admission future
// returned by SpawnAsync and the Sleep future: in both cases the caller
// just needs to know "has the thing I'm waiting on happened yet", and the
// waker/done-flag pair is how that's communicated across the boundary.
type doneFuture struct {
	waker *AtomicWaker
	done  *int32
}

func (s *doneFuture) Poll(cx *Context) (unit, PollState) {
	if atomic.LoadInt32(s.done) != 0 {
		return unit{}, Ready
	}
	s.waker.Take()
	s.waker.Register(cx.Waker())
	if atomic.LoadInt32(s.done) != 0 {
		return unit{}, Ready
	}
	return unit{}, Pending
}

// SpawnAsync queues f for admission and returns a future that becomes Ready
// once the task has actually been inserted into the ready queue. Use this
// from within a running task's poll to respect the executor's backpressure
// on the pending-spawns queue instead of calling SpawnTask (which requires
// ready-queue capacity to be available immediately).
func (e *Executor) SpawnAsync(f Future[unit]) Future[unit] {
	task := NewTask(f)
	waker := &AtomicWaker{}
	done := new(int32)

	spawn := pendingSpawn{task: task, waker: waker, done: done}
	if err := e.pendingSpawns.push(spawn); err != nil {
		// Deferred rather than fatal: the entry goes onto the alternate
		// half, which the next swap makes the front, so a later
		// processPendingSpawns admits it.
		e.pendingSpawns.mu.Lock()
		back := e.pendingSpawns.back
		e.pendingSpawns.mu.Unlock()
		if err := back.Push(spawn); err != nil {
			panic("async: pending-spawn queue full (increase pendingSpawnCapacity)")
		}
	}

	return &doneFuture{waker: waker, done: done}
}

// addSleeper registers a deadline-triggered wake. Called by Sleep.
func (e *Executor) addSleeper(waker *AtomicWaker, deadline ktime.Instant, done *int32) {
	if err := e.sleepers.push(sleeperEntry{waker: waker, deadline: deadline, done: done}); err != nil {
		panic("async: sleeper queue full (increase sleeperCapacity)")
	}
}

// RequestSleeperCheck is called by the PIT timer interrupt handler to ask
// the executor to re-evaluate outstanding sleep deadlines on its next loop
// iteration. It must be safe to call from interrupt context.
func (e *Executor) RequestSleeperCheck() {
	atomic.StoreUint32(&e.checkSleepers, 1)
}

// Run drives the executor forever. It never returns.
func (e *Executor) Run() {
	for {
		e.processSleepers()
		e.runReadyTasks()
		e.processPendingSpawns()
		e.haltIfIdle()
	}
}

// processSleepers implements loop step 1: if the timer interrupt asked for a
// re-check, swap the sleepers queue, wake everything past its deadline, and
// carry the rest forward.
func (e *Executor) processSleepers() {
	if !atomic.CompareAndSwapUint32(&e.checkSleepers, 1, 0) {
		return
	}

	now := ktime.Now()
	drain := e.sleepers.swap()
	for {
		entry, ok := drain.Pop()
		if !ok {
			break
		}

		if now.After(entry.deadline) || now == entry.deadline {
			atomic.StoreInt32(entry.done, 1)
			entry.waker.Wake()
		} else {
			if err := e.sleepers.push(entry); err != nil {
				panic("async: sleeper queue full while re-queuing survivors")
			}
		}
	}
}

// runReadyTasks implements loop step 2.
func (e *Executor) runReadyTasks() {
	for {
		id, ok := e.readyQueue.Pop()
		if !ok {
			break
		}

		e.mu.Lock()
		task, exists := e.tasks[id]
		e.mu.Unlock()
		if !exists {
			continue
		}

		e.mu.Lock()
		waker, cached := e.wakerCache[id]
		if !cached {
			waker = &taskWaker{id: id, e: e}
			e.wakerCache[id] = waker
		}
		e.mu.Unlock()

		cx := NewContext(waker)
		if task.poll(cx) == Ready {
			e.mu.Lock()
			delete(e.tasks, id)
			delete(e.wakerCache, id)
			e.mu.Unlock()
		}
	}
}

// processPendingSpawns implements loop step 3.
func (e *Executor) processPendingSpawns() {
	drain := e.pendingSpawns.swap()
	for {
		spawn, ok := drain.Pop()
		if !ok {
			break
		}

		e.mu.Lock()
		e.tasks[spawn.task.id] = spawn.task
		e.mu.Unlock()

		if err := e.readyQueue.Push(spawn.task.id); err != nil {
			e.mu.Lock()
			delete(e.tasks, spawn.task.id)
			e.mu.Unlock()

			if err := e.pendingSpawns.push(spawn); err != nil {
				panic("async: pending-spawn queue full while re-queuing a deferred spawn")
			}
			continue
		}

		atomic.StoreInt32(spawn.done, 1)
		spawn.waker.Wake()
	}
}

// haltIfIdle implements loop step 4: if there is truly nothing to do, halt
// until the next interrupt arrives. Interrupts are disabled across the
// emptiness check and the halt itself so a wakeup that arrives in between
// cannot be missed.
func (e *Executor) haltIfIdle() {
	cpu.DisableInterrupts()
	if e.readyQueue.IsEmpty() && e.pendingSpawns.isEmpty() && e.sleepers.isEmpty() {
		cpu.EnableAndHalt()
	} else {
		cpu.EnableInterrupts()
	}
}

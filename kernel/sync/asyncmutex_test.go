package sync

import (
	"gopheros/kernel/async"
	"testing"
)

type noopWaker struct{ woken bool }

func (w *noopWaker) Wake() { w.woken = true }

func TestAsyncMutexTryLock(t *testing.T) {
	m := NewAsyncMutex(42)

	guard, ok := m.TryLock()
	if !ok {
		t.Fatal("expected first TryLock to succeed")
	}
	if got := *guard.Value(); got != 42 {
		t.Fatalf("expected guarded value 42; got %d", got)
	}

	if _, ok := m.TryLock(); ok {
		t.Fatal("expected second TryLock to fail while held")
	}

	guard.Unlock()

	if _, ok := m.TryLock(); !ok {
		t.Fatal("expected TryLock to succeed after Unlock")
	}
}

func TestAsyncMutexLockSuspendsWhenContended(t *testing.T) {
	m := NewAsyncMutex("hello")

	first, ok := m.TryLock()
	if !ok {
		t.Fatal("expected first TryLock to succeed")
	}

	future := m.Lock()
	waker := &noopWaker{}
	cx := async.NewContext(waker)

	if _, state := future.Poll(cx); state != async.Pending {
		t.Fatal("expected Lock() future to be Pending while mutex is held")
	}

	first.Unlock()

	if !waker.woken {
		t.Fatal("expected Unlock to wake the queued waiter")
	}

	guard, state := future.Poll(cx)
	if state != async.Ready {
		t.Fatal("expected Lock() future to be Ready after Unlock")
	}
	if got := *guard.Value(); got != "hello" {
		t.Fatalf("expected guarded value %q; got %q", "hello", got)
	}
}

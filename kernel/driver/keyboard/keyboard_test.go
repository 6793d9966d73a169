package keyboard

import (
	"gopheros/kernel/async"
	"gopheros/kernel/queue"
	"testing"
)

// resetState replaces the package-level queue and waker with fresh values
// so tests don't see scancodes left over from a previous test.
func resetState() {
	scancodes = queue.New[uint8](scancodeQueueCapacity)
	waker = async.AtomicWaker{}
}

func TestScancodeFIFOOrderNoDuplication(t *testing.T) {
	resetState()

	for _, b := range []uint8{0x1E, 0x30, 0x2E} {
		if err := scancodes.Push(b); err != nil {
			t.Fatalf("unexpected push error: %v", err)
		}
	}

	s := NewScancodeStream()
	cx := async.NewContext(noopWaker{})
	for _, want := range []uint8{0x1E, 0x30, 0x2E} {
		got, state := s.Next().Poll(cx)
		if state != async.Ready {
			t.Fatalf("expected Ready with a queued byte, got Pending")
		}
		if got != want {
			t.Fatalf("expected byte %#x, got %#x", want, got)
		}
	}
}

func TestOverflowDropsExactlyTheOverflowingBytes(t *testing.T) {
	resetState()
	// scancodeQueueCapacity bytes fill the queue exactly.
	for i := 0; i < scancodeQueueCapacity; i++ {
		if err := scancodes.Push(uint8(i)); err != nil {
			t.Fatalf("unexpected push error filling queue: %v", err)
		}
	}

	// One more push must report Full rather than silently dropping
	// without signal; the interrupt handler is what turns this into a
	// logged warning (see handleScancode).
	if err := scancodes.Push(0xFF); err == nil {
		t.Fatalf("expected push on a full queue to report an error")
	}

	drained := 0
	for {
		if _, ok := scancodes.Pop(); !ok {
			break
		}
		drained++
	}
	if drained != scancodeQueueCapacity {
		t.Fatalf("expected exactly %d bytes retained, got %d", scancodeQueueCapacity, drained)
	}
}

func TestNextRegistersWakerWhenEmpty(t *testing.T) {
	resetState()

	s := NewScancodeStream()
	w := &countingWaker{}
	cx := async.NewContext(w)

	_, state := s.Next().Poll(cx)
	if state != async.Pending {
		t.Fatalf("expected Pending on an empty queue, got Ready")
	}

	scancodes.Push(0x9D)
	waker.Wake()

	if w.count == 0 {
		t.Fatalf("expected the registered waker to have been woken")
	}
}

type noopWaker struct{}

func (noopWaker) Wake() {}

type countingWaker struct{ count int }

func (w *countingWaker) Wake() { w.count++ }

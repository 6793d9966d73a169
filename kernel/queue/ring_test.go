package queue

import "testing"

func TestRingPushPop(t *testing.T) {
	r := New[int](3)

	for i := 0; i < 3; i++ {
		if err := r.Push(i); err != nil {
			t.Fatalf("unexpected error pushing %d: %v", i, err)
		}
	}

	if err := r.Push(3); err == nil {
		t.Fatal("expected Push on full queue to return an error")
	} else if fullErr, ok := err.(*Full); !ok {
		t.Fatalf("expected *Full error; got %T", err)
	} else if fullErr.Capacity != 3 {
		t.Fatalf("expected Full.Capacity to be 3; got %d", fullErr.Capacity)
	}

	for i := 0; i < 3; i++ {
		got, ok := r.Pop()
		if !ok {
			t.Fatalf("expected Pop to return a value at index %d", i)
		}
		if got != i {
			t.Fatalf("expected FIFO order; expected %d, got %d", i, got)
		}
	}

	if _, ok := r.Pop(); ok {
		t.Fatal("expected Pop on empty queue to return ok=false")
	}
}

func TestRingWrapAround(t *testing.T) {
	r := New[int](2)

	r.Push(1)
	r.Push(2)
	r.Pop()
	r.Push(3)

	first, _ := r.Pop()
	second, _ := r.Pop()

	if first != 2 || second != 3 {
		t.Fatalf("expected [2 3] after wraparound; got [%d %d]", first, second)
	}
}

func TestRingLenAndEmpty(t *testing.T) {
	r := New[int](5)

	if !r.IsEmpty() {
		t.Fatal("expected new queue to be empty")
	}

	r.Push(1)
	r.Push(2)

	if exp, got := 2, r.Len(); got != exp {
		t.Fatalf("expected Len() to be %d; got %d", exp, got)
	}

	if exp, got := 5, r.Capacity(); got != exp {
		t.Fatalf("expected Capacity() to be %d; got %d", exp, got)
	}
}

func TestOverflowScenario(t *testing.T) {
	r := New[byte](3)
	dropped := 0

	for _, b := range []byte{1, 2, 3, 4, 5} {
		if err := r.Push(b); err != nil {
			dropped++
		}
	}

	if exp, got := 2, dropped; got != exp {
		t.Fatalf("expected %d bytes dropped; got %d", exp, got)
	}

	var received []byte
	for {
		b, ok := r.Pop()
		if !ok {
			break
		}
		received = append(received, b)
	}

	exp := []byte{1, 2, 3}
	if len(received) != len(exp) {
		t.Fatalf("expected %v; got %v", exp, received)
	}
	for i := range exp {
		if received[i] != exp[i] {
			t.Fatalf("expected %v; got %v", exp, received)
		}
	}
}

// Package keyboard turns the keyboard IRQ1 interrupt into a lazily-consumed
// stream of scancodes: the interrupt handler pushes bytes onto a bounded
// queue and wakes a shared waker; a task drains the queue through
// ScancodeStream. Grounded on original_source's kernel/src/task/keyboard.rs
// (add_scancode / ScancodeStream), translated from a futures Stream onto
// this repo's hand-rolled async.Future. Implements spec §4.8.
package keyboard

import (
	"gopheros/kernel/async"
	"gopheros/kernel/cpu"
	"gopheros/kernel/driver/pic"
	"gopheros/kernel/gate"
	"gopheros/kernel/kfmt"
	"gopheros/kernel/queue"
)

// scancodePort is the I/O port the keyboard controller latches the most
// recent scancode byte on, per §6.1.
const scancodePort = 0x60

// keyboardIRQVector is the vector IRQ1 is remapped to, mirroring pit's
// timerIRQVector.
const keyboardIRQVector gate.InterruptNumber = 33

// scancodeQueueCapacity bounds how many scancodes may be buffered between
// interrupt and consumer before the handler starts dropping bytes, per
// spec §4.8 / §7 (queue overflow policy: drop and log, not panic).
const scancodeQueueCapacity = 100

var (
	scancodes = queue.New[uint8](scancodeQueueCapacity)
	waker     async.AtomicWaker
)

// Init installs the IRQ1 handler and unmasks the line. Must be called once
// during boot, after gate.Init.
func Init() {
	gate.HandleInterrupt(keyboardIRQVector, 0, handleScancode)
	pic.Unmask(1)
}

// handleScancode runs on every IRQ1: it must not block or allocate. It
// reads the latched scancode byte, pushes it onto the bounded queue, and
// wakes whatever task is waiting on ScancodeStream.Next. A full queue drops
// the byte and logs a warning rather than blocking or panicking, per §7.
func handleScancode(_ *gate.Registers) {
	b := cpu.PortInB(scancodePort)
	if err := scancodes.Push(b); err != nil {
		kfmt.Printf("[keyboard] WARNING: scancode queue full; dropping byte 0x%x\n", b)
	} else {
		waker.Wake()
	}
	pic.SendEOI(1)
}

// ScancodeStream is a lazy sequence producer over the scancodes pushed by
// the interrupt handler. Its zero value is usable.
type ScancodeStream struct{}

// NewScancodeStream constructs a ScancodeStream reading from the package's
// single shared scancode queue. Implementations in other languages model
// this as a singleton-backed Stream; in Go the queue itself is the
// singleton and ScancodeStream is just a handle onto it.
func NewScancodeStream() *ScancodeStream {
	return &ScancodeStream{}
}

// Next returns a future that resolves to the next scancode byte once one
// becomes available. Implements §4.8's two-step poll: a fast-path pop,
// then (if empty) registering the caller's waker and retrying once to close
// the race against a producer that wakes between the fast-path pop and
// registration.
func (s *ScancodeStream) Next() async.Future[uint8] {
	return &nextFuture{}
}

type nextFuture struct{}

func (f *nextFuture) Poll(cx *async.Context) (uint8, async.PollState) {
	if b, ok := scancodes.Pop(); ok {
		return b, async.Ready
	}

	waker.Take()
	waker.Register(cx.Waker())

	if b, ok := scancodes.Pop(); ok {
		waker.Take()
		return b, async.Ready
	}
	return 0, async.Pending
}

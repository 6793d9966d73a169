// Package pit programs the legacy 8253/8254 Programmable Interval Timer to
// fire at a fixed 100Hz rate and wires its IRQ0 handler to the two things
// that depend on a steady tick: the monotonic nanosecond clock in
// kernel/time and the async executor's sleeper re-check flag. Implements
// the "timer tick handler" collaborator contract from spec §6.3.
package pit

import (
	"gopheros/kernel/async"
	"gopheros/kernel/cpu"
	"gopheros/kernel/driver/pic"
	"gopheros/kernel/gate"
	ktime "gopheros/kernel/time"
	"time"
)

// I/O ports and command-register bits for channel 0 of the PIT, per §6.1.
const (
	channel0DataPort = 0x40
	commandPort      = 0x43

	// channel0 selects PIT channel 0 (the one wired to IRQ0); lobyteHibyte
	// selects the 16-bit access mode this driver always uses;
	// rateGenerator selects operating mode 2 (periodic interrupt).
	channel0      = 0 << 6
	lobyteHibyte  = 3 << 4
	rateGenerator = 2 << 1
)

// pitFrequency is the PIT's fixed input clock rate in Hz.
const pitFrequency = 1193182

// targetHz is the interrupt rate this driver programs the PIT for; the
// design notes (§9, §4.7) assume a 100Hz/10ms tick throughout.
const targetHz = 100

// tickPeriod is the duration of simulated time each IRQ0 represents.
const tickPeriod = time.Second / targetHz

// timerIRQVector is the interrupt vector IRQ0 is remapped to once the
// platform bring-up (out of scope per spec §1) has reprogrammed the PICs
// past the CPU exception range.
const timerIRQVector gate.InterruptNumber = 32

// portOutFn indirects the raw asm port writer so tests can substitute a
// fake register file instead of touching real hardware.
var portOutFn = cpu.PortOutB

// Init programs PIT channel 0 for a periodic interrupt at targetHz,
// installs the IRQ0 handler, and unmasks the line. The executor must
// already be initialized (async.Init) since the handler reaches into it on
// every tick.
func Init() {
	divisor := uint16(pitFrequency / targetHz)

	portOutFn(commandPort, channel0|lobyteHibyte|rateGenerator)
	portOutFn(channel0DataPort, uint8(divisor))
	portOutFn(channel0DataPort, uint8(divisor>>8))

	gate.HandleInterrupt(timerIRQVector, 0, handleTick)
	pic.Unmask(0)
}

// handleTick runs on every IRQ0: it must not block or allocate. It advances
// the monotonic clock by one tick period, asks the executor to re-evaluate
// sleeper deadlines on its next loop iteration, and acknowledges the
// interrupt.
func handleTick(_ *gate.Registers) {
	ktime.Tick(tickPeriod)
	if e := async.Global(); e != nil {
		e.RequestSleeperCheck()
	}
	pic.SendEOI(0)
}

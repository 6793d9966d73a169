// Package time implements the kernel's monotonic clock: a nanosecond
// counter advanced exclusively by the PIT timer interrupt handler, and the
// Instant type used throughout the executor and sleep primitives to reason
// about deadlines.
package time

import (
	"sync/atomic"
	"time"
)

// nanosSinceBoot is advanced only by Tick, called from the PIT interrupt
// handler. All other readers observe it through Now.
var nanosSinceBoot uint64

// Tick advances the monotonic clock by delta. It is invoked from the PIT
// interrupt handler and must not block or allocate.
func Tick(delta time.Duration) {
	atomic.AddUint64(&nanosSinceBoot, uint64(delta.Nanoseconds()))
}

// Instant is a monotonic point in time expressed as nanoseconds since boot.
// Instants from the same kernel instance are totally ordered by numeric
// comparison.
type Instant struct {
	nanos uint64
}

// NewInstant constructs an Instant from a raw nanosecond timestamp. Exposed
// primarily for tests that need to fabricate specific points in time.
func NewInstant(nanos uint64) Instant {
	return Instant{nanos: nanos}
}

// Now returns an Instant representing the current value of the monotonic
// clock. Resolution is bounded by the PIT tick period (10ms at 100Hz).
func Now() Instant {
	return Instant{nanos: atomic.LoadUint64(&nanosSinceBoot)}
}

// Add returns the Instant offset from i by d.
func (i Instant) Add(d time.Duration) Instant {
	return Instant{nanos: i.nanos + uint64(d.Nanoseconds())}
}

// Until returns the duration from i until other. If other is at or before i,
// the result is zero rather than negative.
func (i Instant) Until(other Instant) time.Duration {
	if other.nanos <= i.nanos {
		return 0
	}
	return time.Duration(other.nanos - i.nanos)
}

// Before reports whether i occurs strictly before other.
func (i Instant) Before(other Instant) bool {
	return i.nanos < other.nanos
}

// After reports whether i occurs strictly after other.
func (i Instant) After(other Instant) bool {
	return i.nanos > other.nanos
}

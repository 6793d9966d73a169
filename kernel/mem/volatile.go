package mem

import "sync/atomic"

// Reg32 is a 32-bit memory-mapped hardware register. Go has no equivalent of
// a volatile qualifier, so registers are modeled as atomic values: reads and
// writes go through sync/atomic, which prevents the compiler from caching a
// register's value in a CPU register or eliding a store it thinks is dead,
// either of which would silently break a polling loop against real hardware.
type Reg32 struct {
	v uint32
}

// Load reads the current value of the register.
func (r *Reg32) Load() uint32 {
	return atomic.LoadUint32(&r.v)
}

// Store writes val to the register.
func (r *Reg32) Store(val uint32) {
	atomic.StoreUint32(&r.v, val)
}

// SetBits ORs mask into the register's current value.
func (r *Reg32) SetBits(mask uint32) {
	for {
		old := r.Load()
		if atomic.CompareAndSwapUint32(&r.v, old, old|mask) {
			return
		}
	}
}

// ClearBits clears the bits in mask from the register's current value.
func (r *Reg32) ClearBits(mask uint32) {
	for {
		old := r.Load()
		if atomic.CompareAndSwapUint32(&r.v, old, old&^mask) {
			return
		}
	}
}

// HasBits returns true if all of the bits in mask are currently set.
func (r *Reg32) HasBits(mask uint32) bool {
	return r.Load()&mask == mask
}

// Reg64 is a 64-bit memory-mapped hardware register.
type Reg64 struct {
	v uint64
}

// Load reads the current value of the register.
func (r *Reg64) Load() uint64 {
	return atomic.LoadUint64(&r.v)
}

// Store writes val to the register.
func (r *Reg64) Store(val uint64) {
	atomic.StoreUint64(&r.v, val)
}

// Package pic provides the minimal 8259 Programmable Interrupt Controller
// support this kernel needs beyond the platform bring-up that already
// remapped the master/slave PIC vectors (out of scope per spec §1): sending
// End-Of-Interrupt so a serviced IRQ doesn't starve its peers, and masking
// individual IRQ lines so a driver can enable exactly the interrupts it
// handles.
package pic

import "gopheros/kernel/cpu"

// portInFn/portOutFn indirect the raw asm port accessors so tests can
// substitute a fake register file instead of touching real hardware.
var (
	portInFn  = cpu.PortInB
	portOutFn = cpu.PortOutB
)

// I/O ports for the master and slave 8259 PICs, per §6.1.
const (
	masterCommandPort = 0x20
	masterDataPort    = 0x21
	slaveCommandPort  = 0xA0
	slaveDataPort     = 0xA1
)

// eoiCommand is the Non-Specific End-Of-Interrupt command written back to
// whichever PIC (or both, for a slave IRQ) serviced the interrupt.
const eoiCommand uint8 = 0x20

// slaveIRQBase is the first IRQ line owned by the slave PIC once the two
// controllers have been cascaded and remapped (IRQ8-15).
const slaveIRQBase = 8

// SendEOI acknowledges IRQ irq, signalling the master PIC (and the slave
// too, if the IRQ originated there) that the handler has finished. Called
// at the tail of every hardware interrupt handler installed on top of the
// PIC, per §6.3's "timer tick handler" contract.
func SendEOI(irq uint8) {
	if irq >= slaveIRQBase {
		portOutFn(slaveCommandPort, eoiCommand)
	}
	portOutFn(masterCommandPort, eoiCommand)
}

// maskPort returns the data port that gates IRQ and the bit within it.
func maskPort(irq uint8) (port uint16, bit uint8) {
	if irq >= slaveIRQBase {
		return slaveDataPort, irq - slaveIRQBase
	}
	return masterDataPort, irq
}

// Unmask enables delivery of IRQ irq by clearing its bit in the
// corresponding PIC's Interrupt Mask Register.
func Unmask(irq uint8) {
	port, bit := maskPort(irq)
	mask := portInFn(port)
	portOutFn(port, mask&^(1<<bit))
}

// Mask disables delivery of IRQ irq.
func Mask(irq uint8) {
	port, bit := maskPort(irq)
	mask := portInFn(port)
	portOutFn(port, mask|(1<<bit))
}

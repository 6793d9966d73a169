// Package kmain is the kernel's entrypoint: it wires together the
// components spec §2 lists leaves-first into a running system and hands
// control to the cooperative executor, which never returns.
package kmain

import (
	"gopheros/kernel"
	"gopheros/kernel/async"
	"gopheros/kernel/driver/ahci"
	"gopheros/kernel/driver/keyboard"
	"gopheros/kernel/driver/pit"
	"gopheros/kernel/gate"
	"gopheros/kernel/hal"
	"gopheros/kernel/kfmt"
	"gopheros/kernel/mem"
)

var errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}

// Kmain is invoked by the rt0 assembly code after the bootloader handoff,
// GDT/IDT scaffolding, page tables and kernel heap have been set up — all
// of that is out of scope per spec §1 and assumed already done by the time
// this function runs. hbaPhysAddr and ahciRegionPhysAddr are the two
// physical ranges described in §6.3's pci_device_info/ahci_region
// contracts: the PCI-discovered HBA register block (BAR5, low 4 bits
// masked) and a zeroed, contiguous region of at least ahci.AhciMemorySize
// bytes the AHCI driver may use as working memory.
//
// Kmain is not expected to return; if it does, it panics rather than fall
// off the end silently.
//
//go:noinline
func Kmain(hbaPhysAddr, ahciRegionPhysAddr uintptr) {
	kfmt.Printf("booting kernel\n")

	gate.Init()

	async.Init()

	pit.Init()
	keyboard.Init()

	ahci.HbaPhysBase = mem.PhysAddr(hbaPhysAddr)
	ahci.WorkingRegionBase = mem.PhysAddr(ahciRegionPhysAddr)
	hal.DetectHardware()

	async.Global().Run()

	kfmt.Panic(errKmainReturned)
}

package ahci

import "gopheros/kernel/mem"

// commandHeaderAddr returns the physical address of command header slot s
// within port p's command list, relative to regionBase.
func commandHeaderAddr(regionBase mem.PhysAddr, p, s int) mem.PhysAddr {
	return regionBase + mem.PhysAddr(p*portSize+s*commandHeaderSize)
}

// commandListAddr returns the physical address of port p's command list
// (32 contiguous command headers).
func commandListAddr(regionBase mem.PhysAddr, p int) mem.PhysAddr {
	return regionBase + mem.PhysAddr(p*portSize)
}

// receivedFisAddr returns the physical address of port p's received-FIS
// structure.
func receivedFisAddr(regionBase mem.PhysAddr, p int) mem.PhysAddr {
	return regionBase + mem.PhysAddr(p*portSize+commandListSize)
}

// commandTableAddr returns the physical address of command table slot s
// for port p.
func commandTableAddr(regionBase mem.PhysAddr, p, s int) mem.PhysAddr {
	return regionBase + mem.PhysAddr(p*portSize+commandTableListOffset+s*commandTableSize)
}

// prdtEntryAddr returns the physical address of PRDT entry i inside the
// command table for port p, slot s.
func prdtEntryAddr(regionBase mem.PhysAddr, p, s, i int) mem.PhysAddr {
	return commandTableAddr(regionBase, p, s) + mem.PhysAddr(prdtOffsetInTable+i*prdtEntrySize)
}

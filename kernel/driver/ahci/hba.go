package ahci

import (
	"gopheros/kernel/mem"
	"unsafe"
)

// HbaPortRegs is the 128-byte register block for a single AHCI port,
// mapped directly onto the corresponding slice of the HBA's MMIO region.
type HbaPortRegs struct {
	CommandListBaseLow  mem.Reg32 // 0x00
	CommandListBaseHigh mem.Reg32 // 0x04
	FisBaseLow          mem.Reg32 // 0x08
	FisBaseHigh         mem.Reg32 // 0x0C
	InterruptStatus     mem.Reg32 // 0x10
	InterruptEnable     mem.Reg32 // 0x14
	CommandStatus       mem.Reg32 // 0x18
	reserved0           mem.Reg32 // 0x1C
	TaskFileData        mem.Reg32 // 0x20
	Signature           mem.Reg32 // 0x24
	SataStatus          mem.Reg32 // 0x28
	SataControl         mem.Reg32 // 0x2C
	SataError           mem.Reg32 // 0x30
	SataActive          mem.Reg32 // 0x34
	CommandIssue        mem.Reg32 // 0x38
	SataNotification    mem.Reg32 // 0x3C
	FisSwitchControl    mem.Reg32 // 0x40
	reserved1           [0x2C]byte
	vendor              [0x10]byte
}

// HbaMemory is the AHCI controller's memory-mapped register block: a fixed
// set of global registers followed by 32 per-port register blocks.
type HbaMemory struct {
	HostCapability      mem.Reg32 // 0x00
	GlobalHostControl   mem.Reg32 // 0x04
	InterruptStatus     mem.Reg32 // 0x08
	PortImplemented     mem.Reg32 // 0x0C
	Version             mem.Reg32 // 0x10
	CCCControl          mem.Reg32 // 0x14
	CCCPorts            mem.Reg32 // 0x18
	EMLocation          mem.Reg32 // 0x1C
	EMControl           mem.Reg32 // 0x20
	HostCapabilitiesExt mem.Reg32 // 0x24
	BiosHandoffControl  mem.Reg32 // 0x28
	reserved            [0x74]byte
	vendor              [0x60]byte
	Ports               [numPorts]HbaPortRegs // starting at 0x100
}

// mapHbaMemory overlays an HbaMemory struct onto the identity-mapped
// virtual address corresponding to physBase.
func mapHbaMemory(physBase mem.PhysAddr) *HbaMemory {
	return (*HbaMemory)(unsafe.Pointer(physBase.ToVirtAddr().Pointer()))
}

// reset performs an HBA reset: request it, then spin until the controller
// clears the reset bit on its own, bounded by resetSpinLimit so a
// non-responsive controller fails instead of hanging boot.
func (h *HbaMemory) reset() bool {
	h.GlobalHostControl.SetBits(ghcHbaReset)
	for i := 0; i < resetSpinLimit; i++ {
		if !h.GlobalHostControl.HasBits(ghcHbaReset) {
			return true
		}
	}
	return false
}

// init resets the controller, then enables AHCI mode and interrupts.
func (h *HbaMemory) init() bool {
	if !h.reset() {
		return false
	}
	h.GlobalHostControl.SetBits(ghcAhciEnable | ghcInterruptEnable)
	return true
}

// implementedPorts returns the indexes of ports the controller reports as
// implemented, derived from the PortImplemented bitmap.
func (h *HbaMemory) implementedPorts() []int {
	bitmap := h.PortImplemented.Load()
	ports := make([]int, 0, numPorts)
	for i := 0; i < numPorts; i++ {
		if bitmap&(1<<uint(i)) != 0 {
			ports = append(ports, i)
		}
	}
	return ports
}

// classify inspects a port's signature register to determine what, if
// anything, is attached to it.
func classify(regs *HbaPortRegs) DeviceKind {
	det := regs.SataStatus.Load() & sataStatusDetectMask
	if det != sataStatusDetectPresentWithComm {
		return KindNone
	}
	switch SataSignature(regs.Signature.Load()) {
	case SignatureATA:
		return KindSATA
	case SignatureATAPI:
		return KindSATAPI
	case SignatureSEMB:
		return KindSEMB
	case SignaturePortMult:
		return KindPortMult
	default:
		return KindUnknown
	}
}

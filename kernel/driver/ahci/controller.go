package ahci

import (
	"gopheros/device"
	"gopheros/kernel"
	"gopheros/kernel/kfmt"
	"gopheros/kernel/mem"
	"io"
)

// HbaPhysBase and WorkingRegionBase describe the two physical memory ranges
// this driver needs, per §6.3's pci_device_info/ahci_region contracts:
// HbaPhysBase is the HBA's own MMIO register block (PCI BAR5 with its low 4
// bits masked), and WorkingRegionBase is a separate, zeroed, at-least
// AhciMemorySize-byte range the driver lays out command lists, received-FIS
// areas, and command tables in. Locating the PCI device and reserving the
// working region is platform bring-up, out of scope per spec §1; kmain sets
// both from the boot handoff before hal.DetectHardware runs.
var (
	HbaPhysBase      mem.PhysAddr
	WorkingRegionBase mem.PhysAddr
)

// Controller is the device.Driver for the AHCI HBA: it owns the mapped
// register block, the per-port drivers it builds during DriverInit, and the
// Disk instances discovered while scanning implemented ports. Implements
// §4.2.
type Controller struct {
	mem   *HbaMemory
	ports []*Port
	disks []Disk
}

// probeForAHCI reports the controller present whenever kmain has configured
// both physical regions; there is no bus enumeration step in this build, so
// presence is simply "the platform told us where the HBA lives".
func probeForAHCI() device.Driver {
	if HbaPhysBase == 0 || WorkingRegionBase == 0 {
		return nil
	}
	return &Controller{}
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderBus,
		Probe: probeForAHCI,
	})
}

// DriverName implements device.Driver.
func (*Controller) DriverName() string { return "AHCI" }

// DriverVersion implements device.Driver.
func (*Controller) DriverVersion() (uint16, uint16, uint16) { return 0, 1, 0 }

// DriverInit maps the HBA's MMIO registers, resets and re-enables the
// controller, zeroes the per-port working memory region it is about to
// repurpose (§4.2 invariant 1), then probes every implemented port and
// builds a Disk for each one that reports a SATA or SATAPI device attached.
// Implements §4.2/§4.3.1.
func (c *Controller) DriverInit(w io.Writer) *kernel.Error {
	kernel.Memset(WorkingRegionBase.ToVirtAddr().Pointer(), 0, uintptr(AhciMemorySize))

	c.mem = mapHbaMemory(HbaPhysBase)
	if !c.mem.init() {
		return errControllerResetTimeout
	}
	kfmt.Fprintf(w, "capabilities: 0x%x\n", c.mem.HostCapability.Load())

	var nextID int
	for _, idx := range c.mem.implementedPorts() {
		regs := &c.mem.Ports[idx]
		kind := classify(regs)
		if kind != KindSATA && kind != KindSATAPI {
			continue
		}

		port := newPort(idx, regs, WorkingRegionBase)
		c.ports = append(c.ports, port)

		switch kind {
		case KindSATA:
			d := NewSataDisk(nextID, port)
			c.disks = append(c.disks, d)
		case KindSATAPI:
			d := NewSatapiDisk(nextID, port)
			c.disks = append(c.disks, d)
		}
		nextID++

		kfmt.Fprintf(w, "port %d: %s disk id %d\n", idx, kind.String(), nextID-1)
	}

	return nil
}

// Disks returns every disk discovered while scanning the controller's
// ports, satisfying kernel/hal's diskProvider interface.
func (c *Controller) Disks() []Disk {
	return c.disks
}

var errControllerResetTimeout = &kernel.Error{Module: "ahci", Message: "HBA reset timed out"}

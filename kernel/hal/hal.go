// Package hal drives hardware detection at boot: it walks the list of
// registered device drivers in priority order, initializes each one that
// reports its hardware present, and hands any disks it finds off to the
// disk service registry.
package hal

import (
	"bytes"
	"gopheros/device"
	"gopheros/kernel/driver/ahci"
	"gopheros/kernel/kfmt"
	"gopheros/kernel/service/disk"
	"sort"
)

// managedDevices tracks the drivers detected by the HAL.
type managedDevices struct {
	activeDrivers []device.Driver
}

var (
	devices managedDevices
	strBuf  bytes.Buffer
)

// DetectHardware probes for hardware devices and initializes the appropriate
// drivers. Successfully initialized drivers that expose disks register them
// with the disk service.
func DetectHardware() {
	drivers := device.DriverList()
	sort.Sort(drivers)

	probe(drivers)
}

// probe executes the probe function for each driver and invokes
// onDriverInit for each successfully initialized driver.
func probe(driverInfoList device.DriverInfoList) {
	var w = kfmt.PrefixWriter{Sink: kfmt.GetOutputSink()}

	for _, info := range driverInfoList {
		drv := info.Probe()
		if drv == nil {
			continue
		}

		strBuf.Reset()
		major, minor, patch := drv.DriverVersion()
		kfmt.Fprintf(&strBuf, "[hal] %s(%d.%d.%d): ", drv.DriverName(), major, minor, patch)
		w.Prefix = strBuf.Bytes()

		if err := drv.DriverInit(&w); err != nil {
			kfmt.Fprintf(&w, "init failed: %s\n", err.Message)
			continue
		}

		kfmt.Fprintf(&w, "initialized\n")
		onDriverInit(drv)
		devices.activeDrivers = append(devices.activeDrivers, drv)
	}
}

// diskProvider is implemented by drivers that enumerate disks once
// initialized, such as the AHCI HBA driver.
type diskProvider interface {
	Disks() []ahci.Disk
}

// onDriverInit is invoked by probe() whenever a piece of hardware is
// detected and successfully initialized. Drivers that expose disks are
// registered with the disk service so the rest of the kernel can look them
// up by id.
func onDriverInit(drv device.Driver) {
	provider, ok := drv.(diskProvider)
	if !ok {
		return
	}

	for _, d := range provider.Disks() {
		disk.Register(d)
	}
}

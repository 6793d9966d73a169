// Package device defines the common contract implemented by all hardware
// drivers in the kernel along with a priority-ordered registry used by the
// HAL to probe for devices at boot.
package device

import (
	"gopheros/kernel"
	"io"
)

// Driver is an interface implemented by all drivers.
type Driver interface {
	// DriverName returns the name of the driver.
	DriverName() string

	// DriverVersion returns the driver version.
	DriverVersion() (major uint16, minor uint16, patch uint16)

	// DriverInit initializes the device driver. Diagnostic output is
	// written to w.
	DriverInit(w io.Writer) *kernel.Error
}

// DetectOrder specifies the relative order in which the HAL attempts to
// probe a registered driver.
type DetectOrder uint8

const (
	// DetectOrderEarly is assigned to drivers that must be probed before
	// anything else, such as drivers supplying interrupt or timing
	// services that other drivers depend on.
	DetectOrderEarly DetectOrder = iota

	// DetectOrderBus is assigned to drivers that enumerate a bus or
	// controller (e.g. the AHCI HBA) and may expose further devices.
	DetectOrderBus

	// DetectOrderDefault is assigned to drivers with no particular
	// ordering requirement.
	DetectOrderDefault

	// DetectOrderLast is assigned to drivers that must be probed after
	// all others.
	DetectOrderLast
)

// DriverInfo describes a registered driver and the function used to probe
// for its presence.
type DriverInfo struct {
	// Order controls when this driver is probed relative to others.
	Order DetectOrder

	// Probe attempts to detect the hardware managed by this driver. It
	// returns nil if the hardware is not present.
	Probe func() Driver
}

// DriverInfoList implements sort.Interface ordering entries by Order.
type DriverInfoList []*DriverInfo

func (l DriverInfoList) Len() int           { return len(l) }
func (l DriverInfoList) Less(i, j int) bool { return l[i].Order < l[j].Order }
func (l DriverInfoList) Swap(i, j int)      { l[i], l[j] = l[j], l[i] }

var registeredDrivers DriverInfoList

// RegisterDriver adds info to the list of drivers that will be probed by the
// HAL when DetectHardware is called. It is typically invoked from an init()
// function inside a driver package.
func RegisterDriver(info *DriverInfo) {
	registeredDrivers = append(registeredDrivers, info)
}

// DriverList returns the list of currently registered drivers.
func DriverList() DriverInfoList {
	return registeredDrivers
}

// Package ahci implements the AHCI host bus adapter driver: HBA setup, the
// per-port command submission state machine, FIS encoding, and the SATA and
// SATAPI Disk implementations built on top of it. It is ported field for
// field from a Rust AHCI driver, translated into Go's explicit volatile
// register idiom in place of a Volatile<T> wrapper type.
package ahci

import "gopheros/kernel"

// sectorSize is the fixed logical sector size assumed for SATA devices.
const sectorSize = 512

var (
	errBadSectorCount = &kernel.Error{Module: "ahci", Message: "sector count must be in [1, 256)"}
	errPortBusy       = &kernel.Error{Module: "ahci", Message: "port busy: no free command slot"}
	errIOError        = &kernel.Error{Module: "ahci", Message: "I/O error: fatal interrupt-status bit latched"}
	errUnsupported    = &kernel.Error{Module: "ahci", Message: "operation not supported"}
)

// Per-port working memory layout, in bytes. A single contiguous physical
// region holds 32 of these blocks back to back.
const (
	commandListSize     = 32 * 32 // 32 command headers, 32 bytes each
	receivedFisSize     = 256
	commandHeaderSize   = 32
	prdtOffsetInTable   = 0x80
	prdtEntrySize       = 16
	prdtEntriesPerTable = 32 // PRDT entries per command table
	commandTableSize    = prdtOffsetInTable + prdtEntrySize*prdtEntriesPerTable

	// commandTableListOffset is the offset of the first command table
	// relative to the start of a port's working memory block.
	commandTableListOffset = commandListSize + receivedFisSize

	// portSize is the total per-port working memory size: a command
	// list, a received-FIS area, and 32 command tables.
	portSize = commandListSize + receivedFisSize + 32*commandTableSize

	// numPorts is the number of ports a single HBA region's working
	// memory is laid out for; also the width of the ports-implemented
	// bitmap.
	numPorts = 32
)

// AhciMemorySize is the total size, in bytes, of the contiguous physical
// region the HBA init code requires: enough working memory for numPorts
// ports laid out as described above.
const AhciMemorySize = portSize * numPorts

// AtaCommand identifies an ATA command register value.
type AtaCommand uint8

const (
	AtaCommandReadDma     AtaCommand = 0xC8
	AtaCommandReadDmaExt  AtaCommand = 0x25
	AtaCommandWriteDma    AtaCommand = 0xCA
	AtaCommandWriteDmaExt AtaCommand = 0x35
	AtaCommandIdentify    AtaCommand = 0xEC
	AtaCommandPacket      AtaCommand = 0xA0
	AtaCommandIdentifyPacket AtaCommand = 0xA1
)

// Task-file-data register bits.
const (
	ataDevBusy uint32 = 0x80
	ataDevDrq  uint32 = 0x08
)

// Per-port interrupt-status bits that indicate a fatal or task-file error
// (bits 27-30).
const hbaPxISTaskFileErr uint32 = 1<<30 | 1<<29 | 1<<28 | 1<<27

// HbaPxCMDBit are bitmasks for the per-port Command/Status register.
const (
	cmdStart             uint32 = 0x0001
	cmdFisReceiveEnable  uint32 = 0x0010
	cmdFisReceiveRunning uint32 = 0x4000
	cmdListRunning       uint32 = 0x8000
	cmdSpinUpDevice      uint32 = 1 << 1
	cmdPowerOnDevice     uint32 = 1 << 2
)

// SataSignature is the value of a port's Signature register used to
// classify the attached device.
type SataSignature uint32

const (
	SignatureATA      SataSignature = 0x00000101
	SignatureATAPI    SataSignature = 0xEB140101
	SignatureSEMB     SataSignature = 0xC33C0101
	SignaturePortMult SataSignature = 0x96690101
)

// DeviceKind classifies the device attached to a probed port.
type DeviceKind int

const (
	KindNone DeviceKind = iota
	KindUnknown
	KindSATA
	KindSATAPI
	KindSEMB
	KindPortMult
)

func (k DeviceKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindSATA:
		return "SATA"
	case KindSATAPI:
		return "SATAPI"
	case KindSEMB:
		return "SEMB"
	case KindPortMult:
		return "port-multiplier"
	default:
		return "unknown"
	}
}

// Global Host Control register bits.
const (
	ghcAhciEnable      uint32 = 1 << 31
	ghcInterruptEnable uint32 = 1 << 1
	ghcHbaReset        uint32 = 1 << 0
)

// SATA Status register: device-detect field (bits 0-3).
const sataStatusDetectMask uint32 = 0x0F
const sataStatusDetectPresentWithComm uint32 = 0x3

// sataControlDisablePowerTransitions disables Partial, Slumber and DevSleep
// interface power management transitions (IPM field, bits 8-11, set to
// 0x7 disables all three).
const sataControlDisablePowerTransitions uint32 = 0x7 << 8

// Bounded spin counts used by the polling loops in §4.2/§4.3. These are
// generous but finite so a genuinely wedged controller fails instead of
// hanging the boot sequence forever.
const (
	resetSpinLimit    = 1 << 20
	commandSpinLimit  = 1 << 24
	portStopSpinLimit = 1 << 20
)

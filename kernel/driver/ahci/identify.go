package ahci

import (
	"gopheros/kernel/mem"
	"unsafe"
)

// identifyBufferSize is the fixed size of the buffer IDENTIFY (DEVICE) and
// IDENTIFY PACKET DEVICE commands fill in, per the ATA specification.
const identifyBufferSize = sectorSize

// IdentifyInfo holds the fields of an IDENTIFY response this driver cares
// about: enough to log a disk's vitals and compute its capacity. Implements
// §4.3.7.
type IdentifyInfo struct {
	Serial      string
	Firmware    string
	Model       string
	SectorCount uint64
}

// identifyBuf is the DMA-visible buffer IDENTIFY commands transfer into. It
// is whatever buffer the caller supplies (NewSataDisk and NewSatapiDisk pass
// a local identifyBuf); its physical address is derived from its virtual
// address by subtracting PhysMemOffset, as for the disks' staging buffers.
type identifyBuf = [identifyBufferSize]byte

// identify issues command (AtaCommandIdentify or AtaCommandIdentifyPacket)
// against buf, spin-waiting for completion since it always runs during
// port/disk bring-up, before there is an executor to yield to. It returns
// ok=false on a busy port or a fatal I/O error.
func (p *Port) identify(command AtaCommand, buf *identifyBuf) (IdentifyInfo, bool) {
	addr := mem.VirtAddr(uintptr(unsafe.Pointer(&buf[0]))).ToPhysAddr()

	slot, ok := p.findCommandSlot()
	if !ok {
		return IdentifyInfo{}, false
	}

	p.regs.InterruptStatus.Store(0xFFFFFFFF)
	fis := RegH2D{Command: command, Count: 1}
	p.buildCommand(slot, fis, nil, addr, identifyBufferSize, false)
	p.issueSlot(slot)

	if err := p.ataStop(slot); err != nil {
		return IdentifyInfo{}, false
	}

	return parseIdentify(buf), true
}

// Identify issues IDENTIFY DEVICE (ATA command 0xEC), used by SATA disks.
func (p *Port) Identify(buf *identifyBuf) (IdentifyInfo, bool) {
	return p.identify(AtaCommandIdentify, buf)
}

// IdentifyPacket issues IDENTIFY PACKET DEVICE (ATA command 0xA1), used by
// SATAPI disks.
func (p *Port) IdentifyPacket(buf *identifyBuf) (IdentifyInfo, bool) {
	return p.identify(AtaCommandIdentifyPacket, buf)
}

// identify word offsets, per the ATA/ATAPI command set specification.
const (
	identifyWordSerial       = 10
	identifyWordSerialEnd    = 20
	identifyWordFirmware     = 23
	identifyWordFirmwareEnd  = 27
	identifyWordModel        = 27
	identifyWordModelEnd     = 47
	identifyWordLBA48Support = 83
	identifyWordLBA48Bit     = 1 << 10
	identifyWordSectors28    = 60
	identifyWordSectors48    = 100
)

// identifyWord reads the little-endian 16-bit word at index i from buf.
func identifyWord(buf *identifyBuf, i int) uint16 {
	return uint16(buf[i*2]) | uint16(buf[i*2+1])<<8
}

// identifyString decodes an ASCII field spanning words [from, to): each word
// holds two characters with their byte order swapped relative to the string
// they spell out, and the result is right-trimmed of spaces.
func identifyString(buf *identifyBuf, from, to int) string {
	raw := make([]byte, 0, (to-from)*2)
	for w := from; w < to; w++ {
		raw = append(raw, buf[w*2+1], buf[w*2])
	}
	end := len(raw)
	for end > 0 && raw[end-1] == ' ' {
		end--
	}
	return string(raw[:end])
}

// parseIdentify decodes the fields described by §4.3.7 out of a completed
// IDENTIFY response buffer.
func parseIdentify(buf *identifyBuf) IdentifyInfo {
	info := IdentifyInfo{
		Serial:   identifyString(buf, identifyWordSerial, identifyWordSerialEnd),
		Firmware: identifyString(buf, identifyWordFirmware, identifyWordFirmwareEnd),
		Model:    identifyString(buf, identifyWordModel, identifyWordModelEnd),
	}

	if identifyWord(buf, identifyWordLBA48Support)&identifyWordLBA48Bit != 0 {
		info.SectorCount = uint64(identifyWord(buf, identifyWordSectors48)) |
			uint64(identifyWord(buf, identifyWordSectors48+1))<<16 |
			uint64(identifyWord(buf, identifyWordSectors48+2))<<32 |
			uint64(identifyWord(buf, identifyWordSectors48+3))<<48
	} else {
		info.SectorCount = uint64(identifyWord(buf, identifyWordSectors28)) |
			uint64(identifyWord(buf, identifyWordSectors28+1))<<16
	}

	return info
}

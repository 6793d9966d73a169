package ahci

import (
	"gopheros/kernel"
	"gopheros/kernel/mem"
	"unsafe"
)

// Port drives a single AHCI port: command slot allocation, command
// submission, and the spin-wait protocol for completion and error
// detection described by the controller's command-list/FIS-receive state
// machine.
type Port struct {
	index      int
	regs       *HbaPortRegs
	regionBase mem.PhysAddr
}

// newPort wires up port index against its register block and the region of
// working memory (command list, received-FIS area, and command tables)
// reserved for it within regionBase. It performs no register writes; callers
// must call Init before issuing any commands.
func newPort(index int, regs *HbaPortRegs, regionBase mem.PhysAddr) *Port {
	return &Port{index: index, regs: regs, regionBase: regionBase}
}

// Probe classifies whatever is attached to this port, if anything, per
// §4.3.1: a port whose SATA status does not report "device present with
// comm established" is treated as empty regardless of its signature.
func (p *Port) Probe() DeviceKind {
	return classify(p.regs)
}

// Init brings up a freshly discovered port: stops any command engine left
// running by firmware, rebuilds the command-header table so every slot
// points at its pre-assigned command table, reprograms CLB/FB, clears
// latched interrupt and SATA error state, disables link power management,
// and asks the device to spin up. Implements §4.3.1.
func (p *Port) Init() {
	p.stop()

	for s := 0; s < numPorts; s++ {
		header := p.commandHeaderPtr(s)
		header.encode(0, false, false, 0, commandTableAddr(p.regionBase, p.index, s))
	}

	clb := commandListAddr(p.regionBase, p.index)
	p.regs.CommandListBaseLow.Store(uint32(clb))
	p.regs.CommandListBaseHigh.Store(uint32(clb >> 32))

	fb := receivedFisAddr(p.regionBase, p.index)
	p.regs.FisBaseLow.Store(uint32(fb))
	p.regs.FisBaseHigh.Store(uint32(fb >> 32))

	p.regs.InterruptStatus.Store(0xFFFFFFFF)
	p.regs.InterruptEnable.Store(portInterruptEnableMask)

	p.regs.SataError.Store(p.regs.SataError.Load())

	p.regs.SataControl.SetBits(sataControlDisablePowerTransitions)

	p.regs.CommandStatus.SetBits(cmdSpinUpDevice | cmdPowerOnDevice)

	p.start()
}

// start enables the FIS-receive and command-list-processing engines,
// spin-waiting first for the command-list-running bit to clear as §4.3.2
// requires.
func (p *Port) start() {
	for p.regs.CommandStatus.HasBits(cmdListRunning) {
	}
	p.regs.CommandStatus.SetBits(cmdFisReceiveEnable)
	p.regs.CommandStatus.SetBits(cmdStart)
}

// stop disables command processing and waits for the controller to
// acknowledge both engines have actually drained, so that reprogramming
// CLB/FB while they're still running doesn't race the hardware.
func (p *Port) stop() bool {
	p.regs.CommandStatus.ClearBits(cmdStart)
	for i := 0; i < portStopSpinLimit; i++ {
		if !p.regs.CommandStatus.HasBits(cmdListRunning) {
			break
		}
		if i == portStopSpinLimit-1 {
			return false
		}
	}

	p.regs.CommandStatus.ClearBits(cmdFisReceiveEnable)
	for i := 0; i < portStopSpinLimit; i++ {
		if !p.regs.CommandStatus.HasBits(cmdFisReceiveRunning) {
			return true
		}
	}
	return false
}

// findCommandSlot returns the lowest-numbered slot that is neither queued
// (SataActive) nor pending issue (CommandIssue), or ok=false if all 32 are
// in use. Implements §4.3.3.
func (p *Port) findCommandSlot() (slot int, ok bool) {
	busy := p.regs.SataActive.Load() | p.regs.CommandIssue.Load()
	for i := 0; i < numPorts; i++ {
		if busy&(1<<uint(i)) == 0 {
			return i, true
		}
	}
	return 0, false
}

// commandHeaderPtr returns a pointer to command header slot s of this
// port, addressed through the identity-mapped virtual alias of its
// physical address.
func (p *Port) commandHeaderPtr(s int) *commandHeader {
	addr := commandHeaderAddr(p.regionBase, p.index, s)
	return (*commandHeader)(unsafe.Pointer(addr.ToVirtAddr().Pointer()))
}

// commandTablePtr returns a pointer to the raw bytes of command table
// slot s, sized to hold a Register H2D FIS, the ATAPI command packet
// area, and the PRDT.
func (p *Port) commandTablePtr(s int) *commandTable {
	addr := commandTableAddr(p.regionBase, p.index, s)
	return (*commandTable)(unsafe.Pointer(addr.ToVirtAddr().Pointer()))
}

// commandHeader is the 32-byte command list entry describing one queued
// command: how many FIS dwords it carries, whether it is an ATAPI packet
// or a host-to-device write, how many PRDT entries follow, and the
// physical address of its command table.
type commandHeader struct {
	flags         mem.Reg32 // byte layout: see encode below, packed into a single dword
	prdtByteCount mem.Reg32
	tableAddrLow  mem.Reg32
	tableAddrHigh mem.Reg32
	reserved      [4]mem.Reg32
}

const (
	chFisLengthMask = 0x1F
	chIsATAPI       = 1 << 5
	chHostToDevice  = 1 << 6
	chPrefetchable  = 1 << 7
	chPrdtLenShift  = 16
)

// encode writes a command header describing a command table with prdtLen
// entries, fisLength FIS dwords, direction write (host-to-device), and
// isATAPI set when the command is an ATAPI packet command.
func (h *commandHeader) encode(fisLength uint8, isATAPI, write bool, prdtLen uint16, tableAddr mem.PhysAddr) {
	var b0 uint32
	b0 = uint32(fisLength) & chFisLengthMask
	if isATAPI {
		b0 |= chIsATAPI
	}
	if write {
		b0 |= chHostToDevice
	}
	flags := b0 | uint32(prdtLen)<<chPrdtLenShift
	h.flags.Store(flags)
	h.prdtByteCount.Store(0)
	h.tableAddrLow.Store(uint32(tableAddr) &^ 0x7F)
	h.tableAddrHigh.Store(uint32(tableAddr >> 32))
}

// commandTable is the 4224-byte structure a command header points at: a
// Register H2D FIS, an ATAPI command packet area, reserved padding, and up
// to prdtEntriesPerTable physical region descriptors.
type commandTable struct {
	fis      [regH2DSize]byte
	_        [0x40 - regH2DSize]byte
	atapiCmd [16]byte
	_        [prdtOffsetInTable - 0x40 - 16]byte
	prdt     [prdtEntriesPerTable]prdtEntry
}

// prdtEntry is one Physical Region Descriptor Table entry: the physical
// base address of a data buffer and its byte count.
type prdtEntry struct {
	dataBaseLow  mem.Reg32
	dataBaseHigh mem.Reg32
	reserved     mem.Reg32
	byteCount    mem.Reg32
}

// prdtByteCountMask restricts the field to 22 bits per AHCI's requirement
// that a single PRDT entry transfer at most 4MB (2^22 bytes); the stored
// value is the transfer length minus one, with bit 31 used as the
// interrupt-on-completion flag.
const (
	prdtByteCountMask = 0x3FFFFF
	prdtIOC           = 1 << 31
)

func (e *prdtEntry) encode(addr mem.PhysAddr, length uint32, ioc bool) {
	e.dataBaseLow.Store(uint32(addr))
	e.dataBaseHigh.Store(uint32(addr >> 32))
	count := (length - 1) & prdtByteCountMask
	if ioc {
		count |= prdtIOC
	}
	e.byteCount.Store(count)
}

// portInterruptEnableMask selects the subset of per-port interrupts this
// driver cares about: device-to-host register FIS delivery (bit 0) plus the
// task-file-error/fatal-error bits checked by hasFatalError.
const portInterruptEnableMask = 1<<0 | hbaPxISTaskFileErr

// taskFileBusyOrDRQ reports whether the device is still busy or has data
// ready to transfer, the condition command submission must wait out before
// issuing a new command.
func (p *Port) taskFileBusyOrDRQ() bool {
	tfd := p.regs.TaskFileData.Load()
	return tfd&(ataDevBusy|ataDevDrq) != 0
}

// hasFatalError reports whether the port's interrupt-status register has
// latched one of the task-file or interface error bits (bits 27-30).
func (p *Port) hasFatalError() bool {
	return p.regs.InterruptStatus.Load()&hbaPxISTaskFileErr != 0
}

// buildCommand populates the command table for slot with fis, an optional
// 16-byte ATAPI packet, and a single PRDT entry describing buf/length, then
// programs the matching command header. It does not touch CommandIssue.
func (p *Port) buildCommand(slot int, fis RegH2D, atapiCmd []byte, buf mem.PhysAddr, length uint32, write bool) {
	table := p.commandTablePtr(slot)
	fisBytes := fis.Bytes()
	for i, b := range fisBytes {
		table.fis[i] = b
	}
	if atapiCmd != nil {
		for i := range table.atapiCmd {
			table.atapiCmd[i] = 0
		}
		copy(table.atapiCmd[:], atapiCmd)
	}
	table.prdt[0].encode(buf, length, true)

	tableAddr := commandTableAddr(p.regionBase, p.index, slot)
	header := p.commandHeaderPtr(slot)
	header.encode(regH2DSize/4, atapiCmd != nil, write, 1, tableAddr)
}

// issueSlot sets the CommandIssue bit for slot after waiting out any
// pending BUSY/DRQ state, and optionally restarts the command engine. It
// does not wait for completion: the caller polls ataRunning/ataStop.
func (p *Port) issueSlot(slot int) {
	for p.taskFileBusyOrDRQ() {
	}
	p.regs.InterruptStatus.Store(0xFFFFFFFF)
	p.regs.CommandIssue.SetBits(1 << uint(slot))
	if !p.regs.CommandStatus.HasBits(cmdStart) {
		p.start()
	}
}

// ataDMA programs and issues a single READ/WRITE DMA EXT command for one
// contiguous buffer and returns immediately with the slot it was issued on,
// without waiting for completion. Implements §4.3.4.
func (p *Port) ataDMA(lba uint64, sectorCount uint16, write bool, buf mem.PhysAddr) (int, *kernel.Error) {
	if sectorCount < 1 || sectorCount >= 256 {
		return 0, errBadSectorCount
	}

	slot, ok := p.findCommandSlot()
	if !ok {
		return 0, errPortBusy
	}

	command := AtaCommandReadDmaExt
	if write {
		command = AtaCommandWriteDmaExt
	}
	fis := buildReadWriteFIS(command, lba, sectorCount)
	p.buildCommand(slot, fis, nil, buf, uint32(sectorCount)*sectorSize, write)
	p.issueSlot(slot)
	return slot, nil
}

// atapiDMA programs and issues a 16-byte SCSI command packet tunneled over
// an ATA PACKET command, and spin-waits for the slot to complete before
// returning, unlike ataDMA which hands the slot back to the caller
// immediately. Implements §4.3.5.
func (p *Port) atapiDMA(cmd [16]byte, transferSize uint32, buf mem.PhysAddr) *kernel.Error {
	slot, ok := p.findCommandSlot()
	if !ok {
		return errPortBusy
	}

	p.regs.InterruptStatus.Store(0xFFFFFFFF)

	fis := RegH2D{Command: AtaCommandPacket, Feature: 1}
	p.buildCommand(slot, fis, cmd[:], buf, transferSize, false)
	p.issueSlot(slot)

	return p.ataStop(slot)
}

// ataRunning reports whether slot is still outstanding: its CommandIssue
// bit is set, or the device is still BUSY, and no fatal interrupt-status
// bit has been latched. Implements §4.3.6.
func (p *Port) ataRunning(slot int) bool {
	busy := p.regs.CommandIssue.Load()&(1<<uint(slot)) != 0 || p.regs.TaskFileData.Load()&ataDevBusy != 0
	return busy && !p.hasFatalError()
}

// ataStop waits out slot's completion (spinning, for bootstrap callers with
// no executor to yield to), stops the command engine, and reports a fatal
// interrupt-status bit as an I/O error. Implements §4.3.6. Callers driven by
// the cooperative executor should check ataRunning themselves and only call
// ataStop once it has already gone false, so this spin returns immediately.
func (p *Port) ataStop(slot int) *kernel.Error {
	for i := 0; p.ataRunning(slot) && i < commandSpinLimit; i++ {
	}

	p.stop()

	if p.hasFatalError() {
		return errIOError
	}
	return nil
}

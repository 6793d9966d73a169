package ahci

import (
	"gopheros/kernel"
	"gopheros/kernel/async"
	"gopheros/kernel/mem"
	"unsafe"
)

// Disk is the polymorphic contract the rest of the kernel programs
// against: an id, a kind, an optional total size, block-oriented read and
// write, and a block length. SataDisk and SatapiDisk are its two
// implementations. Implements §3 / §4.4 / §4.5.
type Disk interface {
	// ID returns the small integer identity assigned to this disk by the
	// HBA scan that discovered it.
	ID() int

	// Kind reports whether this is a SATA or SATAPI device.
	Kind() DeviceKind

	// Size returns the disk's total capacity in bytes, or ok=false if it
	// could not be determined.
	Size() (size uint64, ok bool)

	// BlockLength returns the disk's logical block size in bytes.
	BlockLength() uint32

	// Read starts (or advances) a read of len(buf)/BlockLength blocks
	// starting at block, returning a future that resolves once the
	// transfer is complete.
	Read(block uint64, buf []byte) async.Future[IOResult]

	// Write starts (or advances) a write of len(buf)/BlockLength blocks
	// starting at block. SATAPI disks do not support this and resolve
	// immediately with errUnsupported.
	Write(block uint64, buf []byte) async.Future[IOResult]
}

// IOResult is the value a Disk's Read/Write future resolves to: either the
// number of bytes actually transferred, or a diagnostic error.
type IOResult struct {
	N   int
	Err *kernel.Error
}

// step is one unit of progress toward completing a disk request: it is
// called once per poll and must not block. done=false with a nil error
// means "not yet, poll again"; this is the Go shape of the Rust
// `Result<Option<usize>, Error>` the original request() functions return.
type step func() (n int, done bool, err *kernel.Error)

// stepFuture drives a step function to completion. Because neither SataDisk
// nor SatapiDisk wires a real completion interrupt through to a Waker (the
// design notes allow a polling loop as an alternative per §2), a pending
// step immediately re-wakes its own task so the executor revisits it on the
// next run-loop iteration instead of parking forever.
type stepFuture struct {
	fn step
}

func newStepFuture(fn step) async.Future[IOResult] {
	return &stepFuture{fn: fn}
}

func (f *stepFuture) Poll(cx *async.Context) (IOResult, async.PollState) {
	n, done, err := f.fn()
	if err != nil {
		return IOResult{Err: err}, async.Ready
	}
	if done {
		return IOResult{N: n}, async.Ready
	}
	cx.Waker().Wake()
	return IOResult{}, async.Pending
}

// stagingSectors is the size, in 512-byte sectors, of the DMA staging
// buffer each disk keeps: a single ata_dma transfer is capped below 256
// sectors (at most 255, §4.3.4), so a buffer this size can always hold one
// in-flight command's data.
const stagingSectors = 256

// stagingBufSize is the byte size of a disk's DMA staging buffer.
const stagingBufSize = stagingSectors * sectorSize

// stagingPhysAddr returns the physical address of a staging buffer,
// computed through the identity-mapped virtual-to-physical duality (§9):
// the buffer lives in ordinary (for this freestanding kernel, identity
// mapped) memory, so its physical address is its virtual address minus
// PhysMemOffset.
func stagingPhysAddr(buf *[stagingBufSize]byte) mem.PhysAddr {
	return mem.VirtAddr(uintptr(unsafe.Pointer(&buf[0]))).ToPhysAddr()
}

// SataDisk implements Disk over a port attached to an ATA (SATA) device. It
// owns a 128KiB DMA staging buffer used for every read_dma_ext/write_dma_ext
// command it issues, and tracks at most one in-flight, resumable request so
// that Read/Write can be driven to completion across repeated polls.
// Implements §4.4.
type SataDisk struct {
	id      int
	port    *Port
	size    uint64
	sizeOK  bool
	staging [stagingBufSize]byte
	req     *sataRequest
}

// sataRequest tracks a single in-flight, possibly multi-command Read or
// Write across the polls needed to complete it.
type sataRequest struct {
	block          uint64
	write          bool
	buf            []byte
	totalSectors   int
	sectorProgress int
	running        *sataRunning
}

// sataRunning names the command slot currently in flight for a request and
// how many sectors it covers.
type sataRunning struct {
	slot  int
	count int
}

// NewSataDisk constructs a SataDisk bound to port, assigning it id (the
// index the HBA scan discovered it at). It initialises the port and issues
// IDENTIFY to learn the disk's capacity before returning.
func NewSataDisk(id int, port *Port) *SataDisk {
	d := &SataDisk{id: id, port: port}
	port.Init()

	var idBuf identifyBuf
	if info, ok := port.Identify(&idBuf); ok {
		d.size = info.SectorCount * sectorSize
		d.sizeOK = true
	}
	return d
}

// ID implements Disk.
func (d *SataDisk) ID() int { return d.id }

// Kind implements Disk.
func (d *SataDisk) Kind() DeviceKind { return KindSATA }

// Size implements Disk.
func (d *SataDisk) Size() (uint64, bool) { return d.size, d.sizeOK }

// BlockLength implements Disk: SATA disks are always 512-byte sectors.
func (d *SataDisk) BlockLength() uint32 { return sectorSize }

// Read implements Disk.
func (d *SataDisk) Read(block uint64, buf []byte) async.Future[IOResult] {
	return newStepFuture(func() (int, bool, *kernel.Error) { return d.advance(block, buf, false) })
}

// Write implements Disk.
func (d *SataDisk) Write(block uint64, buf []byte) async.Future[IOResult] {
	return newStepFuture(func() (int, bool, *kernel.Error) { return d.advance(block, buf, true) })
}

// advance drives SataDisk.request (§4.4) one step: it services whatever
// request is currently in flight, or starts a new one if none is. A
// different request arriving while one is already in flight is reported as
// "not yet" (done=false, err=nil) so its stepFuture re-polls rather than
// corrupting the one in progress.
func (d *SataDisk) advance(block uint64, buf []byte, write bool) (int, bool, *kernel.Error) {
	if d.req != nil && (d.req.block != block || d.req.write != write || len(d.req.buf) != len(buf)) {
		return 0, false, nil
	}

	if d.req == nil {
		d.req = &sataRequest{
			block:        block,
			write:        write,
			buf:          buf,
			totalSectors: len(buf) / sectorSize,
		}
	}
	req := d.req

	if req.running != nil {
		if d.port.ataRunning(req.running.slot) {
			return 0, false, nil
		}

		if err := d.port.ataStop(req.running.slot); err != nil {
			d.req = nil
			return 0, false, err
		}

		if !write {
			copy(buf[req.sectorProgress*sectorSize:], d.staging[:req.running.count*sectorSize])
		}
		req.sectorProgress += req.running.count
		req.running = nil
	}

	if req.sectorProgress < req.totalSectors {
		n := req.totalSectors - req.sectorProgress
		if n > 255 {
			n = 255
		}

		if write {
			copy(d.staging[:n*sectorSize], buf[req.sectorProgress*sectorSize:])
		}

		slot, err := d.port.ataDMA(block+uint64(req.sectorProgress), uint16(n), write, stagingPhysAddr(&d.staging))
		if err != nil {
			d.req = nil
			return 0, false, err
		}
		req.running = &sataRunning{slot: slot, count: n}
		return 0, false, nil
	}

	n := req.sectorProgress * sectorSize
	d.req = nil
	return n, true, nil
}

// SatapiDisk implements Disk over a port attached to an ATAPI (SATAPI)
// device, tunnelling SCSI commands (READ CAPACITY, READ(10)) over ATA
// PACKET. Implements §4.5.
type SatapiDisk struct {
	id         int
	port       *Port
	staging    [stagingBufSize]byte
	blockCount uint64
	blockSize  uint32
	haveCap    bool
}

// NewSatapiDisk constructs a SatapiDisk bound to port, assigning it id. It
// initialises the port and issues IDENTIFY PACKET DEVICE purely to let the
// device settle; actual capacity always comes from READ CAPACITY (§4.5),
// queried lazily on first use.
func NewSatapiDisk(id int, port *Port) *SatapiDisk {
	d := &SatapiDisk{id: id, port: port}
	port.Init()

	var idBuf identifyBuf
	port.IdentifyPacket(&idBuf)
	return d
}

// ID implements Disk.
func (d *SatapiDisk) ID() int { return d.id }

// Kind implements Disk.
func (d *SatapiDisk) Kind() DeviceKind { return KindSATAPI }

// Size implements Disk.
func (d *SatapiDisk) Size() (uint64, bool) {
	if err := d.readCapacity(); err != nil {
		return 0, false
	}
	return d.blockCount * uint64(d.blockSize), true
}

// BlockLength implements Disk, querying READ CAPACITY if it has not been
// cached yet.
func (d *SatapiDisk) BlockLength() uint32 {
	if err := d.readCapacity(); err != nil {
		return 0
	}
	return d.blockSize
}

const (
	scsiReadCapacity uint8 = 0x25
	scsiRead10       uint8 = 0x28
)

// readCapacity issues SCSI READ CAPACITY (opcode 0x25) and decodes its
// 8-byte big-endian response: last-LBA (u32) and block size (u32). The
// result is cached; subsequent calls are no-ops until the disk is
// reinitialised.
func (d *SatapiDisk) readCapacity() *kernel.Error {
	if d.haveCap {
		return nil
	}

	var cmd [16]byte
	cmd[0] = scsiReadCapacity

	if err := d.port.atapiDMA(cmd, 8, stagingPhysAddr(&d.staging)); err != nil {
		return err
	}

	d.blockCount, d.blockSize = parseReadCapacity(d.staging[:8])
	d.haveCap = true
	return nil
}

// parseReadCapacity decodes a SCSI READ CAPACITY (10) response: an 8-byte
// big-endian pair of last-LBA (u32) and block size (u32), per §4.5.
func parseReadCapacity(resp []byte) (blockCount uint64, blockSize uint32) {
	lastLBA := uint32(resp[0])<<24 | uint32(resp[1])<<16 | uint32(resp[2])<<8 | uint32(resp[3])
	blockSize = uint32(resp[4])<<24 | uint32(resp[5])<<16 | uint32(resp[6])<<8 | uint32(resp[7])
	return uint64(lastLBA) + 1, blockSize
}

// read10Command builds a SCSI READ(10) command packet for count sectors
// starting at block, per §4.5.
func read10Command(block uint32, count uint16) [16]byte {
	var cmd [16]byte
	cmd[0] = scsiRead10
	cmd[2] = byte(block >> 24)
	cmd[3] = byte(block >> 16)
	cmd[4] = byte(block >> 8)
	cmd[5] = byte(block)
	cmd[7] = byte(count >> 8)
	cmd[8] = byte(count)
	return cmd
}

// Read implements Disk. Unlike SataDisk, SatapiDisk drives each SCSI
// READ(10) command to completion synchronously inside atapi_dma (§4.3.5),
// so the whole transfer runs to completion within a single poll and the
// returned future is always immediately Ready.
func (d *SatapiDisk) Read(block uint64, buf []byte) async.Future[IOResult] {
	return newStepFuture(func() (int, bool, *kernel.Error) {
		if err := d.readCapacity(); err != nil {
			return 0, false, err
		}
		blockLen := d.blockSize

		sectors := uint32(len(buf)) / blockLen
		bufLen := stagingBufSize / blockLen
		if bufLen == 0 {
			return 0, false, errBadSectorCount
		}

		var sector uint32
		for sectors-sector >= bufLen {
			cmd := read10Command(uint32(block)+sector, uint16(bufLen))
			if err := d.port.atapiDMA(cmd, bufLen*blockLen, stagingPhysAddr(&d.staging)); err != nil {
				return 0, false, err
			}
			copy(buf[sector*blockLen:], d.staging[:bufLen*blockLen])
			sector += bufLen
		}
		if sector < sectors {
			remaining := sectors - sector
			cmd := read10Command(uint32(block)+sector, uint16(remaining))
			if err := d.port.atapiDMA(cmd, remaining*blockLen, stagingPhysAddr(&d.staging)); err != nil {
				return 0, false, err
			}
			copy(buf[sector*blockLen:], d.staging[:remaining*blockLen])
			sector += remaining
		}

		return int(sector * blockLen), true, nil
	})
}

// Write implements Disk: SATAPI write support is unimplemented per spec
// §4.5/Non-goals and always fails.
func (d *SatapiDisk) Write(block uint64, buf []byte) async.Future[IOResult] {
	return newStepFuture(func() (int, bool, *kernel.Error) {
		return 0, false, errUnsupported
	})
}

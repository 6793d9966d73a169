package ahci

import (
	"gopheros/kernel/mem"
	"math/rand"
	"testing"
)

// --- §8 "Region layout" ---

func TestRegionLayoutAddressesAndAlignment(t *testing.T) {
	const regionBase = mem.PhysAddr(0x40_0000)

	for p := 0; p < numPorts; p++ {
		for s := 0; s < numPorts; s++ {
			wantHeader := regionBase + mem.PhysAddr(p*portSize+s*32)
			if got := commandHeaderAddr(regionBase, p, s); got != wantHeader {
				t.Fatalf("port %d slot %d: header addr = %#x, want %#x", p, s, got, wantHeader)
			}
			if got := commandHeaderAddr(regionBase, p, s); got%commandHeaderSize != 0 {
				t.Fatalf("port %d slot %d: header addr %#x not 32-byte aligned", p, s, got)
			}

			wantTable := regionBase + mem.PhysAddr(p*portSize+commandTableListOffset+s*commandTableSize)
			if got := commandTableAddr(regionBase, p, s); got != wantTable {
				t.Fatalf("port %d slot %d: table addr = %#x, want %#x", p, s, got, wantTable)
			}
			if got := commandTableAddr(regionBase, p, s); got%128 != 0 {
				t.Fatalf("port %d slot %d: table addr %#x not 128-byte aligned", p, s, got)
			}
		}
	}
}

func TestAhciMemorySizeCoversAllPorts(t *testing.T) {
	if AhciMemorySize != portSize*numPorts {
		t.Fatalf("AhciMemorySize = %d, want %d", AhciMemorySize, portSize*numPorts)
	}
}

// --- §8 "FIS encoding round-trip" ---

func TestFISRoundTripRandomValues(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		lba := uint64(r.Int63()) & (1<<48 - 1)
		count := uint16(r.Intn(65535) + 1)
		isWrite := r.Intn(2) == 1

		command := AtaCommandReadDmaExt
		if isWrite {
			command = AtaCommandWriteDmaExt
		}
		fis := buildReadWriteFIS(command, lba, count)
		got := ParseRegH2D(fis.Bytes())

		if got.LBA != lba {
			t.Fatalf("LBA round-trip: got %#x, want %#x", got.LBA, lba)
		}
		if got.Count != count {
			t.Fatalf("Count round-trip: got %d, want %d", got.Count, count)
		}
		if got.Command != command {
			t.Fatalf("Command round-trip: got %#x, want %#x", got.Command, command)
		}
		if got.Device != 0x40 {
			t.Fatalf("Device round-trip: got %#x, want 0x40", got.Device)
		}
	}
}

func TestFISByteLayoutLiteralScenario(t *testing.T) {
	// Spec §8 scenario 3: LBA 0x0000_1234_5678, count 8, read.
	fis := buildReadWriteFIS(AtaCommandReadDmaExt, 0x0000_1234_5678, 8)
	b := fis.Bytes()

	if b[0] != 0x27 {
		t.Fatalf("byte 0 = %#x, want 0x27", b[0])
	}
	if b[1]&0x80 == 0 {
		t.Fatalf("byte 1 command bit not set: %#x", b[1])
	}
	if b[2] != 0x25 {
		t.Fatalf("byte 2 = %#x, want 0x25 (ReadDmaExt)", b[2])
	}
	wantLBALow := [6]byte{0x78, 0x56, 0x34, 0x12, 0x00, 0x00}
	gotLBALow := [6]byte{b[4], b[5], b[6], b[8], b[9], b[10]}
	if gotLBALow != wantLBALow {
		t.Fatalf("LBA bytes = %x, want %x", gotLBALow, wantLBALow)
	}
	if b[7] != 0x40 {
		t.Fatalf("byte 7 (device) = %#x, want 0x40", b[7])
	}
	if b[12] != 0x08 || b[13] != 0x00 {
		t.Fatalf("count bytes = %#x %#x, want 0x08 0x00", b[12], b[13])
	}
}

func TestFISWriteCommandByte(t *testing.T) {
	fis := buildReadWriteFIS(AtaCommandWriteDmaExt, 0, 1)
	b := fis.Bytes()
	if b[2] != 0x35 {
		t.Fatalf("byte 2 = %#x, want 0x35 (WriteDmaExt)", b[2])
	}
}

// --- §8 "PRDT byte count" ---

func TestPRDTEncodesLengthMinusOne(t *testing.T) {
	var e prdtEntry
	const sectors = 8
	e.encode(0x1000, sectors*sectorSize, true)

	raw := e.byteCount.Load()
	count := raw &^ prdtIOC
	if count != sectors*sectorSize-1 {
		t.Fatalf("encoded count = %d, want %d", count, sectors*sectorSize-1)
	}
	if raw&prdtIOC == 0 {
		t.Fatalf("expected interrupt-on-completion bit set")
	}
}

func TestPRDTAddressSplitLowHigh(t *testing.T) {
	var e prdtEntry
	addr := mem.PhysAddr(0x1_2345_6789)
	e.encode(addr, 512, false)

	if got := e.dataBaseLow.Load(); got != uint32(addr) {
		t.Fatalf("low = %#x, want %#x", got, uint32(addr))
	}
	if got := e.dataBaseHigh.Load(); got != uint32(addr>>32) {
		t.Fatalf("high = %#x, want %#x", got, uint32(addr>>32))
	}
}

// --- §8 "Slot allocation" ---

func TestFindSlotReturnsLowestUnsetBit(t *testing.T) {
	regs := &HbaPortRegs{}
	p := &Port{regs: regs}

	regs.SataActive.Store(0b0000_0111)
	regs.CommandIssue.Store(0b0000_1000)

	slot, ok := p.findCommandSlot()
	if !ok {
		t.Fatalf("expected a free slot")
	}
	if slot != 4 {
		t.Fatalf("expected lowest free slot 4, got %d", slot)
	}
}

func TestFindSlotAllBusyReturnsFalse(t *testing.T) {
	regs := &HbaPortRegs{}
	p := &Port{regs: regs}
	regs.SataActive.Store(0xFFFFFFFF)

	_, ok := p.findCommandSlot()
	if ok {
		t.Fatalf("expected no free slot when bitmap is all ones")
	}
}

// --- §8 probe/classify scenarios ---

func TestClassifySATAPISignature(t *testing.T) {
	regs := &HbaPortRegs{}
	regs.SataStatus.Store(0x00000123)
	regs.Signature.Store(0xEB140101)

	if got := classify(regs); got != KindSATAPI {
		t.Fatalf("classify = %v, want SATAPI", got)
	}
}

func TestClassifyNoDevicePresentIgnoresSignature(t *testing.T) {
	regs := &HbaPortRegs{}
	regs.SataStatus.Store(0x00000100)
	regs.Signature.Store(0xEB140101) // would be SATAPI if det bits were set

	if got := classify(regs); got != KindNone {
		t.Fatalf("classify = %v, want None regardless of signature", got)
	}
}

func TestClassifySATASignature(t *testing.T) {
	regs := &HbaPortRegs{}
	regs.SataStatus.Store(0x00000123)
	regs.Signature.Store(0x00000101)

	if got := classify(regs); got != KindSATA {
		t.Fatalf("classify = %v, want SATA", got)
	}
}

// --- §8 "READ CAPACITY" scenario ---

func TestReadCapacityDecodesBigEndianResponse(t *testing.T) {
	resp := []byte{0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x08, 0x00}

	blockCount, blockSize := parseReadCapacity(resp)

	if blockCount != 0x1001 {
		t.Fatalf("blockCount = %#x, want 0x1001", blockCount)
	}
	if blockSize != 2048 {
		t.Fatalf("blockSize = %d, want 2048", blockSize)
	}
}

// --- §4.3.6 ataRunning ---

func TestAtaRunningFalseWhenFatalErrorLatched(t *testing.T) {
	regs := &HbaPortRegs{}
	p := &Port{regs: regs}
	regs.CommandIssue.Store(1 << 3)
	regs.InterruptStatus.Store(1 << 30) // fatal bit

	if p.ataRunning(3) {
		t.Fatalf("expected ataRunning to be false once a fatal interrupt-status bit is latched")
	}
}

func TestAtaRunningTrueWhileCommandIssueBitSet(t *testing.T) {
	regs := &HbaPortRegs{}
	p := &Port{regs: regs}
	regs.CommandIssue.Store(1 << 5)

	if !p.ataRunning(5) {
		t.Fatalf("expected ataRunning to be true while the command-issue bit is set")
	}
}

package pic

import "testing"

func fakePorts() (writes *[]struct{ port uint16; val uint8 }, reads map[uint16]uint8) {
	w := &[]struct {
		port uint16
		val  uint8
	}{}
	r := map[uint16]uint8{masterDataPort: 0, slaveDataPort: 0}
	portOutFn = func(port uint16, val uint8) {
		*w = append(*w, struct {
			port uint16
			val  uint8
		}{port, val})
		r[port] = val
	}
	portInFn = func(port uint16) uint8 {
		return r[port]
	}
	return w, r
}

func TestSendEOIMasterOnly(t *testing.T) {
	writes, _ := fakePorts()
	defer func() { portInFn = nil; portOutFn = nil }()

	SendEOI(2)

	if len(*writes) != 1 || (*writes)[0].port != masterCommandPort || (*writes)[0].val != eoiCommand {
		t.Fatalf("expected a single EOI write to the master command port; got %+v", *writes)
	}
}

func TestSendEOISlaveIRQAlsoNotifiesMaster(t *testing.T) {
	writes, _ := fakePorts()
	defer func() { portInFn = nil; portOutFn = nil }()

	SendEOI(11)

	if len(*writes) != 2 {
		t.Fatalf("expected EOI writes to both slave and master; got %+v", *writes)
	}
	if (*writes)[0].port != slaveCommandPort || (*writes)[1].port != masterCommandPort {
		t.Fatalf("expected slave EOI before master EOI; got %+v", *writes)
	}
}

func TestUnmaskClearsOnlyTargetBit(t *testing.T) {
	_, reads := fakePorts()
	defer func() { portInFn = nil; portOutFn = nil }()
	reads[masterDataPort] = 0xFF

	Unmask(3)

	if got, want := reads[masterDataPort], uint8(0xFF&^(1<<3)); got != want {
		t.Fatalf("expected mask %#x after unmasking IRQ3; got %#x", want, got)
	}
}

func TestMaskSlaveIRQUsesSlaveDataPort(t *testing.T) {
	_, reads := fakePorts()
	defer func() { portInFn = nil; portOutFn = nil }()
	reads[slaveDataPort] = 0x00

	Mask(10) // IRQ10 -> slave bit 2

	if got, want := reads[slaveDataPort], uint8(1<<2); got != want {
		t.Fatalf("expected slave mask bit 2 set; got %#x", got)
	}
}

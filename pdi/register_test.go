package pdi

import (
	"encoding/binary"
	"testing"
)

func TestFMMUConfigFields(t *testing.T) {
	buf := make([]byte, FMMUConfigLength)
	f := NewFMMUConfig(buf)
	f.SetLogicalStart(0x00001234)
	f.SetLogicalLength(16)
	f.SetLogicalStartBit(1)
	f.SetLogicalEndBit(7)
	f.SetPhysicalStart(0x1000)
	f.SetPhysicalStartBit(0)
	f.SetType(true, false)
	f.SetActivate(true)

	if got := binary.LittleEndian.Uint32(buf[0:4]); got != 0x1234 {
		t.Errorf("logical start = %#x, want 0x1234", got)
	}
	if got := binary.LittleEndian.Uint16(buf[4:6]); got != 16 {
		t.Errorf("logical length = %d, want 16", got)
	}
	if got := binary.LittleEndian.Uint16(buf[8:10]); got != 0x1000 {
		t.Errorf("physical start = %#x, want 0x1000", got)
	}
	if buf[11]&0x1 == 0 {
		t.Error("expected read bit set")
	}
	if buf[11]&0x2 != 0 {
		t.Error("did not expect write bit set")
	}
	if buf[12] != 1 {
		t.Error("expected activate byte set")
	}
}

func TestSyncManagerConfigControlByte(t *testing.T) {
	buf := make([]byte, SyncManagerConfigLength)
	s := NewSyncManagerConfig(buf)
	s.SetControl(OperationModeMailbox, DirectionOutput)
	if buf[4]&(1<<2) == 0 {
		t.Error("expected mailbox bit set")
	}
	if buf[4]&(1<<0) == 0 {
		t.Error("expected output direction bit set")
	}

	s.SetControl(OperationModeBuffered, DirectionInput)
	if buf[4]&(1<<2) != 0 {
		t.Error("did not expect mailbox bit set for buffered mode")
	}
	if buf[4]&(1<<1) == 0 {
		t.Error("expected input direction bit set")
	}
}

func TestSyncManagerConfigEnable(t *testing.T) {
	buf := make([]byte, SyncManagerConfigLength)
	s := NewSyncManagerConfig(buf)
	s.SetEnable(true)
	if buf[6] != 1 {
		t.Fatal("expected enable byte == 1")
	}
	s.SetEnable(false)
	if buf[6] != 0 {
		t.Fatal("expected enable byte == 0")
	}
}

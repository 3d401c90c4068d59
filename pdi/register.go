package pdi

import "encoding/binary"

// FMMUConfigLength is the size in bytes of one ESC FMMU configuration
// register block.
const FMMUConfigLength = 16

// FMMUConfig wraps one 16-byte ESC FMMU register block: the mapping
// from a contiguous range of the logical process data image to a
// range of this SubDevice's local physical memory.
type FMMUConfig struct{ buf []byte }

// NewFMMUConfig returns an FMMUConfig wrapping buf, which must be at
// least FMMUConfigLength bytes.
func NewFMMUConfig(buf []byte) FMMUConfig { return FMMUConfig{buf: buf[:FMMUConfigLength]} }

func (f FMMUConfig) SetLogicalStart(addr uint32) { binary.LittleEndian.PutUint32(f.buf[0:4], addr) }
func (f FMMUConfig) SetLogicalLength(n uint16)    { binary.LittleEndian.PutUint16(f.buf[4:6], n) }
func (f FMMUConfig) SetLogicalStartBit(b uint8)   { f.buf[6] = b }
func (f FMMUConfig) SetLogicalEndBit(b uint8)     { f.buf[7] = b }
func (f FMMUConfig) SetPhysicalStart(addr uint16) { binary.LittleEndian.PutUint16(f.buf[8:10], addr) }
func (f FMMUConfig) SetPhysicalStartBit(b uint8)  { f.buf[10] = b }

// SetType sets the FMMU's read/write enable bits: read enables the
// physical->logical direction used for a SubDevice's inputs, write the
// logical->physical direction used for its outputs.
func (f FMMUConfig) SetType(read, write bool) {
	var t byte
	if read {
		t |= 1 << 0
	}
	if write {
		t |= 1 << 1
	}
	f.buf[11] = t
}

// SetActivate enables or disables this FMMU.
func (f FMMUConfig) SetActivate(v bool) {
	if v {
		f.buf[12] = 1
	} else {
		f.buf[12] = 0
	}
}

// Bytes returns the underlying register block.
func (f FMMUConfig) Bytes() []byte { return f.buf }

// SyncManagerConfigLength is the size in bytes of one ESC SyncManager
// configuration register block.
const SyncManagerConfigLength = 8

// SyncManagerConfig wraps one 8-byte ESC SyncManager register block.
type SyncManagerConfig struct{ buf []byte }

// NewSyncManagerConfig returns a SyncManagerConfig wrapping buf, which
// must be at least SyncManagerConfigLength bytes.
func NewSyncManagerConfig(buf []byte) SyncManagerConfig {
	return SyncManagerConfig{buf: buf[:SyncManagerConfigLength]}
}

func (s SyncManagerConfig) SetPhysicalStart(addr uint16) {
	binary.LittleEndian.PutUint16(s.buf[0:2], addr)
}
func (s SyncManagerConfig) SetLength(n uint16) { binary.LittleEndian.PutUint16(s.buf[2:4], n) }

// SetControl packs the operation mode and direction into the control
// byte: bit 2 selects mailbox vs buffered mode, bits 0-1 select
// direction.
func (s SyncManagerConfig) SetControl(mode OperationMode, dir Direction) {
	var c byte
	if mode == OperationModeMailbox {
		c |= 1 << 2
	}
	if dir == DirectionOutput {
		c |= 1 << 0
	} else {
		c |= 1 << 1
	}
	s.buf[4] = c
}

// SetEnable enables or disables this SyncManager.
func (s SyncManagerConfig) SetEnable(v bool) {
	if v {
		s.buf[6] = 1
	} else {
		s.buf[6] = 0
	}
}

// Bytes returns the underlying register block.
func (s SyncManagerConfig) Bytes() []byte { return s.buf }

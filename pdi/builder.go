package pdi

import (
	"context"

	"github.com/soypat/ethercat"
	"github.com/soypat/ethercat/pdu"
	"github.com/soypat/ethercat/pduloop"
	"github.com/soypat/ethercat/subdevice"
)

// Layout is the result of laying out one group's process data image:
// the totals package group needs to size its PDI buffer and compute
// the working counter it should expect from a cyclic exchange.
type Layout struct {
	StartAddress uint32
	// ReadLength is the byte length of the inputs segment, i.e. where
	// outputs begin within the PDI.
	ReadLength int
	// TotalLength is the full PDI length, inputs plus outputs.
	TotalLength int
	// ExpectedWKC is the aggregate working counter a full group
	// logical read-write should produce (spec §4.5).
	ExpectedWKC uint16
}

// Builder lays out a group's SubDevices into a contiguous logical PDI
// and programs each device's FMMUs and process-data SyncManagers to
// match (spec §4.5).
type Builder struct {
	MD     *pduloop.MainDevice
	EEPROM subdevice.EEPROM
}

// BuildGroup walks devices twice (inputs first, then outputs, per the
// policy of spec §4.5), reserving and programming each SubDevice's PDI
// segment, and returns the resulting Layout. startAddress is the
// group's logical base address; maxPDI bounds the total length.
func (b Builder) BuildGroup(ctx context.Context, devices []*subdevice.SubDevice, startAddress uint32, maxPDI int) (Layout, error) {
	scanner := Scanner{EEPROM: b.EEPROM}
	type pdos struct{ in, out []PDOMapping }
	found := make([]pdos, len(devices))
	for i, d := range devices {
		in, err := scanner.ScanPDOs(ctx, d.ConfiguredAddress, CategoryTxPDO)
		if err != nil {
			return Layout{}, err
		}
		out, err := scanner.ScanPDOs(ctx, d.ConfiguredAddress, CategoryRxPDO)
		if err != nil {
			return Layout{}, err
		}
		found[i] = pdos{in: in, out: out}
	}

	offset := startAddress
	for i, d := range devices {
		length := bitsToBytes(sumBitLength(found[i].in))
		if length == 0 {
			continue
		}
		d.Inputs = subdevice.Range{Offset: int(offset - startAddress), Length: length}
		if err := b.configureSegment(ctx, d, DirectionInput, offset, length); err != nil {
			return Layout{}, err
		}
		offset += uint32(length)
	}
	readLen := int(offset - startAddress)

	for i, d := range devices {
		length := bitsToBytes(sumBitLength(found[i].out))
		if length == 0 {
			continue
		}
		d.Outputs = subdevice.Range{Offset: int(offset - startAddress), Length: length}
		if err := b.configureSegment(ctx, d, DirectionOutput, offset, length); err != nil {
			return Layout{}, err
		}
		offset += uint32(length)
	}
	total := int(offset - startAddress)
	if total > maxPDI {
		return Layout{}, &ethercat.PdiTooLongError{Max: maxPDI, Desired: total}
	}

	// The per-device contribution is the same whether the application
	// drives the group with separate LRD/LWR or a single combined LRW:
	// a device with both inputs and outputs is touched once per
	// direction either way, so both formulas in spec §4.5 reduce to
	// this same sum.
	var wkc uint16
	for _, d := range devices {
		if d.HasInputs() {
			wkc++
		}
		if d.HasOutputs() {
			wkc += 2
		}
	}

	return Layout{StartAddress: startAddress, ReadLength: readLen, TotalLength: total, ExpectedWKC: wkc}, nil
}

func (b Builder) configureSegment(ctx context.Context, d *subdevice.SubDevice, dir Direction, logicalAddr uint32, length int) error {
	var smSlot, fmmuSlot int
	var physAddr uint16
	if dir == DirectionInput {
		smSlot, fmmuSlot, physAddr = smSlotInputs, fmmuSlotInputs, physAddrInputs
	} else {
		smSlot, fmmuSlot, physAddr = smSlotOutputs, fmmuSlotOutputs, physAddrOutputs
	}

	smBuf := make([]byte, SyncManagerConfigLength)
	sm := NewSyncManagerConfig(smBuf)
	sm.SetPhysicalStart(physAddr)
	sm.SetLength(uint16(length))
	sm.SetControl(OperationModeBuffered, dir)
	sm.SetEnable(true)
	smReg := ethercat.RegSyncManager0 + ethercat.RegisterAddr(smSlot*SyncManagerConfigLength)
	if err := b.fpwr(ctx, d.ConfiguredAddress, smReg, smBuf); err != nil {
		return err
	}

	fBuf := make([]byte, FMMUConfigLength)
	f := NewFMMUConfig(fBuf)
	f.SetLogicalStart(logicalAddr)
	f.SetLogicalLength(uint16(length))
	f.SetLogicalStartBit(0)
	f.SetLogicalEndBit(7)
	f.SetPhysicalStart(physAddr)
	f.SetPhysicalStartBit(0)
	f.SetType(dir == DirectionInput, dir == DirectionOutput)
	f.SetActivate(true)
	fmmuReg := ethercat.RegFMMU0 + ethercat.RegisterAddr(fmmuSlot*FMMUConfigLength)
	return b.fpwr(ctx, d.ConfiguredAddress, fmmuReg, fBuf)
}

func (b Builder) fpwr(ctx context.Context, configuredAddr uint16, reg ethercat.RegisterAddr, payload []byte) error {
	h, err := b.MD.SendReceive(pdu.Fpwr(configuredAddr, uint16(reg)), payload)
	if err != nil {
		return err
	}
	_, _, err = h.Receive(ctx, nil)
	return err
}

func bitsToBytes(bits int) int { return (bits + 7) / 8 }

func sumBitLength(mappings []PDOMapping) int {
	n := 0
	for _, m := range mappings {
		n += m.BitLength()
	}
	return n
}

package subdevice

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/soypat/ethercat"
	"github.com/soypat/ethercat/pdu"
	"github.com/soypat/ethercat/pduloop"
)

// SII EEPROM control interface registers (ETG.1000.4 table 33) and the
// general-area word addresses this package reads identity from.
const (
	regEepromControl = 0x0502
	regEepromAddress = 0x0504
	regEepromData    = 0x0508

	eepromCmdRead = uint16(0x0100)
	eepromBusyBit = uint16(0x8000)

	eepromWordVendorID    = 0x0008
	eepromWordProductCode = 0x000A
	eepromWordRevision    = 0x000C
	eepromWordSerial      = 0x000E

	eepromWordMailboxOutStart  = 0x0018
	eepromWordMailboxOutLength = 0x0019
	eepromWordMailboxInStart   = 0x001A
	eepromWordMailboxInLength  = 0x001B
	eepromWordMailboxProtocol  = 0x001C
)

// EEPROM is a SubDevice's SII EEPROM accessed a word at a time through
// the ESC's EEPROM control/address/data register triple. Both identity
// lookup here and the category walk package pdi performs for PDO
// discovery (spec §4.5, §9) go through this type.
type EEPROM struct {
	MD      *pduloop.MainDevice
	Timeout time.Duration
}

func (e EEPROM) timeout() time.Duration {
	if e.Timeout > 0 {
		return e.Timeout
	}
	return ethercat.DefaultTimeoutEeprom
}

// ReadWords reads len(dst) consecutive 16-bit SII words starting at
// wordAddr from the SubDevice at configuredAddr.
func (e EEPROM) ReadWords(ctx context.Context, configuredAddr uint16, wordAddr uint32, dst []uint16) error {
	for i := range dst {
		v, err := e.readWord(ctx, configuredAddr, wordAddr+uint32(i))
		if err != nil {
			return err
		}
		dst[i] = v
	}
	return nil
}

func (e EEPROM) readWord(ctx context.Context, configuredAddr uint16, wordAddr uint32) (uint16, error) {
	var req [6]byte
	binary.LittleEndian.PutUint16(req[0:2], eepromCmdRead)
	binary.LittleEndian.PutUint32(req[2:6], wordAddr)
	if err := e.fpwr(ctx, configuredAddr, regEepromControl, req[:]); err != nil {
		return 0, err
	}

	deadline := time.Now().Add(e.timeout())
	for {
		status, err := e.fprd(ctx, configuredAddr, regEepromControl, 2)
		if err != nil {
			return 0, err
		}
		if binary.LittleEndian.Uint16(status)&eepromBusyBit == 0 {
			break
		}
		if time.Now().After(deadline) {
			return 0, &ethercat.TimeoutError{Kind: ethercat.TimeoutEeprom}
		}
	}
	data, err := e.fprd(ctx, configuredAddr, regEepromData, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(data), nil
}

func (e EEPROM) fpwr(ctx context.Context, configuredAddr uint16, reg ethercat.RegisterAddr, payload []byte) error {
	h, err := e.MD.SendReceive(pdu.Fpwr(configuredAddr, uint16(reg)), payload)
	if err != nil {
		return err
	}
	_, _, err = h.Receive(ctx, nil)
	return err
}

func (e EEPROM) fprd(ctx context.Context, configuredAddr uint16, reg ethercat.RegisterAddr, n int) ([]byte, error) {
	h, err := e.MD.SendReceive(pdu.Fprd(configuredAddr, uint16(reg)), make([]byte, n))
	if err != nil {
		return nil, err
	}
	dst := make([]byte, n)
	_, _, err = h.Receive(ctx, dst)
	return dst, err
}

// ReadIdentity reads the SII general-area identity words (vendor,
// product code, revision, serial) for the SubDevice at configuredAddr.
func (e EEPROM) ReadIdentity(ctx context.Context, configuredAddr uint16) (Identity, error) {
	var words [8]uint16
	if err := e.ReadWords(ctx, configuredAddr, eepromWordVendorID, words[:]); err != nil {
		return Identity{}, err
	}
	return Identity{
		VendorID:       uint32(words[1])<<16 | uint32(words[0]),
		ProductCode:    uint32(words[3])<<16 | uint32(words[2]),
		RevisionNumber: uint32(words[5])<<16 | uint32(words[4]),
		SerialNumber:   uint32(words[7])<<16 | uint32(words[6]),
	}, nil
}

// ReadMailboxConfig reads the SII general-area standard mailbox
// configuration (out/in start address, length, and supported mailbox
// protocols bitmask) for the SubDevice at configuredAddr.
func (e EEPROM) ReadMailboxConfig(ctx context.Context, configuredAddr uint16) (Mailbox, error) {
	var words [5]uint16
	if err := e.ReadWords(ctx, configuredAddr, eepromWordMailboxOutStart, words[:]); err != nil {
		return Mailbox{}, err
	}
	return Mailbox{
		OutStart:           words[0],
		OutLength:          words[1],
		InStart:            words[2],
		InLength:           words[3],
		ProtocolsSupported: words[4],
	}, nil
}

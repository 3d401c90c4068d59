package pdu

import "encoding/binary"

// Code is the one-byte EtherCAT command code identifying a PDU's
// addressing mode and read/write direction.
type Code uint8

// Command codes, matching the values the EtherCAT protocol defines on
// the wire (not sequential, not grouped by read/write).
const (
	CodeNOP  Code = 0x00 // No operation.
	CodeAPRD Code = 0x01 // Auto Increment Physical Read.
	CodeAPWR Code = 0x02 // Auto Increment Physical Write.
	CodeFPRD Code = 0x04 // Configured Address Physical Read.
	CodeFPWR Code = 0x05 // Configured Address Physical Write.
	CodeBRD  Code = 0x07 // Broadcast Read.
	CodeBWR  Code = 0x08 // Broadcast Write.
	CodeLRD  Code = 0x0A // Logical Read.
	CodeLWR  Code = 0x0B // Logical Write.
	CodeLRW  Code = 0x0C // Logical Read Write.
	CodeFRMW Code = 0x0E // Auto Increment Physical Read Multiple Write.
)

func (c Code) String() string {
	switch c {
	case CodeNOP:
		return "NOP"
	case CodeAPRD:
		return "APRD"
	case CodeAPWR:
		return "APWR"
	case CodeFPRD:
		return "FPRD"
	case CodeFPWR:
		return "FPWR"
	case CodeBRD:
		return "BRD"
	case CodeBWR:
		return "BWR"
	case CodeLRD:
		return "LRD"
	case CodeLWR:
		return "LWR"
	case CodeLRW:
		return "LRW"
	case CodeFRMW:
		return "FRMW"
	default:
		return "Code(?)"
	}
}

// IsLogical reports whether the command addresses SubDevices by
// logical (PDI) address rather than by station address and register.
func (c Code) IsLogical() bool {
	return c == CodeLRD || c == CodeLWR || c == CodeLRW
}

// IsRead reports whether a SubDevice processing this command reads
// into the PDU's payload (including FRMW's leading read and LRW's
// combined read-write).
func (c Code) IsRead() bool {
	switch c {
	case CodeAPRD, CodeFPRD, CodeBRD, CodeLRD, CodeFRMW, CodeLRW:
		return true
	}
	return false
}

// IsWrite reports whether a SubDevice processing this command writes
// from the PDU's payload (including FRMW's trailing writes and LRW's
// combined read-write).
func (c Code) IsWrite() bool {
	switch c {
	case CodeBWR, CodeAPWR, CodeFPWR, CodeLWR, CodeFRMW, CodeLRW:
		return true
	}
	return false
}

// Command is a tagged union of every EtherCAT command variant. Values
// are built with the package-level constructors (Nop, Fprd, Brd, ...)
// and carry either a (station address, register) pair or a logical
// address, depending on Code.
type Command struct {
	code     Code
	station  uint16
	register uint16
	logical  uint32
}

// Nop builds a no-operation command. A NOP PDU still occupies a slot
// and a working-counter position, useful for padding a frame to a
// minimum length or holding a place in a PDU chain.
func Nop() Command { return Command{code: CodeNOP} }

// Aprd builds an Auto Increment Physical Read: autoIncrement is added
// (with wraparound) to each SubDevice's position on the bus as it
// forwards the telegram, so a value of 0 addresses the first device.
func Aprd(autoIncrement, register uint16) Command {
	return Command{code: CodeAPRD, station: autoIncrement, register: register}
}

// Apwr builds an Auto Increment Physical Write.
func Apwr(autoIncrement, register uint16) Command {
	return Command{code: CodeAPWR, station: autoIncrement, register: register}
}

// Fprd builds a Configured Address Physical Read addressed to a
// SubDevice's configured station address.
func Fprd(stationAddr, register uint16) Command {
	return Command{code: CodeFPRD, station: stationAddr, register: register}
}

// Fpwr builds a Configured Address Physical Write.
func Fpwr(stationAddr, register uint16) Command {
	return Command{code: CodeFPWR, station: stationAddr, register: register}
}

// Brd builds a Broadcast Read: every SubDevice on the bus logically
// ORs its register contents into the response, and increments the
// working counter.
func Brd(register uint16) Command {
	return Command{code: CodeBRD, register: register}
}

// Bwr builds a Broadcast Write: every SubDevice on the bus writes the
// payload to its own copy of register.
func Bwr(register uint16) Command {
	return Command{code: CodeBWR, register: register}
}

// Frmw builds an Auto Increment Physical Read Multiple Write: the
// first addressed SubDevice reads register into the payload, every
// subsequent SubDevice on the bus overwrites it with the same value.
// Used to distribute the Distributed Clocks system time.
func Frmw(autoIncrement, register uint16) Command {
	return Command{code: CodeFRMW, station: autoIncrement, register: register}
}

// Lrd builds a Logical Read addressed by the process data image's
// logical address space (see package pdi).
func Lrd(logicalAddr uint32) Command { return Command{code: CodeLRD, logical: logicalAddr} }

// Lwr builds a Logical Write.
func Lwr(logicalAddr uint32) Command { return Command{code: CodeLWR, logical: logicalAddr} }

// Lrw builds a combined Logical Read Write: SubDevices mapped to read
// segments of the address range write their inputs into the payload,
// SubDevices mapped to write segments read their outputs from it.
func Lrw(logicalAddr uint32) Command { return Command{code: CodeLRW, logical: logicalAddr} }

// Code returns the command's variant.
func (c Command) Code() Code { return c.code }

// StationAddress returns the physical/configured station address (or
// auto-increment counter) for addressed commands. Meaningless for
// logical or broadcast-register-only commands.
func (c Command) StationAddress() uint16 { return c.station }

// Register returns the ESC register address for addressed and
// broadcast commands.
func (c Command) Register() uint16 { return c.register }

// LogicalAddress returns the PDI logical address for LRD/LWR/LRW commands.
func (c Command) LogicalAddress() uint32 { return c.logical }

// CommandRaw encodes the command-specific address data as it is
// written into a PduHeader's CommandRaw field: little-endian station
// address followed by register for addressed commands, or a single
// little-endian logical address for logical commands.
func (c Command) CommandRaw() [4]byte {
	var raw [4]byte
	if c.code.IsLogical() {
		binary.LittleEndian.PutUint32(raw[:], c.logical)
	} else {
		binary.LittleEndian.PutUint16(raw[0:2], c.station)
		binary.LittleEndian.PutUint16(raw[2:4], c.register)
	}
	return raw
}

// ParseCommandRaw decodes the address data of code from raw, the
// inverse of CommandRaw, used when a frame element's received PDU
// header is walked back into a Command for the caller's response
// handle.
func ParseCommandRaw(code Code, raw [4]byte) Command {
	c := Command{code: code}
	if code.IsLogical() {
		c.logical = binary.LittleEndian.Uint32(raw[:])
	} else {
		c.station = binary.LittleEndian.Uint16(raw[0:2])
		c.register = binary.LittleEndian.Uint16(raw[2:4])
	}
	return c
}

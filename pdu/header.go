package pdu

import "encoding/binary"

// Header wraps the 2-byte EtherCAT frame header that sits between the
// Ethernet II header and the first PDU header of a telegram.
//
// Bit layout (little-endian 16-bit word): length:11, reserved:1, type:4.
type Header struct {
	buf []byte
}

// NewHeader returns a Header wrapping buf. buf must be at least
// HeaderLength bytes; the returned Header aliases it.
func NewHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderLength {
		return Header{}, errShortHeader
	}
	return Header{buf: buf[:HeaderLength]}, nil
}

func (h Header) raw() uint16 { return binary.LittleEndian.Uint16(h.buf) }

func (h Header) setRaw(v uint16) { binary.LittleEndian.PutUint16(h.buf, v) }

// Length returns the length in bytes of the telegram data following this
// header (the sum of every PDU's header+payload+working-counter size).
func (h Header) Length() uint16 { return h.raw() & 0x7ff }

// SetLength sets the Length field. Panics if v exceeds MaxPayloadLength.
func (h Header) SetLength(v uint16) {
	if v > MaxPayloadLength {
		panic("pdu: length exceeds 11 bits")
	}
	h.setRaw(h.raw()&^uint16(0x7ff) | v)
}

// Type returns the 4-bit frame type field. This implementation only
// ever writes TypePDU.
func (h Header) Type() uint8 { return uint8(h.raw() >> 12) }

// SetType sets the 4-bit frame type field.
func (h Header) SetType(t uint8) {
	h.setRaw(h.raw()&0x0fff | uint16(t&0xf)<<12)
}

// RawData returns the underlying 2-byte buffer.
func (h Header) RawData() []byte { return h.buf }

// Flags holds the 2-byte flags field of a PDU header.
//
// Bit layout (little-endian 16-bit word): length:11, reserved:3,
// circulated:1, more_follows:1.
type Flags uint16

// NewFlags builds a Flags value from its components.
func NewFlags(length uint16, circulated, moreFollows bool) Flags {
	f := Flags(length & 0x7ff)
	if circulated {
		f |= 1 << 14
	}
	if moreFollows {
		f |= 1 << 15
	}
	return f
}

// Length returns the PDU payload length in bytes, excluding header and
// working counter.
func (f Flags) Length() uint16 { return uint16(f) & 0x7ff }

// Circulated reports whether this PDU has already circulated the bus
// once (every SubDevice it would reach has processed it).
func (f Flags) Circulated() bool { return f&(1<<14) != 0 }

// MoreFollows reports whether another PDU follows this one in the same
// EtherCAT frame.
func (f Flags) MoreFollows() bool { return f&(1<<15) != 0 }

// WithLength returns f with its length field replaced.
func (f Flags) WithLength(length uint16) Flags {
	return Flags(uint16(f)&^uint16(0x7ff) | (length & 0x7ff))
}

// WithMoreFollows returns f with its more-follows bit set or cleared.
func (f Flags) WithMoreFollows(v bool) Flags {
	if v {
		return f | (1 << 15)
	}
	return f &^ (1 << 15)
}

// PduHeader wraps the 10-byte header preceding every PDU's payload:
// command code, index, command-specific address data, flags and IRQ.
type PduHeader struct {
	buf []byte
}

// NewPduHeader returns a PduHeader wrapping buf. buf must be at least
// PduHeaderLength bytes; the returned PduHeader aliases it.
func NewPduHeader(buf []byte) (PduHeader, error) {
	if len(buf) < PduHeaderLength {
		return PduHeader{}, errShortPduHeader
	}
	return PduHeader{buf: buf[:PduHeaderLength]}, nil
}

// RawData returns the underlying 10-byte buffer.
func (h PduHeader) RawData() []byte { return h.buf }

// Command returns the raw command code byte.
func (h PduHeader) Command() Code { return Code(h.buf[0]) }

// SetCommand sets the command code byte.
func (h PduHeader) SetCommand(c Code) { h.buf[0] = byte(c) }

// Index returns the PDU index used to correlate this PDU's response.
func (h PduHeader) Index() uint8 { return h.buf[1] }

// SetIndex sets the PDU index field.
func (h PduHeader) SetIndex(idx uint8) { h.buf[1] = idx }

// CommandRaw returns the 4 bytes of command-specific address data,
// either (station address, register) or a single logical address,
// depending on Command's variant.
func (h PduHeader) CommandRaw() [4]byte { return [4]byte(h.buf[2:6]) }

// SetCommandRaw sets the 4 bytes of command-specific address data.
func (h PduHeader) SetCommandRaw(raw [4]byte) { copy(h.buf[2:6], raw[:]) }

// Flags returns the PDU's flags field.
func (h PduHeader) Flags() Flags { return Flags(binary.LittleEndian.Uint16(h.buf[6:8])) }

// SetFlags sets the PDU's flags field.
func (h PduHeader) SetFlags(f Flags) { binary.LittleEndian.PutUint16(h.buf[6:8], uint16(f)) }

// IRQ returns the PDU's interrupt request field.
func (h PduHeader) IRQ() uint16 { return binary.LittleEndian.Uint16(h.buf[8:10]) }

// SetIRQ sets the PDU's interrupt request field.
func (h PduHeader) SetIRQ(v uint16) { binary.LittleEndian.PutUint16(h.buf[8:10], v) }

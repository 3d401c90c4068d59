package pdu

import (
	"encoding/binary"
	"errors"

	"github.com/soypat/ethercat"
)

var errTruncatedChain = errors.New("pdu: PDU chain truncated")

// Frame wraps the EtherCAT telegram portion of a buffer: the 2-byte
// EtherCAT header followed by one or more {PduHeader, payload, working
// counter} segments. The caller is responsible for positioning buf
// immediately after the Ethernet II header (see package ethernet).
type Frame struct {
	buf []byte
}

// NewFrame returns a Frame wrapping buf. buf must be at least
// HeaderLength bytes; callers should still call ValidateSize before
// walking the PDU chain to avoid panics on truncated buffers.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < HeaderLength {
		return Frame{}, errShortHeader
	}
	return Frame{buf: buf}, nil
}

// RawData returns the underlying buffer, header through the last PDU's
// working counter.
func (f Frame) RawData() []byte { return f.buf }

// Header returns the EtherCAT frame header.
func (f Frame) Header() Header {
	h, _ := NewHeader(f.buf)
	return h
}

// Telegram returns the bytes following the EtherCAT header: the PDU
// chain, sized per the header's Length field.
func (f Frame) Telegram() []byte {
	n := HeaderLength + int(f.Header().Length())
	if n > len(f.buf) {
		n = len(f.buf)
	}
	return f.buf[HeaderLength:n]
}

// ValidateSize checks the header's Length field against the actual
// buffer size.
func (f Frame) ValidateSize(v *ethercat.Validator) {
	need := HeaderLength + int(f.Header().Length())
	if need > len(f.buf) {
		v.AddError(errTruncatedChain)
	}
}

// Visit is called once per PDU segment found by Walk. payload excludes
// the PduHeader and the trailing working counter. Returning false stops
// the walk early (the remaining PDUs, if any, are not visited).
type Visit func(h PduHeader, payload []byte, wkc uint16) bool

// Walk iterates the PDU chain in wire order, following each segment's
// more-follows flag, and calls visit once per PDU. It returns
// errTruncatedChain if a segment's declared length runs past the end
// of the buffer.
func (f Frame) Walk(visit Visit) error {
	off := HeaderLength
	for {
		if off+PduHeaderLength > len(f.buf) {
			return errTruncatedChain
		}
		h, err := NewPduHeader(f.buf[off:])
		if err != nil {
			return err
		}
		flags := h.Flags()
		dataStart := off + PduHeaderLength
		dataEnd := dataStart + int(flags.Length())
		wkcEnd := dataEnd + WorkingCounterLength
		if wkcEnd > len(f.buf) {
			return errTruncatedChain
		}
		wkc := binary.LittleEndian.Uint16(f.buf[dataEnd:wkcEnd])
		cont := visit(h, f.buf[dataStart:dataEnd], wkc)
		if !cont || !flags.MoreFollows() {
			return nil
		}
		off = wkcEnd
	}
}

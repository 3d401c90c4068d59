package pduloop

import (
	"github.com/soypat/ethercat/pdu"
)

const ethernetHeaderLen = 14

// CreatedFrame is an exclusively-owned frame in StateCreated, accepting
// PushPdu calls until MarkSendable hands it to the TX side.
type CreatedFrame struct {
	storage *PduStorage
	el      *frameElement
}

// payloadBase returns the offset of the EtherCAT payload area (after
// the Ethernet header and the 2-byte EtherCAT frame header) within the
// frame's buffer.
func (cf CreatedFrame) payloadBase() int { return ethernetHeaderLen + pdu.HeaderLength }

// PduHandle references one PDU packed into a frame. It is returned by
// PushPdu and is the unit futures/responses are correlated through.
type PduHandle struct {
	storage       *PduStorage
	el            *frameElement
	markerIndex   uint8
	cmd           pdu.Command
	payloadOffset int
	payloadLen    int
}

// PushPdu appends a PDU to the frame: command, payload (copied in,
// since it may also serve as the write data for Apwr/Fpwr/etc.), and
// whether more PDUs will follow it in this same frame. Fails with
// errTooLong if the remaining buffer capacity cannot hold the new
// segment, errTooManyPDUs if the frame already holds maxPDUsPerFrame
// PDUs, or errInvalidFrameState if the next marker index in the shared
// rotation is still reserved.
func (cf CreatedFrame) PushPdu(cmd pdu.Command, payload []byte, moreFollows bool) (PduHandle, error) {
	el := cf.el
	if el.pduCount >= maxPDUsPerFrame {
		return PduHandle{}, errTooManyPDUs
	}
	base := cf.payloadBase()
	off := base + el.payloadLen
	segLen := pdu.PduHeaderLength + len(payload) + pdu.WorkingCounterLength
	if off+segLen > len(el.buf) {
		return PduHandle{}, errTooLong
	}

	markerIdx := cf.storage.nextMarkerIndex()
	if err := cf.storage.markers.reserve(markerIdx, el.frameIndex); err != nil {
		return PduHandle{}, err
	}

	h, _ := pdu.NewPduHeader(el.buf[off:])
	h.SetCommand(cmd.Code())
	h.SetIndex(markerIdx)
	h.SetCommandRaw(cmd.CommandRaw())
	h.SetFlags(pdu.NewFlags(uint16(len(payload)), false, moreFollows))
	h.SetIRQ(0)
	copy(el.buf[off+pdu.PduHeaderLength:], payload)

	if el.pduCount > 0 {
		cf.setPreviousMoreFollows(true)
	}

	el.markerIdx[el.pduCount] = markerIdx
	el.pduCount++
	el.payloadLen += segLen
	el.incRef()

	return PduHandle{
		storage:       cf.storage,
		el:            el,
		markerIndex:   markerIdx,
		cmd:           cmd,
		payloadOffset: off + pdu.PduHeaderLength,
		payloadLen:    len(payload),
	}, nil
}

// setPreviousMoreFollows rewrites the more-follows bit of the PDU
// pushed immediately before the one currently being appended: per the
// multi-PDU packing algorithm, every PDU except the last one in a
// frame must carry more_follows=1. Walking the chain from the base is
// cheaper than tracking a per-PDU offset table since pduCount per
// frame is always small.
func (cf CreatedFrame) setPreviousMoreFollows(v bool) {
	el := cf.el
	off := cf.payloadBase()
	for i := uint8(0); i < el.pduCount-1; i++ {
		h, _ := pdu.NewPduHeader(el.buf[off:])
		off += pdu.PduHeaderLength + int(h.Flags().Length()) + pdu.WorkingCounterLength
	}
	h, _ := pdu.NewPduHeader(el.buf[off:])
	h.SetFlags(h.Flags().WithMoreFollows(v))
}

// MarkSendable finalizes the frame: writes the EtherCAT header's
// length field and transitions Created->Sendable, per the invariant
// that the header length equals the sum of PDU segment sizes written
// so far. After this call the frame must not be touched again by the
// caller that created it.
func (cf CreatedFrame) MarkSendable() error {
	el := cf.el
	ecatHdr, _ := pdu.NewHeader(el.buf[ethernetHeaderLen:])
	ecatHdr.SetLength(uint16(el.payloadLen))
	ecatHdr.SetType(pdu.TypePDU)
	if !el.swapState(StateCreated, StateSendable) {
		return errInvalidFrameState
	}
	return nil
}

// Abandon releases a frame before it is made sendable, immediately
// returning it to None and freeing every marker it had claimed.
func (cf CreatedFrame) Abandon() {
	el := cf.el
	for i := uint8(0); i < el.pduCount; i++ {
		cf.storage.markers.releaseForFrame(el.markerIdx[i], el.frameIndex)
	}
	el.state.Store(uint32(StateNone))
}

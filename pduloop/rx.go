package pduloop

import (
	"github.com/soypat/ethercat/ethernet"
	"github.com/soypat/ethercat/pdu"
)

// PduRx is the receive-side view over a PduStorage: it takes raw
// Ethernet frames pulled off the wire and correlates each PDU in them
// back to the frame element that sent it.
type PduRx struct {
	storage *PduStorage
}

// ReceiveFrame parses one Ethernet frame read off the wire and, if it
// is an EtherCAT frame this MainDevice sent, copies its PDU responses
// into the owning frame element and marks it RxDone. Frames with a
// foreign EtherType, or whose source MAC matches this MainDevice's own
// (the frame looping back around the bus to its origin), are dropped
// silently: both are expected, routine traffic on a shared segment,
// not errors.
func (rx *PduRx) ReceiveFrame(buf []byte) error {
	ethFrame, err := ethernet.NewFrame(buf)
	if err != nil {
		return nil // too short to be any kind of frame we care about.
	}
	if ethFrame.EtherTypeOrSize() != ethernet.TypeEtherCAT {
		return nil
	}
	if *ethFrame.SourceHardwareAddr() == rx.storage.localMAC {
		return nil
	}

	ecatHdr, err := pdu.NewHeader(buf[ethernetHeaderLen:])
	if err != nil {
		return errFramePacketDrop
	}
	payload := buf[ethernetHeaderLen+pdu.HeaderLength:]
	if len(payload) < int(ecatHdr.Length()) {
		return errFramePacketDrop
	}
	payload = payload[:ecatHdr.Length()]

	off := 0
	var ownerFrameIdx uint8
	var ownerFound bool
	first := true
	for {
		h, err := pdu.NewPduHeader(payload[off:])
		if err != nil {
			return errFramePacketDrop
		}
		segLen := pdu.PduHeaderLength + int(h.Flags().Length()) + pdu.WorkingCounterLength
		if off+segLen > len(payload) {
			return errFramePacketDrop
		}
		if first {
			fi, ok := rx.storage.markers.frameIndex(h.Index())
			if !ok {
				// The marker table has no waiting task for this index:
				// either it was never reserved or was already released.
				return errNoWaker
			}
			ownerFrameIdx, ownerFound = fi, true
			first = false
		}
		more := h.Flags().MoreFollows()
		off += segLen
		if !more {
			break
		}
	}
	if !ownerFound {
		return errFramePacketDrop
	}

	el := &rx.storage.frames[ownerFrameIdx]
	if !el.claimReceiving() {
		return rx.storage.wrapErr("receive_frame", ownerFrameIdx, errFramePacketDrop)
	}
	copy(el.buf[ethernetHeaderLen:], buf[ethernetHeaderLen:ethernetHeaderLen+pdu.HeaderLength+len(payload)])
	el.markRxDone()
	return nil
}

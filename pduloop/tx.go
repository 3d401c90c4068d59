package pduloop

import (
	"github.com/soypat/ethercat/internal"
	"github.com/soypat/ethercat/pdu"
)

// PduTx is the transmit-side view over a PduStorage: it hands the
// driver loop sendable frames and records the outcome of writing them
// to the wire.
type PduTx struct {
	storage *PduStorage
	scan    int // round-robin cursor over storage.frames, TX side only
	backoff internal.Backoff
}

// SendableFrame is a frame claimed for sending: exactly one PduTx
// holds it at a time, between NextSendableFrame and Send.
type SendableFrame struct {
	storage *PduStorage
	el      *frameElement
}

// Backoff returns the PDU-retry backoff this PduTx keeps for its
// driver loop to wait on between NextSendableFrame misses.
func (tx *PduTx) Backoff() *internal.Backoff {
	if tx.backoff == (internal.Backoff{}) {
		tx.backoff = internal.NewBackoff(internal.BackoffPduRetry)
	}
	return &tx.backoff
}

// NextSendableFrame scans storage for a frame in StateSendable and
// claims it for sending. Returns ok=false if none is currently
// sendable; callers should back off before retrying.
func (tx *PduTx) NextSendableFrame() (SendableFrame, bool) {
	n := len(tx.storage.frames)
	for i := 0; i < n; i++ {
		idx := (tx.scan + i) % n
		f := &tx.storage.frames[idx]
		if f.loadState() == StateSendable && f.claimSending() {
			tx.scan = (idx + 1) % n
			return SendableFrame{storage: tx.storage, el: f}, true
		}
	}
	return SendableFrame{}, false
}

// Bytes returns the frame's wire bytes, ready to write verbatim.
func (sf SendableFrame) Bytes() []byte {
	return sf.el.buf[:ethernetHeaderLen+pdu.HeaderLength+sf.el.payloadLen]
}

// Send writes the frame through write. On success the frame moves to
// Sent, ready for the RX side to correlate a reply against. A partial
// write (n != len(buf), err == nil) is treated the same as a write
// failure per spec §4.2: the frame was never fully put on the wire, so
// it reverts to Sendable for another attempt, up to the storage's
// configured MaxSendRetries, after which it is abandoned back to None
// and err is returned to the caller.
func (sf SendableFrame) Send(write func([]byte) (int, error)) error {
	el := sf.el
	buf := sf.Bytes()
	n, err := write(buf)
	if err == nil && n == len(buf) {
		el.markSent()
		return nil
	}
	if err == nil {
		err = errShortWrite
	}
	if !el.revertSendable(sf.storage.maxSendRetry) {
		for i := uint8(0); i < el.pduCount; i++ {
			sf.storage.markers.releaseForFrame(el.markerIdx[i], el.frameIndex)
		}
		el.reclaimToNone()
	}
	return sf.storage.wrapErr("send", el.frameIndex, err)
}

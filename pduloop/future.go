package pduloop

import (
	"context"

	"github.com/soypat/ethercat"
	"github.com/soypat/ethercat/pdu"
)

// Receive blocks until the frame this PDU belongs to has been received
// and processed, or ctx is done first. On success it returns the
// working counter and writes the response payload into dst (which
// must be at least as large as the payload PushPdu was given),
// returning the number of bytes copied.
//
// Receive may be called once per PduHandle; calling it again after
// success returns a zero-value result, since the underlying frame may
// already have been reclaimed for reuse.
func (ph PduHandle) Receive(ctx context.Context, dst []byte) (n int, wkc uint16, err error) {
	el := ph.el
	select {
	case <-el.done:
	case <-ctx.Done():
		ph.storage.abandonInFlight(el)
		return 0, 0, ctx.Err()
	}

	// Only one of possibly several PduHandles sharing this frame wins the
	// RxDone->RxProcessing transition; the rest find it already there.
	el.claimRxProcessing()
	if st := el.loadState(); st != StateRxProcessing {
		return 0, 0, ph.storage.wrapErr("receive", el.frameIndex, errNoWaker)
	}

	ecatFrame, ferr := pdu.NewFrame(el.buf[ethernetHeaderLen:])
	if ferr != nil {
		el.decRef()
		return 0, 0, ferr
	}
	var found bool
	walkErr := ecatFrame.Walk(func(h pdu.PduHeader, payload []byte, segWkc uint16) bool {
		if h.Index() != ph.markerIndex {
			return true
		}
		n = copy(dst, payload)
		wkc = segWkc
		found = true
		return false
	})

	// Release this PDU's marker once its response has been read; the
	// frame itself is freed for reuse once every PDU handle sharing it
	// has done the same (see decRef).
	ph.storage.markers.releaseForFrame(ph.markerIndex, el.frameIndex)
	el.decRef()

	if walkErr != nil {
		return 0, 0, walkErr
	}
	if !found {
		return 0, 0, ph.storage.wrapErr("receive", el.frameIndex, errNoWaker)
	}
	if wkc == 0 {
		return n, wkc, &ethercat.WorkingCounterError{Expected: 1, Received: wkc}
	}
	return n, wkc, nil
}

// abandonInFlight is called when a caller's context is canceled before
// a response arrives: it drops this handle's reference and, once every
// handle referencing the frame has abandoned it, releases the frame's
// PDU markers and reclaims the frame to None via the
// timeout/cancellation path rather than the normal RX completion path.
func (s *PduStorage) abandonInFlight(el *frameElement) {
	el.decRef()
	if el.refCount.Load() <= 0 {
		for i := uint8(0); i < el.pduCount; i++ {
			s.markers.releaseForFrame(el.markerIdx[i], el.frameIndex)
		}
		el.reclaimToNone()
	}
}

package pduloop

import "sync/atomic"

// frameElement is one slot of a PduStorage: a reusable Ethernet buffer
// plus the atomic typestate that arbitrates who may touch it.
//
// The typestate is the single source of truth for ownership (see
// FrameState). While in StateCreated exactly one goroutine owns buf;
// from StateSendable onward the TX side may observe it; from
// StateSent onward the RX side may observe it. Every other field is
// only mutated by whichever side currently owns the frame per the
// typestate, so none of them need to be atomic themselves.
type frameElement struct {
	frameIndex  uint8
	state       atomic.Uint32
	refCount    atomic.Int32
	buf         []byte
	payloadLen  int
	pduCount    uint8
	markerIdx   [maxPDUsPerFrame]uint8
	sendRetries uint8
	done        chan struct{}
}

func (f *frameElement) loadState() FrameState { return FrameState(f.state.Load()) }

func (f *frameElement) swapState(from, to FrameState) bool {
	return f.state.CompareAndSwap(uint32(from), uint32(to))
}

// claimCreated attempts to take ownership of a None frame, resetting
// its bookkeeping fields. frameIndex is stamped so later code (marker
// release, response correlation) can identify this slot without a
// pointer comparison.
func (f *frameElement) claimCreated(frameIndex uint8) bool {
	if !f.swapState(StateNone, StateCreated) {
		return false
	}
	f.frameIndex = frameIndex
	f.payloadLen = 0
	f.pduCount = 0
	f.sendRetries = 0
	f.refCount.Store(0)
	f.done = make(chan struct{})
	return true
}

// claimSending moves a Sendable frame to Sending, the TX adapter's cue
// to begin writing buf to the wire.
func (f *frameElement) claimSending() bool { return f.swapState(StateSendable, StateSending) }

// revertSendable moves a Sending frame back to Sendable after a
// transient send failure, per §7's retry policy. Returns false (and
// leaves the frame untouched) once sendRetries reaches max.
func (f *frameElement) revertSendable(max uint8) bool {
	if f.sendRetries >= max {
		return false
	}
	f.sendRetries++
	return f.swapState(StateSending, StateSendable)
}

// markSent moves a Sending frame to Sent once the TX adapter's write
// returns without error.
func (f *frameElement) markSent() bool { return f.swapState(StateSending, StateSent) }

// claimReceiving moves a Sent frame to RxBusy, giving the RX path
// exclusive access to copy response bytes into buf.
func (f *frameElement) claimReceiving() bool { return f.swapState(StateSent, StateRxBusy) }

// markRxDone moves an RxBusy frame to RxDone and wakes every waiter
// blocked on done.
func (f *frameElement) markRxDone() bool {
	ok := f.swapState(StateRxBusy, StateRxDone)
	if ok {
		close(f.done)
	}
	return ok
}

// claimRxProcessing moves an RxDone frame to RxProcessing: waiters
// have been told the data is ready and may now read it through their
// PDU handles.
func (f *frameElement) claimRxProcessing() bool { return f.swapState(StateRxDone, StateRxProcessing) }

// reclaimToNone attempts to force the frame back to None from any of
// the in-flight states a timeout or cancellation can observe it in.
// Used by Send once a frame's send retries are exhausted, and by
// Receive's cancellation path once every handle on the frame has
// abandoned it.
func (f *frameElement) reclaimToNone() bool {
	for _, from := range [...]FrameState{StateCreated, StateSendable, StateSending, StateSent} {
		if f.swapState(from, StateNone) {
			if f.done != nil {
				select {
				case <-f.done:
				default:
					close(f.done)
				}
			}
			return true
		}
	}
	return false
}

// incRef records one more outstanding PDU handle referencing this frame.
func (f *frameElement) incRef() { f.refCount.Add(1) }

// decRef records a PDU handle being dropped. When the count reaches
// zero and the frame is in RxProcessing, the frame becomes reusable
// (None) again.
func (f *frameElement) decRef() {
	if f.refCount.Add(-1) == 0 && f.loadState() == StateRxProcessing {
		f.state.Store(uint32(StateNone))
	}
}

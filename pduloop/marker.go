package pduloop

import "sync/atomic"

// markers is the 256-entry PDU marker table: a mapping from an 8-bit
// PDU index to the frame index that owns it, or the sentinel if the
// index is currently unused. The Go standard library has no atomic
// 16-bit type, so each slot is stored in an atomic.Uint32 holding
// values in [0, 0x1ff].
type markers struct {
	slots [256]atomic.Uint32
}

func newMarkers() *markers {
	m := &markers{}
	for i := range m.slots {
		m.slots[i].Store(markerSentinel)
	}
	return m
}

// reserve attempts to claim marker idx for frameIndex. It fails with
// errInvalidFrameState if the marker is not currently the sentinel.
func (m *markers) reserve(idx uint8, frameIndex uint8) error {
	if !m.slots[idx].CompareAndSwap(markerSentinel, uint32(frameIndex)) {
		return errInvalidFrameState
	}
	return nil
}

// frameIndex returns the frame index owning marker idx, or ok=false if
// the marker is unused.
func (m *markers) frameIndex(idx uint8) (frameIndex uint8, ok bool) {
	v := m.slots[idx].Load()
	if v == markerSentinel {
		return 0, false
	}
	return uint8(v), true
}

// releaseForFrame resets marker idx to the sentinel only if it still
// points at frameIndex, mirroring the teacher's compare-before-clear
// idiom for the frame-element typestate.
func (m *markers) releaseForFrame(idx uint8, frameIndex uint8) {
	m.slots[idx].CompareAndSwap(uint32(frameIndex), markerSentinel)
}

// release unconditionally resets marker idx to the sentinel.
func (m *markers) release(idx uint8) {
	m.slots[idx].Store(markerSentinel)
}

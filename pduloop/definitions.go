// Package pduloop implements the asynchronous, lock-minimizing PDU
// transport loop: fixed-capacity frame storage, the per-PDU marker
// table, the frame element typestate, and the PduTx/PduRx/MainDevice
// types that pack, send, receive and correlate PDUs.
//
// Every frame element's ownership is tracked by a single atomic state
// field transitioned with compare-and-swap; there is no mutex on the
// hot path. This is the one package in this module that departs from
// the teacher's own concurrency style (coarse sync.Mutex guarding a
// single-goroutine stack) because multiple futures may claim, send and
// receive frames concurrently and a mutex here would serialize exactly
// the work this loop exists to parallelize.
package pduloop

import "time"

// FrameState is the lifecycle stage of a buffered frame. The zero value
// (None) must mean "available to claim": frame storage is allocated
// zeroed and relies on this.
type FrameState uint32

const (
	// StateNone: available to claim. Default/zero value.
	StateNone FrameState = iota
	// StateCreated: claimed by exactly one caller, buffer writable,
	// accepting PushPdu calls.
	StateCreated
	// StateSendable: fully packed, waiting for the TX adapter to pick it up.
	StateSendable
	// StateSending: handed to the TX adapter, write in progress.
	StateSending
	// StateSent: written to the wire, awaiting a response.
	StateSent
	// StateRxBusy: a response arrived and is being validated/copied in.
	StateRxBusy
	// StateRxDone: response fully processed; waiters may read the buffer.
	StateRxDone
	// StateRxProcessing: waiters have been woken but may still hold
	// PDU handles into the buffer.
	StateRxProcessing
)

func (s FrameState) String() string {
	switch s {
	case StateNone:
		return "None"
	case StateCreated:
		return "Created"
	case StateSendable:
		return "Sendable"
	case StateSending:
		return "Sending"
	case StateSent:
		return "Sent"
	case StateRxBusy:
		return "RxBusy"
	case StateRxDone:
		return "RxDone"
	case StateRxProcessing:
		return "RxProcessing"
	default:
		return "FrameState(?)"
	}
}

const (
	// markerSentinel marks a PDU marker slot as unused. Frame indices
	// are single bytes (0..255), so a sentinel with the high byte set
	// can never collide with a real frame index.
	markerSentinel = 0x0100
	// maxPDUsPerFrame bounds how many PDUs a single frame element
	// tracks marker claims for; it is a compile-time limit on fan-out
	// per Ethernet frame, not on total concurrent frames.
	maxPDUsPerFrame = 32
)

// Package defaults. A non-zero Config.MaxSendRetries replaces
// defaultMaxSendRetries.
const (
	DefaultTimeoutPdu    = 30 * time.Millisecond
	defaultMaxSendRetries = 3
)

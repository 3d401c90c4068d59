// Package group implements the group state machine and Distributed
// Clocks engine (components G and H): INIT/PRE-OP/SAFE-OP/OP
// transitions across a SubDeviceGroup, the cyclic tx_rx family used to
// drive the process data image, and DC propagation-delay/clock-drift
// alignment and SYNC0/SYNC1 scheduling.
package group

import (
	"time"

	"github.com/soypat/ethercat"
)

// State is an EtherCAT AL (application layer) state.
type State uint8

const (
	StateInit State = iota + 1
	StateBoot
	StatePreOp
	StateSafeOp
	StateOp
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateBoot:
		return "BOOT"
	case StatePreOp:
		return "PRE-OP"
	case StateSafeOp:
		return "SAFE-OP"
	case StateOp:
		return "OP"
	default:
		return "State(?)"
	}
}

// alErrorBit is the AL-status register's error-indication bit (bit 4),
// set alongside ALStatusCode when a SubDevice refuses a requested
// state change.
const alErrorBit = 0x10

// Timeouts configures the time-bounded operations this package
// performs; the zero value uses the package defaults (spec §5).
type Timeouts struct {
	StateTransition time.Duration
	Pdu             time.Duration
	WaitLoopDelay   time.Duration
}

func (t Timeouts) stateTransition() time.Duration {
	if t.StateTransition > 0 {
		return t.StateTransition
	}
	return 5 * time.Second
}

func (t Timeouts) waitLoopDelay() time.Duration {
	if t.WaitLoopDelay > 0 {
		return t.WaitLoopDelay
	}
	return 0
}

// pdu returns the per-PDU round-trip timeout (spec §5): the bound
// placed on a single Receive while waiting on one SubDevice's reply.
func (t Timeouts) pdu() time.Duration {
	if t.Pdu > 0 {
		return t.Pdu
	}
	return ethercat.DefaultTimeoutPdu
}

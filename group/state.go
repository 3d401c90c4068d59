package group

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/soypat/ethercat"
	"github.com/soypat/ethercat/pdu"
)

// OpRequestStatus is the result of RequestIntoOp: the write succeeded
// but, since request_into_op does not itself poll, the caller must run
// the PDI cycle and observe every entry settle on StateOp.
type OpRequestStatus struct {
	// States holds one AL-status reading per device, in Devices() order,
	// taken at the moment the OP request was issued.
	States []State
}

// AllOp reports whether every recorded state is StateOp.
func (s OpRequestStatus) AllOp() bool {
	for _, st := range s.States {
		if st != StateOp {
			return false
		}
	}
	return len(s.States) > 0
}

// RequestState writes target to every device's AL-control register,
// then polls each device's AL-status register until it reports target
// or its error bit is set (spec §4.6). It does not drive the PDI cycle
// itself; callers transitioning through SAFE-OP must run TxRx
// concurrently per the invariant in §4.6.
func (g *Group) RequestState(ctx context.Context, target State) error {
	if err := g.writeALControl(ctx, target); err != nil {
		return err
	}
	return g.pollState(ctx, target)
}

// RequestIntoOp writes the OP state to every device without polling,
// returning immediately so the caller can drive the PDI cycle while
// devices settle (spec §4.6 "requesting OP without wait").
func (g *Group) RequestIntoOp(ctx context.Context) (OpRequestStatus, error) {
	if err := g.writeALControl(ctx, StateOp); err != nil {
		return OpRequestStatus{}, err
	}
	states := make([]State, len(g.devices))
	for i, d := range g.devices {
		st, _, err := g.readALStatus(ctx, d.ConfiguredAddress)
		if err != nil {
			return OpRequestStatus{}, err
		}
		states[i] = st
	}
	return OpRequestStatus{States: states}, nil
}

func (g *Group) writeALControl(ctx context.Context, target State) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], uint16(target))
	for _, d := range g.devices {
		h, err := g.md.SendReceive(pdu.Fpwr(d.ConfiguredAddress, uint16(ethercat.RegALControl)), buf[:])
		if err != nil {
			return err
		}
		pduCtx, cancel := context.WithTimeout(ctx, g.timeouts.pdu())
		_, _, err = h.Receive(pduCtx, nil)
		cancel()
		if err != nil {
			return err
		}
	}
	return nil
}

// pollState blocks until every device reports target or the
// group's state-transition timeout elapses.
func (g *Group) pollState(ctx context.Context, target State) error {
	deadline := time.Now().Add(g.timeouts.stateTransition())
	delay := g.timeouts.waitLoopDelay()
	for {
		allTarget := true
		for _, d := range g.devices {
			st, errBit, err := g.readALStatus(ctx, d.ConfiguredAddress)
			if err != nil {
				return err
			}
			if errBit {
				code, err := g.readALStatusCode(ctx, d.ConfiguredAddress)
				if err != nil {
					return err
				}
				return &ethercat.AlStatusError{ConfiguredAddr: d.ConfiguredAddress, Code: code}
			}
			if st != target {
				allTarget = false
			}
		}
		if allTarget {
			g.setState(target)
			return nil
		}
		if time.Now().After(deadline) {
			return &ethercat.TimeoutError{Kind: ethercat.TimeoutStateTransition}
		}
		if delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// readALStatus returns the device's reported State and whether the
// AL-status error-indication bit is set.
func (g *Group) readALStatus(ctx context.Context, configuredAddr uint16) (State, bool, error) {
	h, err := g.md.SendReceive(pdu.Fprd(configuredAddr, uint16(ethercat.RegALStatus)), make([]byte, 2))
	if err != nil {
		return 0, false, err
	}
	var buf [2]byte
	pduCtx, cancel := context.WithTimeout(ctx, g.timeouts.pdu())
	_, _, err = h.Receive(pduCtx, buf[:])
	cancel()
	if err != nil {
		return 0, false, err
	}
	raw := binary.LittleEndian.Uint16(buf[:])
	return State(raw &^ alErrorBit), raw&alErrorBit != 0, nil
}

func (g *Group) readALStatusCode(ctx context.Context, configuredAddr uint16) (ethercat.ALStatusCode, error) {
	h, err := g.md.SendReceive(pdu.Fprd(configuredAddr, uint16(ethercat.RegALStatusCode)), make([]byte, 2))
	if err != nil {
		return 0, err
	}
	var buf [2]byte
	pduCtx, cancel := context.WithTimeout(ctx, g.timeouts.pdu())
	_, _, err = h.Receive(pduCtx, buf[:])
	cancel()
	if err != nil {
		return 0, err
	}
	return ethercat.ALStatusCode(binary.LittleEndian.Uint16(buf[:])), nil
}

// IntoPreOpPDI moves the group from INIT to PRE-OP: each device's
// mailbox SyncManagers must already be configured (spec §4.6 permits
// SDO/mailbox access starting here).
func (g *Group) IntoPreOpPDI(ctx context.Context) error {
	return g.RequestState(ctx, StatePreOp)
}

// IntoSafeOp moves the group from PRE-OP to SAFE-OP. The caller must
// be cycling TxRx concurrently once this call returns, since outputs
// are masked but SyncManager watchdogs still require regular traffic
// (spec §4.6 invariant).
func (g *Group) IntoSafeOp(ctx context.Context) error {
	return g.RequestState(ctx, StateSafeOp)
}

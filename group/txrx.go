package group

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/soypat/ethercat"
	"github.com/soypat/ethercat/pdu"
)

// CycleInfo is returned by TxRxDC: the application should sleep
// NextCycleWait before its next send so that transmission lands
// sync0Shift nanoseconds after the next SYNC0 tick (spec §4.7 "cycle
// scheduling").
type CycleInfo struct {
	NextCycleWait time.Duration
	WorkingCounter uint16
}

// TxRx performs one logical read-write exchange of the group's PDI: it
// sends the current contents of Outputs() and overwrites the whole
// buffer with the response, so Inputs() reflects the just-completed
// cycle. It returns the working counter obtained; callers compare it
// against ExpectedWorkingCounter themselves, since a partial match (for
// example one SubDevice dropped off the bus) is diagnostic information
// the caller may want to act on rather than a hard failure.
func (g *Group) TxRx(ctx context.Context) (uint16, error) {
	h, err := g.md.SendReceive(pdu.Lrw(g.startAddress), g.pdiBuf)
	if err != nil {
		return 0, err
	}
	pduCtx, cancel := context.WithTimeout(ctx, g.timeouts.pdu())
	_, wkc, err := h.Receive(pduCtx, g.pdiBuf)
	cancel()
	if err != nil {
		if wcErr, ok := err.(*ethercat.WorkingCounterError); ok {
			wcErr.Expected = g.expectedWKC
			wcErr.Context = "group tx_rx"
		}
		return wkc, err
	}
	return wkc, nil
}

// TxRxSyncSystemTime performs the same logical exchange as TxRx, and in
// the same frame (more-follows chained) distributes the DC reference
// system time to every device via FRMW: the first device in the group
// is treated as the DC reference, its value is read into the PDU, and
// every subsequent device on the auto-increment chain writes that value
// into its own register, matching spec §4.7's static-alignment traffic pattern.
func (g *Group) TxRxSyncSystemTime(ctx context.Context) (wkc uint16, refTime uint32, err error) {
	cf, err := g.md.NewFrame()
	if err != nil {
		return 0, 0, err
	}
	pdiH, err := cf.PushPdu(pdu.Lrw(g.startAddress), g.pdiBuf, true)
	if err != nil {
		cf.Abandon()
		return 0, 0, err
	}
	dcH, err := cf.PushPdu(pdu.Frmw(0, uint16(ethercat.RegDCSystemTime)), make([]byte, 4), false)
	if err != nil {
		cf.Abandon()
		return 0, 0, err
	}
	if err := cf.MarkSendable(); err != nil {
		return 0, 0, err
	}

	pdiCtx, pdiCancel := context.WithTimeout(ctx, g.timeouts.pdu())
	_, pdiWkc, pdiErr := pdiH.Receive(pdiCtx, g.pdiBuf)
	pdiCancel()
	var timeBuf [4]byte
	dcCtx, dcCancel := context.WithTimeout(ctx, g.timeouts.pdu())
	_, dcWkc, dcErr := dcH.Receive(dcCtx, timeBuf[:])
	dcCancel()
	if pdiErr != nil {
		return pdiWkc, 0, pdiErr
	}
	if dcErr != nil {
		return pdiWkc, 0, dcErr
	}
	return pdiWkc + dcWkc, binary.LittleEndian.Uint32(timeBuf[:]), nil
}

// TxRxDCNow is TxRxDC using the group's configured clock reader
// (supplied to InitSingleGroup/InitGroups) in place of an explicit
// timestamp. It panics if no clock reader was supplied.
func (g *Group) TxRxDCNow(ctx context.Context) (CycleInfo, error) {
	return g.TxRxDC(ctx, g.nowFn())
}

// TxRxDC performs the cyclic OP-phase exchange once DC is configured:
// the same logical PDI read-write as TxRx, paired with the next-cycle
// wait computed from the group's DC configuration so the caller can
// sleep until just after the next SYNC0 tick (spec §4.7).
func (g *Group) TxRxDC(ctx context.Context, now uint64) (CycleInfo, error) {
	wkc, err := g.TxRx(ctx)
	if err != nil {
		return CycleInfo{}, err
	}
	return CycleInfo{
		NextCycleWait:  g.dc.nextCycleWait(now),
		WorkingCounter: wkc,
	}, nil
}

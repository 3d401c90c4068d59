package pdi

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/soypat/ethercat"
	"github.com/soypat/ethercat/internal"
	"github.com/soypat/ethercat/subdevice"
)

// ConfigureMailbox programs a SubDevice's mailbox SyncManagers (SM0
// out, SM1 in) from its discovered Mailbox configuration, the step
// spec §4.6 requires before a group can move a device out of INIT.
// Devices with no mailbox (HasMailbox false) are left untouched.
func (b Builder) ConfigureMailbox(ctx context.Context, d *subdevice.SubDevice) error {
	if !d.Mailbox.HasMailbox() {
		return nil
	}
	outBuf := make([]byte, SyncManagerConfigLength)
	out := NewSyncManagerConfig(outBuf)
	out.SetPhysicalStart(d.Mailbox.OutStart)
	out.SetLength(d.Mailbox.OutLength)
	out.SetControl(OperationModeMailbox, DirectionOutput)
	out.SetEnable(true)
	outReg := ethercat.RegSyncManager0 + ethercat.RegisterAddr(smSlotMailboxOut*SyncManagerConfigLength)
	if err := b.fpwr(ctx, d.ConfiguredAddress, outReg, outBuf); err != nil {
		return err
	}

	inBuf := make([]byte, SyncManagerConfigLength)
	in := NewSyncManagerConfig(inBuf)
	in.SetPhysicalStart(d.Mailbox.InStart)
	in.SetLength(d.Mailbox.InLength)
	in.SetControl(OperationModeMailbox, DirectionInput)
	in.SetEnable(true)
	inReg := ethercat.RegSyncManager0 + ethercat.RegisterAddr(smSlotMailboxIn*SyncManagerConfigLength)
	return b.fpwr(ctx, d.ConfiguredAddress, inReg, inBuf)
}

// MailboxQueue serializes outgoing mailbox telegrams bound for a single
// SubDevice. The physical mailbox SyncManager holds exactly one
// telegram at a time; a SubDevice with several SDO/mailbox writes
// submitted concurrently needs them written one at a time, in
// submission order, rather than racing onto the same SM0 buffer (spec
// §9's open question on mailbox transaction ordering: "implementers
// should serialize mailbox transactions per SubDevice until a
// disambiguated design is chosen"). Each queued telegram is
// length-prefixed so the ring buffer can hold several back to back.
type MailboxQueue struct {
	mu   sync.Mutex
	ring internal.Ring
}

// NewMailboxQueue allocates a queue whose ring buffer holds up to size
// bytes of pending, length-prefixed telegrams.
func NewMailboxQueue(size int) *MailboxQueue {
	return &MailboxQueue{ring: internal.Ring{Buf: make([]byte, size)}}
}

// Enqueue appends telegram to the send queue in FIFO order. It returns
// an error if the queue has no room for it; callers should back off
// and retry once SendMailbox has drained earlier entries.
func (q *MailboxQueue) Enqueue(telegram []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(telegram)))
	if q.ring.Free() < len(lenBuf)+len(telegram) {
		return &ethercat.CapacityError{Item: "mailbox queue"}
	}
	if _, err := q.ring.Write(lenBuf[:]); err != nil {
		return err
	}
	if len(telegram) == 0 {
		return nil
	}
	_, err := q.ring.Write(telegram)
	return err
}

// Pending reports whether a telegram is waiting to be sent.
func (q *MailboxQueue) Pending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ring.Buffered() > 0
}

// next pops the oldest queued telegram. ok is false if the queue is empty.
func (q *MailboxQueue) next() (telegram []byte, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ring.Buffered() < 2 {
		return nil, false
	}
	var lenBuf [2]byte
	if _, err := q.ring.Read(lenBuf[:]); err != nil {
		return nil, false
	}
	n := binary.LittleEndian.Uint16(lenBuf[:])
	if n == 0 {
		return nil, true
	}
	telegram = make([]byte, n)
	if _, err := q.ring.Read(telegram); err != nil {
		return nil, false
	}
	return telegram, true
}

// SendMailbox drains at most one telegram from q and writes it to d's
// mailbox-out SyncManager buffer, returning sent=false if q had nothing
// queued. Callers own the serialization point: a single goroutine per
// SubDevice calling SendMailbox in a loop is what makes the ordering
// guarantee above hold, since this method itself performs no blocking
// wait for the previous telegram's echo/response (spec's mailbox echo
// and response timeouts bound that separately, at the call site that
// awaits them).
func (b Builder) SendMailbox(ctx context.Context, d *subdevice.SubDevice, q *MailboxQueue) (sent bool, err error) {
	if !d.Mailbox.HasMailbox() {
		return false, &ethercat.ValidationError{Reason: "subdevice has no mailbox"}
	}
	telegram, ok := q.next()
	if !ok {
		return false, nil
	}
	if len(telegram) > int(d.Mailbox.OutLength) {
		return false, &ethercat.CapacityError{Item: "mailbox telegram"}
	}
	buf := make([]byte, d.Mailbox.OutLength)
	copy(buf, telegram)
	if err := b.fpwr(ctx, d.ConfiguredAddress, ethercat.RegisterAddr(d.Mailbox.OutStart), buf); err != nil {
		return false, err
	}
	return true, nil
}

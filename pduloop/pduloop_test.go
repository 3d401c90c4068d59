package pduloop

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/soypat/ethercat/ethernet"
	"github.com/soypat/ethercat/pdu"
)

func newTestStorage(t *testing.T, numFrames, bufSize int) (*MainDevice, *PduTx, *PduRx) {
	t.Helper()
	s := NewStorage(Config{
		NumFrames:       numFrames,
		FrameBufferSize: bufSize,
		LocalMAC:        [6]byte{0x02, 0, 0, 0, 0, 0x01},
	})
	return s.Split()
}

type syntheticReply struct {
	payload []byte
	wkc     uint16
}

// injectReply builds the bytes a synthetic remote device would send
// back for sent: a copy with the payload and working counter of every
// PDU index present in byIndex overwritten, and the Ethernet source
// address changed so ReceiveFrame does not treat it as our own
// transmission looping back.
func injectReply(t *testing.T, sent []byte, byIndex map[uint8]syntheticReply) []byte {
	t.Helper()
	buf := append([]byte(nil), sent...)
	ethFrame, err := ethernet.NewFrame(buf)
	if err != nil {
		t.Fatalf("injectReply: %v", err)
	}
	*ethFrame.SourceHardwareAddr() = [6]byte{0x02, 0, 0, 0, 0, 0xAA}

	off := ethernetHeaderLen + pdu.HeaderLength
	for {
		h, err := pdu.NewPduHeader(buf[off:])
		if err != nil {
			t.Fatalf("injectReply: malformed test frame: %v", err)
		}
		dataStart := off + pdu.PduHeaderLength
		dataEnd := dataStart + int(h.Flags().Length())
		wkcEnd := dataEnd + pdu.WorkingCounterLength
		if r, ok := byIndex[h.Index()]; ok {
			copy(buf[dataStart:dataEnd], r.payload)
			binary.LittleEndian.PutUint16(buf[dataEnd:wkcEnd], r.wkc)
		}
		more := h.Flags().MoreFollows()
		off = wkcEnd
		if !more {
			break
		}
	}
	return buf
}

// indexOf extracts the PDU index a handle was issued, for use keying
// the injectReply map; tests need this since PushPdu does not return
// the marker index directly.
func indexOf(t *testing.T, sentBuf []byte, pduOrdinal int) uint8 {
	t.Helper()
	off := ethernetHeaderLen + pdu.HeaderLength
	for i := 0; ; i++ {
		h, err := pdu.NewPduHeader(sentBuf[off:])
		if err != nil {
			t.Fatalf("indexOf: %v", err)
		}
		if i == pduOrdinal {
			return h.Index()
		}
		dataEnd := off + pdu.PduHeaderLength + int(h.Flags().Length())
		off = dataEnd + pdu.WorkingCounterLength
	}
}

// Scenario 1 (spec §8): Single FPRD round trip resolves to the
// synthetic response bytes and working counter.
func TestSingleFPRDRoundTrip(t *testing.T) {
	md, tx, rx := newTestStorage(t, 4, 256)

	h, err := md.SendReceive(pdu.Fprd(0x1001, 0x0130), make([]byte, 2))
	if err != nil {
		t.Fatalf("SendReceive: %v", err)
	}

	sf, ok := tx.NextSendableFrame()
	if !ok {
		t.Fatal("expected a sendable frame")
	}
	var sent []byte
	err = sf.Send(func(b []byte) (int, error) {
		sent = append([]byte(nil), b...)
		return len(b), nil
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	idx := indexOf(t, sent, 0)
	reply := injectReply(t, sent, map[uint8]syntheticReply{
		idx: {payload: []byte{0x08, 0x00}, wkc: 1},
	})
	if err := rx.ReceiveFrame(reply); err != nil {
		t.Fatalf("ReceiveFrame: %v", err)
	}

	var dst [2]byte
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	n, wkc, err := h.Receive(ctx, dst[:])
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if wkc != 1 {
		t.Errorf("wkc = %d, want 1", wkc)
	}
	if n != 2 || dst != [2]byte{0x08, 0x00} {
		t.Errorf("dst = %v, want [8 0]", dst[:n])
	}
	if got := binary.LittleEndian.Uint16(dst[:]); got != 0x0008 {
		t.Errorf("decoded value = %#x, want 0x0008", got)
	}
}

// Scenario 2 (spec §8): packing NOP then BRD into one frame sets
// more_follows=1 on the first PDU and 0 on the second, and the
// EtherCAT header length equals the sum of both PDU wire sizes.
func TestMultiPDUAggregation(t *testing.T) {
	md, _, _ := newTestStorage(t, 2, 256)

	cf, err := md.NewFrame()
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	if _, err := cf.PushPdu(pdu.Nop(), nil, true); err != nil {
		t.Fatalf("PushPdu nop: %v", err)
	}
	if _, err := cf.PushPdu(pdu.Brd(0x0000), make([]byte, 2), false); err != nil {
		t.Fatalf("PushPdu brd: %v", err)
	}
	if err := cf.MarkSendable(); err != nil {
		t.Fatalf("MarkSendable: %v", err)
	}

	buf := cf.el.buf[:ethernetHeaderLen+pdu.HeaderLength+cf.el.payloadLen]
	ecatHdr, err := pdu.NewHeader(buf[ethernetHeaderLen:])
	if err != nil {
		t.Fatalf("NewHeader: %v", err)
	}

	off := ethernetHeaderLen + pdu.HeaderLength
	h0, err := pdu.NewPduHeader(buf[off:])
	if err != nil {
		t.Fatalf("NewPduHeader(0): %v", err)
	}
	if !h0.Flags().MoreFollows() {
		t.Error("first PDU must have more_follows=1")
	}
	seg0 := pdu.PduHeaderLength + int(h0.Flags().Length()) + pdu.WorkingCounterLength

	h1, err := pdu.NewPduHeader(buf[off+seg0:])
	if err != nil {
		t.Fatalf("NewPduHeader(1): %v", err)
	}
	if h1.Flags().MoreFollows() {
		t.Error("second (last) PDU must have more_follows=0")
	}
	seg1 := pdu.PduHeaderLength + int(h1.Flags().Length()) + pdu.WorkingCounterLength

	if want := uint16(seg0 + seg1); ecatHdr.Length() != want {
		t.Errorf("header length = %d, want sum of segments %d", ecatHdr.Length(), want)
	}
}

// Invariant 3 (spec §8): after mark_sendable, the header length field
// equals the sum of every pushed PDU's wire size, for a single PDU too.
func TestMarkSendableHeaderLength(t *testing.T) {
	md, _, _ := newTestStorage(t, 1, 256)
	cf, err := md.NewFrame()
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	if _, err := cf.PushPdu(pdu.Fprd(1, 2), make([]byte, 4), false); err != nil {
		t.Fatalf("PushPdu: %v", err)
	}
	if err := cf.MarkSendable(); err != nil {
		t.Fatalf("MarkSendable: %v", err)
	}
	ecatHdr, _ := pdu.NewHeader(cf.el.buf[ethernetHeaderLen:])
	want := uint16(pdu.PduHeaderLength + 4 + pdu.WorkingCounterLength)
	if ecatHdr.Length() != want {
		t.Errorf("header length = %d, want %d", ecatHdr.Length(), want)
	}
}

// Boundary behavior (spec §8): allocating a frame when every frame is
// busy fails with errSwapState after exactly 2*N probes, not before
// and not by blocking.
func TestSwapStateAfterFullScan(t *testing.T) {
	const n = 3
	md, _, _ := newTestStorage(t, n, 128)

	var held []CreatedFrame
	for i := 0; i < n; i++ {
		cf, err := md.NewFrame()
		if err != nil {
			t.Fatalf("NewFrame(%d): %v", i, err)
		}
		held = append(held, cf)
	}

	_, err := md.NewFrame()
	if !errors.Is(err, errSwapState) {
		t.Fatalf("NewFrame with all frames busy: err = %v, want errSwapState", err)
	}

	// Freeing one frame makes allocation succeed again, confirming the
	// failure above was really "no free frame", not permanent exhaustion.
	held[0].Abandon()
	if _, err := md.NewFrame(); err != nil {
		t.Fatalf("NewFrame after Abandon: %v", err)
	}
}

// Boundary behavior (spec §8): packing a PDU that would exceed the
// remaining buffer capacity fails with TooLong and leaves the frame
// otherwise usable for a PDU that does fit.
func TestPushPduTooLong(t *testing.T) {
	md, _, _ := newTestStorage(t, 1, ethernetHeaderLen+pdu.HeaderLength+pdu.PduHeaderLength+4+pdu.WorkingCounterLength)
	cf, err := md.NewFrame()
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}

	_, err = cf.PushPdu(pdu.Fprd(1, 2), make([]byte, 64), false)
	if !errors.Is(err, errTooLong) {
		t.Fatalf("PushPdu oversized: err = %v, want errTooLong", err)
	}

	// The frame is still usable: a PDU that fits the remaining capacity
	// succeeds.
	if _, err := cf.PushPdu(pdu.Fprd(1, 2), make([]byte, 4), false); err != nil {
		t.Fatalf("PushPdu that fits: %v", err)
	}
}

// Boundary behavior (spec §8): a response whose PDU index points at
// the sentinel (unused) marker is discarded with NoWaker.
func TestReceiveFrameSentinelMarkerIsNoWaker(t *testing.T) {
	md, tx, rx := newTestStorage(t, 2, 256)

	_, err := md.SendReceive(pdu.Fprd(1, 2), make([]byte, 2))
	if err != nil {
		t.Fatalf("SendReceive: %v", err)
	}
	sf, ok := tx.NextSendableFrame()
	if !ok {
		t.Fatal("expected sendable frame")
	}
	var sent []byte
	if err := sf.Send(func(b []byte) (int, error) {
		sent = append([]byte(nil), b...)
		return len(b), nil
	}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	// Release the marker as if its response had already been consumed,
	// so the index in the frame we are about to replay now points at
	// the sentinel.
	idx := indexOf(t, sent, 0)
	rx.storage.markers.release(idx)

	reply := injectReply(t, sent, map[uint8]syntheticReply{idx: {payload: []byte{1, 2}, wkc: 1}})
	err = rx.ReceiveFrame(reply)
	if !errors.Is(err, errNoWaker) {
		t.Fatalf("ReceiveFrame with sentinel marker: err = %v, want errNoWaker", err)
	}

	// A buffer too short to even be an Ethernet frame is a silent,
	// routine drop (nil), not conflated with NoWaker or PacketDrop.
	if err := rx.ReceiveFrame(reply[:8]); err != nil {
		t.Errorf("short-of-ethernet-header frame: got %v, want nil", err)
	}
}

// Invariant 4 (spec §8): receive_frame is a no-op when the source MAC
// equals the MainDevice's own MAC or the EtherType is not EtherCAT.
func TestReceiveFrameFiltersOwnMACAndEtherType(t *testing.T) {
	_, tx, rx := newTestStorage(t, 1, 128)
	_ = tx

	buf := make([]byte, ethernetHeaderLen+pdu.HeaderLength)
	ethFrame, err := ethernet.NewFrame(buf)
	if err != nil {
		t.Fatalf("ethernet.NewFrame: %v", err)
	}
	*ethFrame.SourceHardwareAddr() = rx.storage.localMAC
	ethFrame.SetEtherType(ethernet.TypeEtherCAT)
	if err := rx.ReceiveFrame(buf); err != nil {
		t.Errorf("own-MAC frame: got %v, want nil (silent drop)", err)
	}

	*ethFrame.SourceHardwareAddr() = [6]byte{0x02, 0, 0, 0, 0, 0xAA}
	ethFrame.SetEtherType(0x0800) // not EtherCAT
	if err := rx.ReceiveFrame(buf); err != nil {
		t.Errorf("foreign EtherType frame: got %v, want nil (silent drop)", err)
	}
}

// Scenario 6 (spec §8): dropping a push_pdu future (via context
// cancellation) before it resolves returns the frame to None without
// disturbing an adjacent frame's in-flight PDU.
func TestCancellationReclaimsFrame(t *testing.T) {
	md, tx, _ := newTestStorage(t, 2, 256)

	cancelMe, err := md.SendReceive(pdu.Fprd(1, 2), make([]byte, 2))
	if err != nil {
		t.Fatalf("SendReceive(cancelMe): %v", err)
	}
	keepAlive, err := md.SendReceive(pdu.Fprd(3, 4), make([]byte, 2))
	if err != nil {
		t.Fatalf("SendReceive(keepAlive): %v", err)
	}

	for i := 0; i < 2; i++ {
		sf, ok := tx.NextSendableFrame()
		if !ok {
			t.Fatalf("NextSendableFrame(%d): expected a frame", i)
		}
		if err := sf.Send(func(b []byte) (int, error) { return len(b), nil }); err != nil {
			t.Fatalf("Send(%d): %v", i, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = cancelMe.Receive(ctx, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Receive after cancel: err = %v, want context.Canceled", err)
	}

	if st := cancelMe.el.loadState(); st != StateNone {
		t.Errorf("canceled frame state = %v, want None", st)
	}
	if st := keepAlive.el.loadState(); st != StateSent {
		t.Errorf("adjacent frame state = %v, want Sent (undisturbed)", st)
	}
}

// spec §4.2: a partial write (n != len(buf), err == nil) is treated
// the same as a send failure: the frame reverts Sendable->Sending->
// Sendable rather than being marked Sent, and a subsequent full write
// succeeds normally.
func TestSendPartialWriteReverts(t *testing.T) {
	md, tx, _ := newTestStorage(t, 1, 256)

	_, err := md.SendReceive(pdu.Fprd(1, 2), make([]byte, 2))
	if err != nil {
		t.Fatalf("SendReceive: %v", err)
	}
	sf, ok := tx.NextSendableFrame()
	if !ok {
		t.Fatal("expected sendable frame")
	}

	full := len(sf.Bytes())
	err = sf.Send(func(b []byte) (int, error) {
		return full - 1, nil // short write, no error
	})
	if !errors.Is(err, errShortWrite) {
		t.Fatalf("partial write: err = %v, want errShortWrite", err)
	}
	if st := sf.el.loadState(); st != StateSendable {
		t.Fatalf("frame state after partial write = %v, want Sendable (reverted for retry)", st)
	}

	sf2, ok := tx.NextSendableFrame()
	if !ok {
		t.Fatal("expected the reverted frame to be sendable again")
	}
	if err := sf2.Send(func(b []byte) (int, error) { return len(b), nil }); err != nil {
		t.Fatalf("retry Send: %v", err)
	}
	if st := sf2.el.loadState(); st != StateSent {
		t.Errorf("frame state after full write = %v, want Sent", st)
	}
}

// spec §4.2/§7: a partial write is retried up to MaxSendRetries times
// before the frame is abandoned back to None and the error surfaces
// to the caller.
func TestSendPartialWriteAbandonsAfterMaxRetries(t *testing.T) {
	s := NewStorage(Config{NumFrames: 1, FrameBufferSize: 256, MaxSendRetries: 2})
	md, tx, _ := s.Split()

	_, err := md.SendReceive(pdu.Fprd(1, 2), make([]byte, 2))
	if err != nil {
		t.Fatalf("SendReceive: %v", err)
	}

	var lastErr error
	for i := 0; i < 3; i++ {
		sf, ok := tx.NextSendableFrame()
		if !ok {
			break
		}
		full := len(sf.Bytes())
		lastErr = sf.Send(func(b []byte) (int, error) { return full - 1, nil })
	}
	if !errors.Is(lastErr, errShortWrite) {
		t.Fatalf("final attempt: err = %v, want errShortWrite", lastErr)
	}
	if _, ok := tx.NextSendableFrame(); ok {
		t.Error("expected frame to be abandoned (None), not sendable again")
	}
}

// Invariant 1/2 (spec §8): a completed round trip releases every
// marker it claimed and returns the frame to None once the last
// handle referencing it has been consumed.
func TestRoundTripReleasesMarkerAndFrame(t *testing.T) {
	md, tx, rx := newTestStorage(t, 2, 256)

	h, err := md.SendReceive(pdu.Fprd(1, 2), make([]byte, 2))
	if err != nil {
		t.Fatalf("SendReceive: %v", err)
	}
	sf, ok := tx.NextSendableFrame()
	if !ok {
		t.Fatal("expected sendable frame")
	}
	var sent []byte
	if err := sf.Send(func(b []byte) (int, error) {
		sent = append([]byte(nil), b...)
		return len(b), nil
	}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	idx := indexOf(t, sent, 0)
	if _, ok := rx.storage.markers.frameIndex(idx); !ok {
		t.Fatal("marker should be reserved before the reply is processed")
	}

	reply := injectReply(t, sent, map[uint8]syntheticReply{idx: {payload: []byte{1, 2}, wkc: 1}})
	if err := rx.ReceiveFrame(reply); err != nil {
		t.Fatalf("ReceiveFrame: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, _, err := h.Receive(ctx, make([]byte, 2)); err != nil {
		t.Fatalf("Receive: %v", err)
	}

	if _, ok := rx.storage.markers.frameIndex(idx); ok {
		t.Error("marker should be released once its response has been read")
	}
	if st := sf.el.loadState(); st != StateNone {
		t.Errorf("frame state after last handle consumed = %v, want None", st)
	}
}

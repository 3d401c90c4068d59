package pdu

import (
	"encoding/binary"
	"testing"
)

// buildPdu appends a PDU segment (header, payload, working counter) to
// buf and returns the extended slice.
func buildPdu(buf []byte, cmd Command, index uint8, payload []byte, wkc uint16, moreFollows bool) []byte {
	start := len(buf)
	buf = append(buf, make([]byte, PduHeaderLength)...)
	h, _ := NewPduHeader(buf[start:])
	h.SetCommand(cmd.Code())
	h.SetIndex(index)
	h.SetCommandRaw(cmd.CommandRaw())
	h.SetFlags(NewFlags(uint16(len(payload)), false, moreFollows))
	buf = append(buf, payload...)
	var wkcBuf [2]byte
	binary.LittleEndian.PutUint16(wkcBuf[:], wkc)
	buf = append(buf, wkcBuf[:]...)
	return buf
}

func TestFrameWalkSinglePDU(t *testing.T) {
	buf := make([]byte, HeaderLength)
	buf = buildPdu(buf, Fprd(0x1001, 0x0130), 0x01, []byte{0x08, 0x00}, 1, false)
	hdr, _ := NewHeader(buf)
	hdr.SetLength(uint16(len(buf) - HeaderLength))

	f, err := NewFrame(buf)
	if err != nil {
		t.Fatal(err)
	}

	var visited int
	err = f.Walk(func(h PduHeader, payload []byte, wkc uint16) bool {
		visited++
		if h.Command() != CodeFPRD {
			t.Errorf("command: got %v want FPRD", h.Command())
		}
		if len(payload) != 2 || payload[0] != 0x08 {
			t.Errorf("payload mismatch: %v", payload)
		}
		if wkc != 1 {
			t.Errorf("wkc: got %d want 1", wkc)
		}
		return true
	})
	if err != nil {
		t.Fatal(err)
	}
	if visited != 1 {
		t.Fatalf("visited %d PDUs, want 1", visited)
	}
}

// Mirrors spec scenario 2: two PDUs (Nop, Brd) packed into one frame;
// the first PDU's more_follows must be set, the second's cleared.
func TestFrameWalkMultiPDU(t *testing.T) {
	buf := make([]byte, HeaderLength)
	buf = buildPdu(buf, Nop(), 0x00, nil, 0, true)
	buf = buildPdu(buf, Brd(0x0000), 0x01, []byte{0x00, 0x00}, 3, false)
	hdr, _ := NewHeader(buf)
	hdr.SetLength(uint16(len(buf) - HeaderLength))

	f, err := NewFrame(buf)
	if err != nil {
		t.Fatal(err)
	}

	var codes []Code
	var moreFollowsFlags []bool
	err = f.Walk(func(h PduHeader, payload []byte, wkc uint16) bool {
		codes = append(codes, h.Command())
		moreFollowsFlags = append(moreFollowsFlags, h.Flags().MoreFollows())
		return true
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(codes) != 2 || codes[0] != CodeNOP || codes[1] != CodeBRD {
		t.Fatalf("codes: got %v", codes)
	}
	if !moreFollowsFlags[0] || moreFollowsFlags[1] {
		t.Fatalf("more_follows flags: got %v, want [true false]", moreFollowsFlags)
	}
	wantLen := uint16(PduHeaderLength*2 + 0 + 2 + WorkingCounterLength*2)
	if f.Header().Length() != wantLen {
		t.Fatalf("header length: got %d want %d", f.Header().Length(), wantLen)
	}
}

func TestFrameWalkTruncated(t *testing.T) {
	buf := make([]byte, HeaderLength)
	buf = buildPdu(buf, Fprd(0, 0), 0, []byte{1, 2, 3, 4}, 1, false)
	hdr, _ := NewHeader(buf)
	hdr.SetLength(uint16(len(buf) - HeaderLength))

	truncated := buf[:len(buf)-3]
	f, err := NewFrame(truncated)
	if err != nil {
		t.Fatal(err)
	}
	err = f.Walk(func(PduHeader, []byte, uint16) bool { return true })
	if err == nil {
		t.Fatal("expected truncation error")
	}
}

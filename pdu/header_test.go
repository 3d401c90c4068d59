package pdu

import (
	"math/rand"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	var buf [HeaderLength]byte
	h, err := NewHeader(buf[:])
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		wantLength := uint16(rng.Intn(MaxPayloadLength + 1))
		h.SetLength(wantLength)
		h.SetType(TypePDU)
		if got := h.Length(); got != wantLength {
			t.Errorf("Length: got %d want %d", got, wantLength)
		}
		if got := h.Type(); got != TypePDU {
			t.Errorf("Type: got %d want %d", got, TypePDU)
		}
	}
}

func TestFlagsBits(t *testing.T) {
	tests := []struct {
		length      uint16
		circulated  bool
		moreFollows bool
	}{
		{length: 16, circulated: false, moreFollows: false},
		{length: 0, circulated: true, moreFollows: false},
		{length: 2047, circulated: false, moreFollows: true},
		{length: 1, circulated: true, moreFollows: true},
	}
	for _, tc := range tests {
		f := NewFlags(tc.length, tc.circulated, tc.moreFollows)
		if got := f.Length(); got != tc.length {
			t.Errorf("Length: got %d want %d", got, tc.length)
		}
		if got := f.Circulated(); got != tc.circulated {
			t.Errorf("Circulated: got %v want %v", got, tc.circulated)
		}
		if got := f.MoreFollows(); got != tc.moreFollows {
			t.Errorf("MoreFollows: got %v want %v", got, tc.moreFollows)
		}
	}
}

func TestFlagsWithMoreFollows(t *testing.T) {
	f := NewFlags(16, false, false)
	f2 := f.WithMoreFollows(true)
	if !f2.MoreFollows() {
		t.Fatal("expected more-follows set")
	}
	if f2.Length() != 16 {
		t.Fatalf("length mutated: got %d", f2.Length())
	}
	f3 := f2.WithMoreFollows(false)
	if f3.MoreFollows() {
		t.Fatal("expected more-follows cleared")
	}
}

func TestPduHeaderRoundTrip(t *testing.T) {
	var buf [PduHeaderLength]byte
	h, err := NewPduHeader(buf[:])
	if err != nil {
		t.Fatal(err)
	}
	h.SetCommand(CodeFPRD)
	h.SetIndex(0x12)
	h.SetCommandRaw(Fprd(0x1001, 0x0130).CommandRaw())
	h.SetFlags(NewFlags(16, false, false))
	h.SetIRQ(0)

	if h.Command() != CodeFPRD {
		t.Errorf("Command: got %v", h.Command())
	}
	if h.Index() != 0x12 {
		t.Errorf("Index: got %#x", h.Index())
	}
	cmd := ParseCommandRaw(h.Command(), h.CommandRaw())
	if cmd.StationAddress() != 0x1001 || cmd.Register() != 0x0130 {
		t.Errorf("decoded command mismatch: %+v", cmd)
	}
	if h.Flags().Length() != 16 {
		t.Errorf("Flags.Length: got %d", h.Flags().Length())
	}
}

// From original_source/src/pdu_loop/pdu_header.rs's decode test: a
// captured FPRD of register 0x0900 reading 16 bytes, index 0x12.
func TestPduHeaderDecodeKnownBytes(t *testing.T) {
	buf := []byte{
		0x04, 0x12, 0x00, 0x10, 0x00, 0x09, 0x10, 0x00, 0x00, 0x00,
		0x0a, 0xc9, 0x83, 0xcc, 0x9c, 0xcd, 0x83, 0xcc, 0x00, 0x00,
		0x00, 0x00, 0x56, 0x65, 0x72, 0x6c, 0x01, 0x00,
	}
	h, err := NewPduHeader(buf)
	if err != nil {
		t.Fatal(err)
	}
	if h.Command() != CodeFPRD {
		t.Fatalf("Command: got %v want FPRD", h.Command())
	}
	if h.Index() != 0x12 {
		t.Fatalf("Index: got %#x want 0x12", h.Index())
	}
	cmd := ParseCommandRaw(h.Command(), h.CommandRaw())
	if cmd.StationAddress() != 0x1000 || cmd.Register() != 0x0900 {
		t.Fatalf("decoded command mismatch: %+v", cmd)
	}
	flags := h.Flags()
	if flags.Length() != 16 || flags.Circulated() || flags.MoreFollows() {
		t.Fatalf("flags mismatch: %+v", flags)
	}
	if h.IRQ() != 0 {
		t.Fatalf("IRQ: got %d want 0", h.IRQ())
	}
}

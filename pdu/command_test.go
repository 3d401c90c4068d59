package pdu

import "testing"

func TestCommandConstructorsCode(t *testing.T) {
	tests := []struct {
		cmd  Command
		code Code
	}{
		{Nop(), CodeNOP},
		{Aprd(1, 2), CodeAPRD},
		{Apwr(1, 2), CodeAPWR},
		{Fprd(0x1001, 0x0130), CodeFPRD},
		{Fpwr(0x1001, 0x0130), CodeFPWR},
		{Brd(0x0000), CodeBRD},
		{Bwr(0x0000), CodeBWR},
		{Frmw(0, 0x0910), CodeFRMW},
		{Lrd(0x1000), CodeLRD},
		{Lwr(0x1000), CodeLWR},
		{Lrw(0x1000), CodeLRW},
	}
	for _, tc := range tests {
		if got := tc.cmd.Code(); got != tc.code {
			t.Errorf("%v: Code=%v want %v", tc.cmd, got, tc.code)
		}
	}
}

func TestCommandIsLogical(t *testing.T) {
	logical := []Command{Lrd(1), Lwr(1), Lrw(1)}
	for _, c := range logical {
		if !c.Code().IsLogical() {
			t.Errorf("%v: expected IsLogical", c.Code())
		}
	}
	addressed := []Command{Nop(), Aprd(0, 0), Fprd(0, 0), Brd(0), Bwr(0), Apwr(0, 0), Fpwr(0, 0), Frmw(0, 0)}
	for _, c := range addressed {
		if c.Code().IsLogical() {
			t.Errorf("%v: expected !IsLogical", c.Code())
		}
	}
}

func TestCommandRawRoundTrip(t *testing.T) {
	addressed := Fpwr(0x2002, 0x0800)
	raw := addressed.CommandRaw()
	got := ParseCommandRaw(CodeFPWR, raw)
	if got.StationAddress() != 0x2002 || got.Register() != 0x0800 {
		t.Fatalf("addressed round trip mismatch: %+v", got)
	}

	logical := Lrw(0xdeadbeef)
	raw = logical.CommandRaw()
	got = ParseCommandRaw(CodeLRW, raw)
	if got.LogicalAddress() != 0xdeadbeef {
		t.Fatalf("logical round trip mismatch: got %#x", got.LogicalAddress())
	}
}

func TestCodeIsReadIsWrite(t *testing.T) {
	if !CodeFRMW.IsRead() || !CodeFRMW.IsWrite() {
		t.Error("FRMW should be both read and write")
	}
	if !CodeLRW.IsRead() || !CodeLRW.IsWrite() {
		t.Error("LRW should be both read and write")
	}
	if CodeNOP.IsRead() || CodeNOP.IsWrite() {
		t.Error("NOP should be neither read nor write")
	}
	if !CodeBRD.IsRead() || CodeBRD.IsWrite() {
		t.Error("BRD should be read-only")
	}
	if CodeBWR.IsRead() || !CodeBWR.IsWrite() {
		t.Error("BWR should be write-only")
	}
}

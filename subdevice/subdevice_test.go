package subdevice

import "testing"

func TestRangeEnd(t *testing.T) {
	r := Range{Offset: 4, Length: 6}
	if got := r.End(); got != 10 {
		t.Errorf("End()=%d want 10", got)
	}
}

func TestSubDeviceHasInputsOutputs(t *testing.T) {
	var sd SubDevice
	if sd.HasInputs() || sd.HasOutputs() {
		t.Error("zero-value SubDevice must report no inputs/outputs")
	}
	sd.Inputs = Range{Offset: 0, Length: 2}
	if !sd.HasInputs() {
		t.Error("expected HasInputs after setting a nonzero Inputs range")
	}
	if sd.HasOutputs() {
		t.Error("did not expect HasOutputs")
	}
}

func TestMailboxHasMailbox(t *testing.T) {
	if (Mailbox{}).HasMailbox() {
		t.Error("zero-value Mailbox must report HasMailbox=false")
	}
	if !(Mailbox{OutLength: 128}).HasMailbox() {
		t.Error("nonzero OutLength must report HasMailbox=true")
	}
	if !(Mailbox{InLength: 128}).HasMailbox() {
		t.Error("nonzero InLength must report HasMailbox=true")
	}
}

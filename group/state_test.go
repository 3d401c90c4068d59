package group

import "testing"

func TestOpRequestStatusAllOp(t *testing.T) {
	if (OpRequestStatus{}).AllOp() {
		t.Error("empty OpRequestStatus must not report AllOp")
	}
	allOp := OpRequestStatus{States: []State{StateOp, StateOp, StateOp}}
	if !allOp.AllOp() {
		t.Error("expected AllOp for all-StateOp slice")
	}
	mixed := OpRequestStatus{States: []State{StateOp, StateSafeOp}}
	if mixed.AllOp() {
		t.Error("did not expect AllOp for mixed-state slice")
	}
}

package subdevice

import "testing"

// buildLineTopology wires three devices in a straight line: each has an
// entry port and exactly one downstream port open, so assignTopology
// links device i to device i-1's single free downstream port.
func buildLineTopology(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(4)
	for i := 0; i < 3; i++ {
		sd := SubDevice{Index: uint16(i), ConfiguredAddress: uint16(0x1000 + i)}
		sd.Ports = NewPorts(true, true, false, false) // Passthrough: ports 0, 3
		sd.Ports.SetReceiveTimes(100, uint32(200+i*50), 0, 0)
		sd.Topology = sd.Ports.Topology()
		r.devices = append(r.devices, sd)
	}
	return r
}

func TestAssignTopologyLinksLineOfDevices(t *testing.T) {
	r := buildLineTopology(t)
	if err := r.assignTopology(); err != nil {
		t.Fatalf("assignTopology: %v", err)
	}
	if r.devices[0].ParentIndex != NoDownstream {
		t.Errorf("device 0 ParentIndex = %d, want NoDownstream", r.devices[0].ParentIndex)
	}
	if r.devices[1].ParentIndex != 0 {
		t.Errorf("device 1 ParentIndex = %d, want 0", r.devices[1].ParentIndex)
	}
	if r.devices[2].ParentIndex != 1 {
		t.Errorf("device 2 ParentIndex = %d, want 1", r.devices[2].ParentIndex)
	}
	if len(r.devices[0].Children) != 1 || r.devices[0].Children[0] != 1 {
		t.Errorf("device 0 Children = %v, want [1]", r.devices[0].Children)
	}
}

func TestAssignTopologyFailsWhenNoPortFree(t *testing.T) {
	r := NewRegistry(2)
	// Two LineEnd devices: the first has no free downstream port to
	// offer the second.
	first := SubDevice{Index: 0}
	first.Ports = NewPorts(true, false, false, false)
	second := SubDevice{Index: 1}
	second.Ports = NewPorts(true, false, false, false)
	r.devices = append(r.devices, first, second)

	if err := r.assignTopology(); err == nil {
		t.Fatal("expected an error when no upstream port is free")
	}
}

func TestComputeDelaysFoldsPropagationDownTheChain(t *testing.T) {
	r := buildLineTopology(t)
	if err := r.assignTopology(); err != nil {
		t.Fatalf("assignTopology: %v", err)
	}
	r.computeDelays()

	if r.devices[0].PropagationDelay != 0 {
		t.Errorf("root PropagationDelay = %d, want 0", r.devices[0].PropagationDelay)
	}
	if r.devices[1].PropagationDelay == 0 {
		t.Error("device 1 PropagationDelay should be nonzero once linked behind device 0")
	}
	// Each device downstream should accumulate at least as much delay as
	// its parent.
	if r.devices[2].PropagationDelay < r.devices[1].PropagationDelay {
		t.Errorf("device 2 PropagationDelay (%d) should be >= device 1's (%d)",
			r.devices[2].PropagationDelay, r.devices[1].PropagationDelay)
	}
}

func TestRegistryLenAndAt(t *testing.T) {
	r := buildLineTopology(t)
	if r.Len() != 3 {
		t.Fatalf("Len()=%d want 3", r.Len())
	}
	if r.At(1).ConfiguredAddress != 0x1001 {
		t.Errorf("At(1).ConfiguredAddress = %#x, want 0x1001", r.At(1).ConfiguredAddress)
	}
	if len(r.All()) != 3 {
		t.Errorf("All() length = %d, want 3", len(r.All()))
	}
}

package subdevice

// Range is a byte offset/length pair locating a SubDevice's segment
// within its group's logical process-data image.
type Range struct {
	Offset int
	Length int
}

// End returns Offset+Length.
func (r Range) End() int { return r.Offset + r.Length }

// Identity holds the four EEPROM/SII identity words every EtherCAT
// SubDevice reports, used to match a discovered device against a
// caller's expected device list.
type Identity struct {
	VendorID       uint32
	ProductCode    uint32
	RevisionNumber uint32
	SerialNumber   uint32
}

// SyncManagerDirection is the data direction a SyncManager is
// configured for.
type SyncManagerDirection uint8

const (
	SyncManagerUnused SyncManagerDirection = iota
	SyncManagerMailboxOut
	SyncManagerMailboxIn
	SyncManagerProcessDataOut // master -> device (outputs)
	SyncManagerProcessDataIn  // device -> master (inputs)
)

// Mailbox holds a SubDevice's mailbox SyncManager configuration (SM0
// out, SM1 in), populated from the SII general-area words 0x0018-0x001C
// (see EEPROM.ReadMailboxConfig). Zero-value means the device has no mailbox.
type Mailbox struct {
	OutStart, OutLength uint16
	InStart, InLength   uint16
	ProtocolsSupported  uint16 // bitmask: AoE/EoE/CoE/FoE/SoE/VoE per ETG.1000.6
}

// HasMailbox reports whether this SubDevice's EEPROM advertised a
// mailbox configuration.
func (m Mailbox) HasMailbox() bool { return m.OutLength > 0 || m.InLength > 0 }

// SubDevice is one discovered node on the bus: its identity, physical
// port topology, position in the directed downstream tree, computed
// propagation delay, and (once a group's PDI builder has run) its
// input/output byte ranges within that group's logical image.
//
// SubDevice is created once during Registry.Discover and never
// destroyed short of a full bus re-init (spec §3); callers obtain
// short-lived references into a Registry or group rather than owning
// copies they mutate independently.
type SubDevice struct {
	// Index is this device's position in discovery order: 0 for the
	// first device seen after the MainDevice, and so on.
	Index uint16
	// ConfiguredAddress is FirstConfiguredStationAddress + Index,
	// written to the device during discovery.
	ConfiguredAddress uint16
	Identity          Identity
	Ports             Ports
	Topology          Topology
	// ParentIndex is the registry index of the upstream SubDevice, or
	// NoDownstream if this device is directly off the MainDevice.
	ParentIndex uint16
	// Children lists, in port-assignment order, the registry indices
	// of every SubDevice hanging off one of this device's ports.
	Children []uint16
	// PropagationDelay is the cumulative cable + device processing
	// delay, in nanoseconds, from the DC reference device to this
	// one's entry port (spec §4.4, §4.7).
	PropagationDelay uint32

	Mailbox Mailbox
	// Inputs/Outputs are this device's segment within its group's PDI,
	// set by package pdi's builder once FMMUs are programmed.
	Inputs, Outputs Range
}

// HasInputs reports whether this device has an input (device->master)
// segment mapped into its group's PDI.
func (s *SubDevice) HasInputs() bool { return s.Inputs.Length > 0 }

// HasOutputs reports whether this device has an output (master->device)
// segment mapped into its group's PDI.
func (s *SubDevice) HasOutputs() bool { return s.Outputs.Length > 0 }

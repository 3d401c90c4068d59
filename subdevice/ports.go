// Package subdevice implements the SubDevice registry: discovery and
// configured-address assignment over the bus, the four-port topology
// model used to classify each device (LineEnd/Passthrough/Fork/Cross),
// assignment of the directed downstream tree, and propagation-delay
// computation from captured Distributed Clocks receive times.
//
// It knows nothing about the PDU wire format beyond the register
// addresses it reads and writes through a *pduloop.MainDevice; the
// process-data-image layout that consumes a Registry's topology lives
// in package pdi.
package subdevice

// Topology classifies a SubDevice by how many of its four ports are
// open (active), per spec §4.4.
type Topology uint8

const (
	// LineEnd: exactly one open port, the tail of a chain.
	LineEnd Topology = iota + 1
	// Passthrough: two open ports, a device with only upstream and downstream neighbors.
	Passthrough
	// Fork: three open ports, branching into a side chain.
	Fork
	// Cross: all four ports open.
	Cross
)

func (t Topology) String() string {
	switch t {
	case LineEnd:
		return "LineEnd"
	case Passthrough:
		return "Passthrough"
	case Fork:
		return "Fork"
	case Cross:
		return "Cross"
	default:
		return "Topology(?)"
	}
}

// IsJunction reports whether t branches into more than one downstream
// path (Fork or Cross).
func (t Topology) IsJunction() bool { return t == Fork || t == Cross }

// NoDownstream is the DownstreamTo sentinel meaning "nothing assigned
// to this port yet".
const NoDownstream = ^uint16(0)

// Port is one of a SubDevice's four physical EtherCAT ports.
type Port struct {
	Active        bool
	DCReceiveTime uint32
	// Number is the EtherCAT port number. Wire/array order is always
	// 0, 3, 1, 2 regardless of Number's own value.
	Number uint8
	// DownstreamTo is the registry index of the SubDevice connected on
	// this port, or NoDownstream if nothing is linked (yet, or ever,
	// for a closed port).
	DownstreamTo uint16
}

// portIndex maps an EtherCAT port number to its slot in the wire-order
// Ports array (0->0, 3->1, 1->2, 2->3).
func portIndex(number uint8) int {
	switch number {
	case 0:
		return 0
	case 3:
		return 1
	case 1:
		return 2
	case 2:
		return 3
	default:
		panic("subdevice: invalid port number")
	}
}

// Ports holds a SubDevice's four ports in wire order (0, 3, 1, 2).
type Ports [4]Port

// NewPorts builds a Ports value from the active-flag bits read off the
// DL-status register, in wire order.
func NewPorts(active0, active3, active1, active2 bool) Ports {
	return Ports{
		{Active: active0, Number: 0, DownstreamTo: NoDownstream},
		{Active: active3, Number: 3, DownstreamTo: NoDownstream},
		{Active: active1, Number: 1, DownstreamTo: NoDownstream},
		{Active: active2, Number: 2, DownstreamTo: NoDownstream},
	}
}

// SetReceiveTimes stamps each port's DC receive time, given in wire
// order (port 0, 3, 1, 2).
func (p *Ports) SetReceiveTimes(t0, t3, t1, t2 uint32) {
	p[0].DCReceiveTime = t0
	p[1].DCReceiveTime = t3
	p[2].DCReceiveTime = t1
	p[3].DCReceiveTime = t2
}

// OpenCount returns the number of active ports.
func (p Ports) OpenCount() int {
	n := 0
	for _, port := range p {
		if port.Active {
			n++
		}
	}
	return n
}

// Topology classifies this port set by its open-port count (§4.4).
func (p Ports) Topology() Topology {
	switch p.OpenCount() {
	case 1:
		return LineEnd
	case 2:
		return Passthrough
	case 3:
		return Fork
	case 4:
		return Cross
	default:
		panic("subdevice: no active ports")
	}
}

// EntryPort returns the active port with the smallest DC receive time:
// the first port EtherCAT traffic reaches on this device.
func (p Ports) EntryPort() (Port, bool) {
	var best Port
	found := false
	for _, port := range p {
		if !port.Active {
			continue
		}
		if !found || port.DCReceiveTime < best.DCReceiveTime {
			best = port
			found = true
		}
	}
	return best, found
}

// LastPort returns the last active port in wire order.
func (p Ports) LastPort() (Port, bool) {
	var last Port
	found := false
	for _, port := range p {
		if port.Active {
			last = port
			found = true
		}
	}
	return last, found
}

// nextAssignablePort finds the next active, unassigned port after
// thisPort's slot, cycling through the wire-order array.
func (p *Ports) nextAssignablePort(thisPort Port) (*Port, bool) {
	start := portIndex(thisPort.Number)
	for i := 1; i < 4; i++ {
		idx := (start + i) % 4
		port := &p[idx]
		if port.Active && port.DownstreamTo == NoDownstream {
			return port, true
		}
	}
	return nil, false
}

// AssignNextDownstreamPort links childIndex to the next free active
// port following this device's entry port, implementing the
// directed-tree construction of spec §4.4. Returns the EtherCAT port
// number assigned, or ok=false if every active port is already spoken
// for.
func (p *Ports) AssignNextDownstreamPort(childIndex uint16) (portNumber uint8, ok bool) {
	entry, found := p.EntryPort()
	if !found {
		return 0, false
	}
	next, ok := p.nextAssignablePort(entry)
	if !ok {
		return 0, false
	}
	next.DownstreamTo = childIndex
	return next.Number, true
}

// TotalPropagationTime returns the time, in nanoseconds, for a packet
// to traverse all of this device's active ports: the spread between
// the largest and smallest DC receive time among them. ok is false if
// fewer than two ports are active or the spread is zero.
func (p Ports) TotalPropagationTime() (ns uint32, ok bool) {
	var min, max uint32
	first := true
	for _, port := range p {
		if !port.Active {
			continue
		}
		if first {
			min, max = port.DCReceiveTime, port.DCReceiveTime
			first = false
			continue
		}
		if port.DCReceiveTime < min {
			min = port.DCReceiveTime
		}
		if port.DCReceiveTime > max {
			max = port.DCReceiveTime
		}
	}
	if first || max-min == 0 {
		return 0, false
	}
	return max - min, true
}

// IntermediatePropagationTime sums the receive-time deltas between
// consecutive active port pairs strictly before upTo's wire-order
// slot: the propagation contribution of a junction's already-visited
// children, per spec §4.4's fold over junction subtrees.
func (p Ports) IntermediatePropagationTime(upTo Port) uint32 {
	target := portIndex(upTo.Number)
	var sum uint32
	for i := 0; i+1 < len(p); i++ {
		if i >= target {
			break
		}
		a, b := p[i], p[i+1]
		if a.Active && b.Active && b.DCReceiveTime > a.DCReceiveTime {
			sum += b.DCReceiveTime - a.DCReceiveTime
		}
	}
	return sum
}

// PropagationTimeTo returns the propagation delay from this device's
// entry port up to (and including) upTo, among active ports in that
// wire-order range.
func (p Ports) PropagationTimeTo(upTo Port) (ns uint32, ok bool) {
	entry, found := p.EntryPort()
	if !found {
		return 0, false
	}
	entryIdx, targetIdx := portIndex(entry.Number), portIndex(upTo.Number)
	var min, max uint32
	first := true
	for _, port := range p {
		idx := portIndex(port.Number)
		if !port.Active || idx < entryIdx || idx > targetIdx {
			continue
		}
		if first {
			min, max = port.DCReceiveTime, port.DCReceiveTime
			first = false
			continue
		}
		if port.DCReceiveTime < min {
			min = port.DCReceiveTime
		}
		if port.DCReceiveTime > max {
			max = port.DCReceiveTime
		}
	}
	if first {
		return 0, false
	}
	return max - min, true
}

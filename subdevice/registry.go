package subdevice

import (
	"context"
	"encoding/binary"

	"github.com/soypat/ethercat"
	"github.com/soypat/ethercat/pdu"
	"github.com/soypat/ethercat/pduloop"
)

// Registry holds every SubDevice discovered on a bus: their identity,
// topology and propagation delay, populated once by Discover and never
// rebuilt except across a full bus re-init (spec §3).
type Registry struct {
	devices []SubDevice
}

// NewRegistry returns an empty Registry with room for up to capacity
// SubDevices. Exceeding capacity during Discover fails with
// CapacityError rather than growing, matching the compile-time
// MAX_SUBDEVICES budget of spec §7.
func NewRegistry(capacity int) *Registry {
	return &Registry{devices: make([]SubDevice, 0, capacity)}
}

// Len returns the number of discovered SubDevices.
func (r *Registry) Len() int { return len(r.devices) }

// At returns a pointer to the SubDevice at registry index idx. The
// returned pointer is a borrow valid only while the Registry is not
// mutated further (spec §3's "short-lived borrow" ownership note).
func (r *Registry) At(idx uint16) *SubDevice { return &r.devices[idx] }

// All returns every discovered SubDevice in discovery order.
func (r *Registry) All() []SubDevice { return r.devices }

// Discover walks the bus: a broadcast read establishes the device
// count via its working counter, each device is assigned a configured
// station address by sequential auto-increment write, and per-device
// port/DC-receive-time reads build the directed topology tree and
// propagation delays (spec §4.4). It returns the number of SubDevices
// found.
func (r *Registry) Discover(ctx context.Context, md *pduloop.MainDevice) (int, error) {
	h, err := md.SendReceive(pdu.Brd(uint16(ethercat.RegType)), make([]byte, 2))
	if err != nil {
		return 0, err
	}
	_, wkc, err := h.Receive(ctx, make([]byte, 2))
	if err != nil {
		return 0, err
	}
	count := int(wkc)
	if count > cap(r.devices) {
		return 0, &ethercat.CapacityError{Item: "subdevice"}
	}

	r.devices = r.devices[:0]
	for i := 0; i < count; i++ {
		addr := ethercat.FirstConfiguredStationAddress + uint16(i)
		var payload [2]byte
		binary.LittleEndian.PutUint16(payload[:], addr)
		// Auto-increment addressing counts down from the MainDevice as
		// a telegram passes through each already-configured device; this
		// implementation keeps the simplification of addressing device i
		// by auto-increment counter i, matching a bus where each device
		// is configured and moved past before the next APWR is issued.
		aw, err := md.SendReceive(pdu.Apwr(uint16(i), uint16(ethercat.RegConfiguredAddr)), payload[:])
		if err != nil {
			return 0, err
		}
		if _, wkc, err := aw.Receive(ctx, nil); err != nil {
			return 0, err
		} else if wkc != 1 {
			return 0, &ethercat.WorkingCounterError{Expected: 1, Received: wkc, Context: "subdevice address assignment"}
		}
		r.devices = append(r.devices, SubDevice{Index: uint16(i), ConfiguredAddress: addr})
	}

	for i := range r.devices {
		if err := r.readPorts(ctx, md, &r.devices[i]); err != nil {
			return 0, err
		}
	}
	if err := r.assignTopology(); err != nil {
		return 0, err
	}
	r.computeDelays()
	return count, nil
}

func (r *Registry) readPorts(ctx context.Context, md *pduloop.MainDevice, sd *SubDevice) error {
	dh, err := md.SendReceive(pdu.Fprd(sd.ConfiguredAddress, uint16(ethercat.RegDLStatus)), make([]byte, 2))
	if err != nil {
		return err
	}
	var statusBuf [2]byte
	if _, _, err := dh.Receive(ctx, statusBuf[:]); err != nil {
		return err
	}
	status := binary.LittleEndian.Uint16(statusBuf[:]) & ethercat.DLStatusPortActiveMask
	sd.Ports = NewPorts(status&0x1 != 0, status&0x2 != 0, status&0x4 != 0, status&0x8 != 0)

	times := [4]uint32{}
	regs := [4]ethercat.RegisterAddr{
		ethercat.RegPortRecvTime0, ethercat.RegPortRecvTime3,
		ethercat.RegPortRecvTime1, ethercat.RegPortRecvTime2,
	}
	for i, reg := range regs {
		th, err := md.SendReceive(pdu.Fprd(sd.ConfiguredAddress, uint16(reg)), make([]byte, 4))
		if err != nil {
			return err
		}
		var buf [4]byte
		if _, _, err := th.Receive(ctx, buf[:]); err != nil {
			return err
		}
		times[i] = binary.LittleEndian.Uint32(buf[:])
	}
	sd.Ports.SetReceiveTimes(times[0], times[1], times[2], times[3])
	sd.Topology = sd.Ports.Topology()
	return nil
}

// assignTopology links each discovered device (after the first) to the
// nearest preceding device with a free downstream port, building the
// directed tree rooted at the MainDevice (spec §4.4).
func (r *Registry) assignTopology() error {
	if len(r.devices) == 0 {
		return nil
	}
	r.devices[0].ParentIndex = NoDownstream
	for i := 1; i < len(r.devices); i++ {
		child := &r.devices[i]
		assigned := false
		for j := i - 1; j >= 0; j-- {
			parent := &r.devices[j]
			if _, ok := parent.Ports.AssignNextDownstreamPort(child.Index); ok {
				child.ParentIndex = parent.Index
				parent.Children = append(parent.Children, child.Index)
				assigned = true
				break
			}
		}
		if !assigned {
			return &ethercat.ValidationError{Reason: "subdevice: no upstream port free to link device"}
		}
	}
	return nil
}

// computeDelays folds port receive-time deltas down the topology tree
// from the DC reference device (registry index 0) to every other
// device, per spec §4.4: a junction's contribution to each child's
// cumulative delay is the propagation time from its entry port to the
// port feeding that child.
func (r *Registry) computeDelays() {
	if len(r.devices) == 0 {
		return
	}
	var walk func(idx uint16, cumulative uint32)
	walk = func(idx uint16, cumulative uint32) {
		sd := &r.devices[idx]
		sd.PropagationDelay = cumulative
		for _, childIdx := range sd.Children {
			var feedPort Port
			for _, p := range sd.Ports {
				if p.DownstreamTo == childIdx {
					feedPort = p
					break
				}
			}
			delta, _ := sd.Ports.PropagationTimeTo(feedPort)
			walk(childIdx, cumulative+delta)
		}
	}
	walk(0, 0)
}

// WriteDelays writes each SubDevice's computed PropagationDelay to its
// DC system-time-offset register, the final step of static DC
// alignment's topology phase before the EMA-based settle loop in
// package group begins (spec §4.7).
func (r *Registry) WriteDelays(ctx context.Context, md *pduloop.MainDevice) error {
	for i := range r.devices {
		sd := &r.devices[i]
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], sd.PropagationDelay)
		h, err := md.SendReceive(pdu.Fpwr(sd.ConfiguredAddress, uint16(ethercat.RegDCSystemTimeDelay)), buf[:])
		if err != nil {
			return err
		}
		if _, _, err := h.Receive(ctx, nil); err != nil {
			return err
		}
	}
	return nil
}

// DiscoverIdentities reads each SubDevice's SII vendor/product/revision/
// serial words over EEPROM, filling in its Identity.
func (r *Registry) DiscoverIdentities(ctx context.Context, ee EEPROM) error {
	for i := range r.devices {
		sd := &r.devices[i]
		id, err := ee.ReadIdentity(ctx, sd.ConfiguredAddress)
		if err != nil {
			return err
		}
		sd.Identity = id
	}
	return nil
}

// DiscoverMailboxes reads each SubDevice's standard mailbox
// configuration over EEPROM, filling in its Mailbox.
func (r *Registry) DiscoverMailboxes(ctx context.Context, ee EEPROM) error {
	for i := range r.devices {
		sd := &r.devices[i]
		mbx, err := ee.ReadMailboxConfig(ctx, sd.ConfiguredAddress)
		if err != nil {
			return err
		}
		sd.Mailbox = mbx
	}
	return nil
}

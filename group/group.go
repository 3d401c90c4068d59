package group

import (
	"log/slog"
	"sync/atomic"

	"github.com/soypat/ethercat/internal"
	"github.com/soypat/ethercat/pdi"
	"github.com/soypat/ethercat/pduloop"
	"github.com/soypat/ethercat/subdevice"
)

// Group is one SubDeviceGroup: an ordered subset of a bus's
// SubDevices sharing a contiguous logical process data image, moved
// through the AL state machine together (spec §3, §4.6).
//
// A Group's state is read concurrently by the cyclic TxRx path and by
// any diagnostics goroutine polling State, so it is held in an atomic
// field rather than guarded by a mutex, matching the lock-minimizing
// posture the rest of this module takes on its hot paths.
type Group struct {
	md      *pduloop.MainDevice
	devices []*subdevice.SubDevice

	pdiBuf       []byte
	startAddress uint32
	readPDILen   int
	pdiLen       int
	expectedWKC  uint16

	state atomic.Uint32 // holds a State

	dc       DCConfig
	timeouts Timeouts
	// nowFn, if set, reads the local DC clock for TxRxDCNow's benefit.
	nowFn func() uint64

	logger *slog.Logger
}

// SetLogger attaches l to the group: every AL state transition this
// group makes through RequestState/pollState is reported to it at
// INFO level. A nil logger (the zero value) disables logging.
func (g *Group) SetLogger(l *slog.Logger) { g.logger = l }

// SetTimeouts replaces the group's timeouts; zero fields of t use the
// package defaults.
func (g *Group) SetTimeouts(t Timeouts) { g.timeouts = t }

// Devices returns every SubDevice assigned to this group, in bus
// discovery order.
func (g *Group) Devices() []*subdevice.SubDevice { return g.devices }

// State returns the group's current AL state.
func (g *Group) State() State { return State(g.state.Load()) }

// setState stores the group's current AL state and reports the
// transition to the configured logger, if any.
func (g *Group) setState(s State) {
	prev := State(g.state.Swap(uint32(s)))
	if prev != s {
		internal.LogAttrs(g.logger, slog.LevelInfo, "group state transition",
			slog.String("from", prev.String()),
			slog.String("to", s.String()),
		)
	}
}

// PDI returns the group's full logical process data image: inputs
// followed by outputs. Callers read the inputs segment and write the
// outputs segment without crossing the boundary at ReadLength (spec
// §5's shared-resource policy).
func (g *Group) PDI() []byte { return g.pdiBuf }

// ReadLength returns the byte length of the inputs segment; outputs
// begin at this offset within PDI().
func (g *Group) ReadLength() int { return g.readPDILen }

// Inputs returns the inputs segment of the PDI.
func (g *Group) Inputs() []byte { return g.pdiBuf[:g.readPDILen] }

// Outputs returns the outputs segment of the PDI.
func (g *Group) Outputs() []byte { return g.pdiBuf[g.readPDILen:g.pdiLen] }

// ExpectedWorkingCounter returns the aggregate working counter a
// successful cyclic exchange of this group's PDI should produce.
func (g *Group) ExpectedWorkingCounter() uint16 { return g.expectedWKC }

// newGroup builds a Group's PDI-derived fields from a pdi.Layout.
func newGroup(md *pduloop.MainDevice, devices []*subdevice.SubDevice, layout pdi.Layout, maxPDI int, timeouts Timeouts) *Group {
	g := &Group{
		md:           md,
		devices:      devices,
		pdiBuf:       make([]byte, layout.TotalLength, maxPDI),
		startAddress: layout.StartAddress,
		readPDILen:   layout.ReadLength,
		pdiLen:       layout.TotalLength,
		expectedWKC:  layout.ExpectedWKC,
		timeouts:     timeouts,
	}
	g.setState(StateInit)
	return g
}

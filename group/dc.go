package group

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/soypat/ethercat"
	"github.com/soypat/ethercat/pdu"
)

// DCConfig holds a group's Distributed Clocks configuration: start
// delay, SYNC0 period, SYNC0 shift, and an optional SYNC1 period
// (spec §3's "DC configuration" type, §4.7). It is held by the group
// once ConfigureDCSync has run.
type DCConfig struct {
	StartDelay  time.Duration
	Sync0Period time.Duration
	Sync0Shift  time.Duration
	// Sync1Period, if nonzero, enables the SYNC1 signal alongside SYNC0.
	Sync1Period time.Duration

	configured bool
	startTime  uint64 // local DC time, ns, the reference device's start_time
}

const (
	dcSyncActiveCyclic = 1 << 0
	dcSyncActiveSync0  = 1 << 1
	dcSyncActiveSync1  = 1 << 2
)

// nextCycleWait computes the delay, from now (local DC time, ns),
// until Sync0Shift nanoseconds past the next SYNC0 tick.
func (c DCConfig) nextCycleWait(now uint64) time.Duration {
	period := c.Sync0Period
	if period <= 0 {
		return 0
	}
	elapsed := int64(now) - int64(c.startTime)
	if elapsed < 0 {
		elapsed = 0
	}
	phase := time.Duration(elapsed) % period
	wait := period - phase + c.Sync0Shift
	for wait < 0 {
		wait += period
	}
	return wait
}

// DecodeSystemTimeDifference decodes a SubDevice's DcSystemTimeDiff
// register: the sign is carried in bit 31 rather than by two's
// complement, so 0x80000064 decodes to -100 and 0x00000064 decodes to
// +100 (spec §4.7, §8 scenario 5).
func DecodeSystemTimeDifference(raw uint32) int32 {
	magnitude := int32(raw &^ (1 << 31))
	if raw&(1<<31) != 0 {
		return -magnitude
	}
	return magnitude
}

// StaticAlignment repeatedly exchanges the group's PDI and FRMW-distributed
// DC reference time, folding each device's absolute time difference
// through a per-device exponential moving average, until the maximum
// EMA across the group falls below threshold or maxIterations is
// reached without settling (spec §4.7 "static alignment"). alpha is
// the EMA smoothing factor in (0, 1]; smaller values average over more
// history.
func (g *Group) StaticAlignment(ctx context.Context, threshold time.Duration, alpha float64, maxIterations int) (settled bool, err error) {
	ema := make([]float64, len(g.devices))
	for iter := 0; iter < maxIterations; iter++ {
		if _, _, err := g.TxRxSyncSystemTime(ctx); err != nil {
			return false, err
		}
		maxEMA := 0.0
		for i, d := range g.devices {
			raw, err := g.readDCDiff(ctx, d.ConfiguredAddress)
			if err != nil {
				return false, err
			}
			diff := DecodeSystemTimeDifference(raw)
			abs := float64(diff)
			if abs < 0 {
				abs = -abs
			}
			ema[i] = alpha*abs + (1-alpha)*ema[i]
			if ema[i] > maxEMA {
				maxEMA = ema[i]
			}
		}
		if time.Duration(maxEMA) < threshold {
			return true, nil
		}
	}
	return false, nil
}

func (g *Group) readDCDiff(ctx context.Context, configuredAddr uint16) (uint32, error) {
	h, err := g.md.SendReceive(pdu.Fprd(configuredAddr, uint16(ethercat.RegDCSystemTimeDiff)), make([]byte, 4))
	if err != nil {
		return 0, err
	}
	var buf [4]byte
	pduCtx, cancel := context.WithTimeout(ctx, g.timeouts.pdu())
	_, _, err = h.Receive(pduCtx, buf[:])
	cancel()
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// ConfigureDCSync arms dynamic DC operation on the group's reference
// device (the first device in discovery order): it disables SYNC
// signals, reads the device's local DC time, computes start_time =
// local_time + cfg.StartDelay, writes DcSyncStartTime/DcSync0CycleTime
// (and DcSync1CycleTime if cfg.Sync1Period is set), then re-enables the
// sync-active register with the cyclic-operation bit and one bit per
// enabled SYNC signal (spec §4.7 "dynamic configuration").
func (g *Group) ConfigureDCSync(ctx context.Context, cfg DCConfig) error {
	if len(g.devices) == 0 {
		return ethercat.ErrUnknownSubDevice
	}
	ref := g.devices[0].ConfiguredAddress

	if err := g.fpwr(ctx, ref, ethercat.RegDCSyncActive, []byte{0, 0}); err != nil {
		return err
	}

	localTime, err := g.readDCTime(ctx, ref)
	if err != nil {
		return err
	}
	cfg.startTime = localTime + uint64(cfg.StartDelay)

	var startBuf [4]byte
	binary.LittleEndian.PutUint32(startBuf[:], uint32(cfg.startTime))
	if err := g.fpwr(ctx, ref, ethercat.RegDCSyncStartTime, startBuf[:]); err != nil {
		return err
	}

	var sync0Buf [4]byte
	binary.LittleEndian.PutUint32(sync0Buf[:], uint32(cfg.Sync0Period.Nanoseconds()))
	if err := g.fpwr(ctx, ref, ethercat.RegDCSync0CycleTime, sync0Buf[:]); err != nil {
		return err
	}

	active := uint16(dcSyncActiveCyclic | dcSyncActiveSync0)
	if cfg.Sync1Period > 0 {
		var sync1Buf [4]byte
		binary.LittleEndian.PutUint32(sync1Buf[:], uint32(cfg.Sync1Period.Nanoseconds()))
		if err := g.fpwr(ctx, ref, ethercat.RegDCSync1CycleTime, sync1Buf[:]); err != nil {
			return err
		}
		active |= dcSyncActiveSync1
	}

	var activeBuf [2]byte
	binary.LittleEndian.PutUint16(activeBuf[:], active)
	if err := g.fpwr(ctx, ref, ethercat.RegDCSyncActive, activeBuf[:]); err != nil {
		return err
	}

	cfg.configured = true
	g.dc = cfg
	return nil
}

// readDCTime reads the reference device's local DC system time. This
// implementation treats RegDCSystemTime as the 32-bit counter it reads
// elsewhere over FRMW (TxRxSyncSystemTime), rather than the full
// 64-bit register ETG.1000.4 defines, and widens it to ns since
// nothing downstream needs absolute wall-clock time, only the
// SYNC0-relative phase nextCycleWait computes from it.
func (g *Group) readDCTime(ctx context.Context, configuredAddr uint16) (uint64, error) {
	h, err := g.md.SendReceive(pdu.Fprd(configuredAddr, uint16(ethercat.RegDCSystemTime)), make([]byte, 4))
	if err != nil {
		return 0, err
	}
	var buf [4]byte
	pduCtx, cancel := context.WithTimeout(ctx, g.timeouts.pdu())
	_, _, err = h.Receive(pduCtx, buf[:])
	cancel()
	if err != nil {
		return 0, err
	}
	return uint64(binary.LittleEndian.Uint32(buf[:])), nil
}

func (g *Group) fpwr(ctx context.Context, configuredAddr uint16, reg ethercat.RegisterAddr, payload []byte) error {
	h, err := g.md.SendReceive(pdu.Fpwr(configuredAddr, uint16(reg)), payload)
	if err != nil {
		return err
	}
	pduCtx, cancel := context.WithTimeout(ctx, g.timeouts.pdu())
	_, _, err = h.Receive(pduCtx, nil)
	cancel()
	return err
}

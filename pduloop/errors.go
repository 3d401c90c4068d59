package pduloop

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/soypat/ethercat/internal"
)

var (
	errSwapState         = errors.New("pduloop: no free frame after full scan")
	errInvalidFrameState = errors.New("pduloop: invalid frame/marker state for operation")
	errTooLong           = errors.New("pduloop: PDU exceeds remaining frame capacity")
	errNoWaker           = errors.New("pduloop: response for PDU with no registered waker")
	errTooManyPDUs       = errors.New("pduloop: frame already holds maxPDUsPerFrame PDUs")
	errFramePacketDrop   = errors.New("pduloop: packet dropped")
	errShortWrite        = errors.New("pduloop: partial write, frame not fully put on the wire")
)

// PduError wraps a lower-level pduloop failure with the operation and
// frame index involved, reported through the owning PduStorage's
// logger (if one was configured) at the point it is raised. Op is one
// of "send", "receive_frame", or "receive".
type PduError struct {
	Op    string
	Frame uint8
	Err   error
}

func (e *PduError) Error() string {
	return "pduloop: " + e.Op + ": frame " + strconv.Itoa(int(e.Frame)) + ": " + e.Err.Error()
}

func (e *PduError) Unwrap() error { return e.Err }

// wrapErr builds a PduError around err and, if s has a logger
// configured, reports it at WARN level before returning.
func (s *PduStorage) wrapErr(op string, frame uint8, err error) error {
	if err == nil {
		return nil
	}
	pe := &PduError{Op: op, Frame: frame, Err: err}
	internal.LogAttrs(s.logger, slog.LevelWarn, "pdu loop error",
		slog.String("op", op),
		slog.Uint64("frame", uint64(frame)),
		slog.String("err", err.Error()),
	)
	return pe
}

package ethercat

import (
	"errors"
	"strconv"
)

// errGeneric is a small, allocation-free error enum for the handful of
// conditions common enough to want no heap allocation on the hot path.
// Richer errors (working counter mismatches, AL status codes) carry data
// and are defined as their own types below.
type errGeneric uint8

const (
	_ errGeneric = iota // non-initialized err
	// ErrBug indicates an invariant the implementation itself is supposed
	// to uphold was violated; it signals a defect in this library, not
	// misuse or a misbehaving SubDevice.
	ErrBug
	// ErrPacketDrop indicates a frame was silently ignored (wrong EtherType,
	// our own MAC looped back, etc.) per spec §4.2/§8 invariant 4.
	ErrPacketDrop
	// ErrSwapState indicates frame allocation scanned 2*N slots without
	// finding a free frame element; buffering is undersized for the load.
	ErrSwapState
	// ErrInvalidFrameState indicates a PDU marker CAS or frame typestate
	// CAS failed because the element was not in the expected state.
	ErrInvalidFrameState
	// ErrTooLong indicates a PDU would not fit in the frame's remaining
	// buffer space.
	ErrTooLong
	// ErrNoWaker indicates a response arrived for a PDU index whose marker
	// was the sentinel (unused): there was no waiting task to wake.
	ErrNoWaker
	// ErrUnknownSubDevice indicates an operation referenced a SubDevice
	// index or configured address with no matching registry entry.
	ErrUnknownSubDevice
)

func (err errGeneric) Error() string {
	switch err {
	case ErrBug:
		return "ethercat: internal invariant violated (bug)"
	case ErrPacketDrop:
		return "ethercat: packet dropped"
	case ErrSwapState:
		return "ethercat: no free frame after full scan"
	case ErrInvalidFrameState:
		return "ethercat: invalid frame/marker state for operation"
	case ErrTooLong:
		return "ethercat: PDU exceeds remaining frame capacity"
	case ErrNoWaker:
		return "ethercat: response for PDU with no registered waker"
	case ErrUnknownSubDevice:
		return "ethercat: unknown SubDevice"
	default:
		return "ethercat: uninitialized error"
	}
}

// TimeoutKind classifies which time-bounded operation expired.
type TimeoutKind uint8

const (
	TimeoutStateTransition TimeoutKind = iota
	TimeoutPdu
	TimeoutEeprom
	TimeoutMailboxEcho
	TimeoutMailboxResponse
	TimeoutWaitLoop
)

func (k TimeoutKind) String() string {
	switch k {
	case TimeoutStateTransition:
		return "state-transition"
	case TimeoutPdu:
		return "pdu"
	case TimeoutEeprom:
		return "eeprom"
	case TimeoutMailboxEcho:
		return "mailbox-echo"
	case TimeoutMailboxResponse:
		return "mailbox-response"
	case TimeoutWaitLoop:
		return "wait-loop"
	default:
		return "timeout"
	}
}

// TimeoutError reports that a time-bounded operation did not complete in
// the allotted duration.
type TimeoutError struct {
	Kind TimeoutKind
}

func (e *TimeoutError) Error() string { return "ethercat: timeout: " + e.Kind.String() }

// WorkingCounterError reports that a PDU's working counter did not match
// the number of devices expected to process it.
type WorkingCounterError struct {
	Expected uint16
	Received uint16
	Context  string
}

func (e *WorkingCounterError) Error() string {
	msg := "ethercat: working counter mismatch: expected "
	msg += strconv.Itoa(int(e.Expected)) + " got " + strconv.Itoa(int(e.Received))
	if e.Context != "" {
		msg += " (" + e.Context + ")"
	}
	return msg
}

// ALStatusCode is the value of the ALStatusCode register (RegALStatusCode)
// a SubDevice sets alongside a refused AL state transition, explaining why
// the transition was refused.
type ALStatusCode uint16

// AL status codes a SubDevice may report. Not exhaustive of the full
// EtherCAT register map, only the subset common enough to name.
const (
	ALStatusNoError                    ALStatusCode = 0x0000
	ALStatusUnspecifiedError           ALStatusCode = 0x0001
	ALStatusNoMemory                   ALStatusCode = 0x0002
	ALStatusInvalidDeviceSetup         ALStatusCode = 0x0003
	ALStatusInvalidRequestedStateChange ALStatusCode = 0x0011
	ALStatusUnknownRequestedState      ALStatusCode = 0x0012
	ALStatusBootstrapNotSupported      ALStatusCode = 0x0013
	ALStatusNoValidFirmware            ALStatusCode = 0x0014
	ALStatusInvalidMailboxConfig       ALStatusCode = 0x0016
	ALStatusInvalidSyncManagerConfig   ALStatusCode = 0x0018
	ALStatusNoValidInputs              ALStatusCode = 0x0019
	ALStatusNoValidOutputs             ALStatusCode = 0x001A
	ALStatusSyncError                  ALStatusCode = 0x001B
	ALStatusSyncManagerWatchdog        ALStatusCode = 0x001C
	ALStatusInvalidInputMapping        ALStatusCode = 0x001D
	ALStatusInvalidOutputMapping       ALStatusCode = 0x001E
	ALStatusInconsistentSettings       ALStatusCode = 0x001F
	ALStatusFreerunNotSupported        ALStatusCode = 0x0020
	ALStatusSyncNotSupported           ALStatusCode = 0x0021
	ALStatusFreerunNeeds3Buffer        ALStatusCode = 0x0022
	ALStatusBackgroundWatchdog         ALStatusCode = 0x0023
	ALStatusNoValidInputsAndOutputs    ALStatusCode = 0x0024
	ALStatusFatalSyncError             ALStatusCode = 0x0025
	ALStatusNoSyncError                ALStatusCode = 0x0026
	ALStatusInvalidDCSyncConfig        ALStatusCode = 0x0030
	ALStatusInvalidDCLatchConfig       ALStatusCode = 0x0031
	ALStatusPLLError                   ALStatusCode = 0x0032
	ALStatusDCSyncIOError              ALStatusCode = 0x0033
	ALStatusDCSyncTimeout              ALStatusCode = 0x0034
	ALStatusDCInvalidSyncCycleTime     ALStatusCode = 0x0035
	ALStatusDCSync0CycleTime           ALStatusCode = 0x0036
	ALStatusDCSync1CycleTime           ALStatusCode = 0x0037
	ALStatusMBXAOEError                ALStatusCode = 0x0041
	ALStatusEepromNoAccess             ALStatusCode = 0x0050
	ALStatusEepromError                ALStatusCode = 0x0051
)

func (c ALStatusCode) String() string {
	switch c {
	case ALStatusNoError:
		return "no error"
	case ALStatusUnspecifiedError:
		return "unspecified error"
	case ALStatusNoMemory:
		return "no memory"
	case ALStatusInvalidDeviceSetup:
		return "invalid device setup"
	case ALStatusInvalidRequestedStateChange:
		return "invalid requested state change"
	case ALStatusUnknownRequestedState:
		return "unknown requested state"
	case ALStatusBootstrapNotSupported:
		return "bootstrap not supported"
	case ALStatusNoValidFirmware:
		return "no valid firmware"
	case ALStatusInvalidMailboxConfig:
		return "invalid mailbox configuration"
	case ALStatusInvalidSyncManagerConfig:
		return "invalid sync manager configuration"
	case ALStatusNoValidInputs:
		return "no valid inputs"
	case ALStatusNoValidOutputs:
		return "no valid outputs"
	case ALStatusSyncError:
		return "synchronization error"
	case ALStatusSyncManagerWatchdog:
		return "sync manager watchdog"
	case ALStatusInvalidInputMapping:
		return "invalid input mapping"
	case ALStatusInvalidOutputMapping:
		return "invalid output mapping"
	case ALStatusInconsistentSettings:
		return "inconsistent settings"
	case ALStatusFreerunNotSupported:
		return "freerun not supported"
	case ALStatusSyncNotSupported:
		return "synchronization not supported"
	case ALStatusFreerunNeeds3Buffer:
		return "freerun needs 3-buffer mode"
	case ALStatusBackgroundWatchdog:
		return "background watchdog"
	case ALStatusNoValidInputsAndOutputs:
		return "no valid inputs and outputs"
	case ALStatusFatalSyncError:
		return "fatal sync error"
	case ALStatusNoSyncError:
		return "no sync error"
	case ALStatusInvalidDCSyncConfig:
		return "invalid DC SYNC configuration"
	case ALStatusInvalidDCLatchConfig:
		return "invalid DC latch configuration"
	case ALStatusPLLError:
		return "PLL error"
	case ALStatusDCSyncIOError:
		return "DC sync IO error"
	case ALStatusDCSyncTimeout:
		return "DC sync timeout"
	case ALStatusDCInvalidSyncCycleTime:
		return "invalid DC sync cycle time"
	case ALStatusDCSync0CycleTime:
		return "DC SYNC0 cycle time error"
	case ALStatusDCSync1CycleTime:
		return "DC SYNC1 cycle time error"
	case ALStatusMBXAOEError:
		return "mailbox AoE error"
	case ALStatusEepromNoAccess:
		return "EEPROM no access"
	case ALStatusEepromError:
		return "EEPROM error"
	default:
		return "unknown AL status code (0x" + strconv.FormatUint(uint64(c), 16) + ")"
	}
}

// AlStatusError reports that a SubDevice refused an AL (application
// layer) state change and surfaced an AL status code explaining why.
type AlStatusError struct {
	ConfiguredAddr uint16
	Code           ALStatusCode
}

func (e *AlStatusError) Error() string {
	return "ethercat: subdevice 0x" + strconv.FormatUint(uint64(e.ConfiguredAddr), 16) + " refused state change: " + e.Code.String()
}

// ValidationError reports a wire-format inconsistency: an unexpected
// command code echoed back, or a length mismatch between a PDU header
// and the buffer actually received.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "ethercat: validation: " + e.Reason }

// CapacityError reports that a fixed-capacity structure (frame storage,
// SubDevice registry, group PDI) ran out of room for Item.
type CapacityError struct {
	Item string
}

func (e *CapacityError) Error() string { return "ethercat: capacity exceeded: " + e.Item }

// PdiTooLongError reports that the computed PDI length for a group
// exceeds the compile-time maximum the group was configured with.
type PdiTooLongError struct {
	Max, Desired int
}

func (e *PdiTooLongError) Error() string {
	return "ethercat: PDI too long: max " + strconv.Itoa(e.Max) + " desired " + strconv.Itoa(e.Desired)
}

var (
	// ErrStringTooLong is returned when an identity/name string (e.g. from
	// EEPROM) exceeds its fixed-size destination.
	ErrStringTooLong = errors.New("ethercat: string too long")
	// ErrZeroPort is returned when a caller supplies a zero local port
	// where one is required.
	ErrZeroPort = errors.New("ethercat: zero port")
)

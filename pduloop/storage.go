package pduloop

import (
	"log/slog"
	"sync/atomic"

	"github.com/soypat/ethercat/ethernet"
)

// PduStorage is the fixed-capacity root owning every frame element and
// the PDU marker table. It is sized once at construction; there is no
// dynamic growth. Splitting it yields exactly one PduTx, one PduRx and
// one MainDevice, each a thin view over the same arrays.
type PduStorage struct {
	frames      []frameElement
	markers     *markers
	markerIdx   atomic.Uint32 // shared 8-bit round-robin PDU index counter
	frameRR     atomic.Uint32 // shared round-robin frame allocation counter
	localMAC    [6]byte
	maxSendRetry uint8
	logger      *slog.Logger
}

// Config configures a PduStorage.
type Config struct {
	// NumFrames is the number of concurrently in-flight Ethernet
	// frames this storage can hold.
	NumFrames int
	// FrameBufferSize is the capacity in bytes of each frame's
	// Ethernet buffer, header through last working counter.
	FrameBufferSize int
	// LocalMAC is stamped as the source address of every frame this
	// MainDevice sends, and used to recognize and drop frames it
	// emitted itself arriving back on the wire.
	LocalMAC [6]byte
	// MaxSendRetries bounds the Sendable->Sending->Sendable revert
	// path before a frame is abandoned back to None. Zero means the
	// package default (3).
	MaxSendRetries uint8
	// Logger, if set, receives a record for every send failure, every
	// received frame whose owning frame element is not awaiting a reply,
	// and every Receive that finds no response for its PDU. Received
	// frames dropped for an unknown PDU index or a malformed EtherCAT
	// payload are returned as errors without a record. nil disables
	// logging.
	Logger *slog.Logger
}

// NewStorage allocates NumFrames frame buffers of FrameBufferSize bytes
// each and returns the storage ready to Split.
func NewStorage(cfg Config) *PduStorage {
	if cfg.NumFrames <= 0 {
		panic("pduloop: NumFrames must be positive")
	}
	if cfg.FrameBufferSize < ethernetHeaderLen {
		panic("pduloop: FrameBufferSize too small for an Ethernet header")
	}
	maxRetry := cfg.MaxSendRetries
	if maxRetry == 0 {
		maxRetry = defaultMaxSendRetries
	}
	s := &PduStorage{
		frames:       make([]frameElement, cfg.NumFrames),
		markers:      newMarkers(),
		localMAC:     cfg.LocalMAC,
		maxSendRetry: maxRetry,
		logger:       cfg.Logger,
	}
	for i := range s.frames {
		s.frames[i].buf = make([]byte, cfg.FrameBufferSize)
	}
	return s
}

// Split returns the three cooperating views over this storage: the
// producer-facing MainDevice, and the TX/RX adapter-facing PduTx/PduRx.
// Call once; nothing prevents calling it again, but doing so only
// yields further aliases into the same arrays.
func (s *PduStorage) Split() (*MainDevice, *PduTx, *PduRx) {
	return &MainDevice{storage: s}, &PduTx{storage: s}, &PduRx{storage: s}
}

// nextMarkerIndex returns the next PDU index from the shared wrapping
// 8-bit counter.
func (s *PduStorage) nextMarkerIndex() uint8 {
	return uint8(s.markerIdx.Add(1))
}

// allocFrame scans up to 2*len(frames) slots for one in StateNone,
// starting from the round-robin cursor, per §4.1's allocation
// algorithm. It fails with errSwapState if none is free.
func (s *PduStorage) allocFrame() (*frameElement, error) {
	n := len(s.frames)
	start := int(s.frameRR.Add(1)) % n
	for i := 0; i < 2*n; i++ {
		idx := (start + i) % n
		f := &s.frames[idx]
		if f.claimCreated(uint8(idx)) {
			clear(f.buf)
			ethFrame, err := ethernet.NewFrame(f.buf)
			if err == nil {
				*ethFrame.DestinationHardwareAddr() = [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
				*ethFrame.SourceHardwareAddr() = s.localMAC
				ethFrame.SetEtherType(ethernet.TypeEtherCAT)
			}
			return f, nil
		}
	}
	return nil, errSwapState
}

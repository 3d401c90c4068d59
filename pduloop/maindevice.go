package pduloop

import "github.com/soypat/ethercat/pdu"

// MainDevice is the producer-facing view over a PduStorage: the entry
// point application code uses to build and queue PDUs. It shares its
// backing storage with exactly one PduTx and one PduRx, obtained
// together from PduStorage.Split.
type MainDevice struct {
	storage *PduStorage
}

// NewFrame allocates a frame in StateCreated, ready to accept PushPdu
// calls. It fails with errSwapState if no frame is free after a full
// scan of the storage (every frame is in flight).
func (md *MainDevice) NewFrame() (CreatedFrame, error) {
	el, err := md.storage.allocFrame()
	if err != nil {
		return CreatedFrame{}, err
	}
	return CreatedFrame{storage: md.storage, el: el}, nil
}

// SendReceive is the common single-PDU case: allocate a frame, push
// one command with its payload, mark it sendable, and return the
// handle the caller waits on for the response. It does not itself
// send the frame; that is the driver loop's job, via PduTx.
func (md *MainDevice) SendReceive(cmd pdu.Command, payload []byte) (PduHandle, error) {
	cf, err := md.NewFrame()
	if err != nil {
		return PduHandle{}, err
	}
	h, err := cf.PushPdu(cmd, payload, false)
	if err != nil {
		cf.Abandon()
		return PduHandle{}, err
	}
	if err := cf.MarkSendable(); err != nil {
		return PduHandle{}, err
	}
	return h, nil
}

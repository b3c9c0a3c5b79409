package wire

import (
	"github.com/pkg/errors"

	"github.com/outofforest/proton"
	"github.com/outofforest/proton/helpers"
)

// maxVarUInt64Size is the maximum number of bytes taken by encoded uint64.
const maxVarUInt64Size = 10

// EncodeFrame encodes message into a single frame.
// It is used by transports which preserve message boundaries, like WebSocket.
func EncodeFrame(m proton.Marshaller, msg any) ([]byte, error) {
	size, err := m.Size(msg)
	if err != nil {
		return nil, err
	}

	frame := make([]byte, 2*maxVarUInt64Size+size)
	var o uint64
	id, err := m.ID(msg)
	if err != nil {
		return nil, err
	}
	helpers.UInt64Marshal(id, frame, &o)
	helpers.UInt64Marshal(size, frame, &o)

	_, n, err := m.Marshal(msg, frame[o:o+size])
	if err != nil {
		return nil, err
	}

	return frame[:o+n], nil
}

// DecodeFrame decodes frame produced by EncodeFrame.
func DecodeFrame(m proton.Marshaller, frame []byte) (retMsg any, retErr error) {
	defer helpers.RecoverUnmarshal(&retErr)

	var o, id, n uint64
	helpers.UInt64Unmarshal(&id, frame, &o)
	helpers.UInt64Unmarshal(&n, frame, &o)
	if o+n != uint64(len(frame)) {
		return nil, errors.Errorf("invalid frame: %d bytes expected, %d available", o+n, len(frame))
	}

	msg, _, err := m.Unmarshal(id, frame[o:o+n])
	if err != nil {
		return nil, err
	}
	return msg, nil
}

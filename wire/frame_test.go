package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameCarriesMessageAndPayload(t *testing.T) {
	requireT := require.New(t)

	m := NewMarshaller()
	msg := &SendMessage{
		Channel: "chan1",
		Peer: Peer{
			ID:   PeerID{0x01, 0x02},
			Role: RoleWorker,
			Name: "worker-1",
			Process: ProcessMetadata{
				PID: 1234,
			},
		},
		Target:    PeerID{0x03},
		IsRequest: true,
		Request: RequestDescriptor{
			ID:      300,
			Channel: "chan1",
		},
		Payload: []byte{0x91, 0xa1, 0x78},
	}

	frame, err := EncodeFrame(m, msg)
	requireT.NoError(err)

	decoded, err := DecodeFrame(m, frame)
	requireT.NoError(err)
	requireT.Equal(msg, decoded)
}

func TestFrameWithoutPayload(t *testing.T) {
	requireT := require.New(t)

	m := NewMarshaller()
	msg := &QueryStateResponse{
		RequestID: 7,
		Channels: []ChannelState{
			{
				Channel: "a",
				Subscribers: []SubscriberState{
					{Peer: Peer{ID: PeerID{0x01}}, RefCount: 2},
				},
			},
		},
	}

	frame, err := EncodeFrame(m, msg)
	requireT.NoError(err)

	decoded, err := DecodeFrame(m, frame)
	requireT.NoError(err)
	requireT.Equal(msg, decoded)
}

func TestTruncatedFrameIsRejected(t *testing.T) {
	requireT := require.New(t)

	m := NewMarshaller()
	frame, err := EncodeFrame(m, &Shutdown{Peer: Peer{Name: "peer"}})
	requireT.NoError(err)

	_, err = DecodeFrame(m, frame[:len(frame)-2])
	requireT.Error(err)
}

func TestUnknownMessageIsRejected(t *testing.T) {
	requireT := require.New(t)

	_, err := EncodeFrame(NewMarshaller(), &Peer{})
	requireT.Error(err)
}

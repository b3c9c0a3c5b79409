package courier

import (
	"os"
	"reflect"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/outofforest/courier/wire"
)

// PeerOptions describes identity of the peer to create.
type PeerOptions struct {
	Role      wire.ProcessRole
	Name      string
	RoutingID uint64
	FrameID   uint64
}

// NewPeer mints new peer identity with random ID.
func NewPeer(options PeerOptions) (wire.Peer, error) {
	id, err := peerID()
	if err != nil {
		return wire.Peer{}, err
	}
	return wire.Peer{
		ID:   id,
		Role: options.Role,
		Name: options.Name,
		Process: wire.ProcessMetadata{
			PID:       uint64(os.Getpid()),
			RoutingID: options.RoutingID,
			FrameID:   options.FrameID,
		},
	}, nil
}

func peerID() (wire.PeerID, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return wire.PeerID{}, errors.WithStack(err)
	}
	return wire.PeerID(id), nil
}

// messageKind returns the short tag of wire message used in logs.
func messageKind(msg any) string {
	t := reflect.TypeOf(msg)
	if t == nil {
		return "<nil>"
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

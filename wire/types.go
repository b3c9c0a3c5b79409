package wire

import (
	"github.com/google/uuid"
)

type (
	// PeerID defines peer ID.
	PeerID [16]byte

	// ProcessRole tags the kind of process a peer runs in.
	ProcessRole uint64

	// LogLevel is the logging hint negotiated during handshake.
	LogLevel uint64

	// RequestID identifies request within the transport which created it.
	RequestID uint64
)

// Process roles.
const (
	RoleUndefined ProcessRole = iota
	RoleNative
	RoleWorker
	RoleUI
	RoleControl
)

// Log levels.
const (
	LogLevelNone LogLevel = iota
	LogLevelTraffic
	LogLevelArgs
)

// String returns the canonical textual form of peer ID.
func (id PeerID) String() string {
	return uuid.UUID(id).String()
}

// IsZero returns true if ID is not set.
func (id PeerID) IsZero() bool {
	return id == PeerID{}
}

func (r ProcessRole) String() string {
	switch r {
	case RoleNative:
		return "native"
	case RoleWorker:
		return "worker"
	case RoleUI:
		return "ui"
	case RoleControl:
		return "control"
	default:
		return "undefined"
	}
}

// ProcessMetadata describes the process hosting the peer.
type ProcessMetadata struct {
	PID       uint64
	RoutingID uint64
	FrameID   uint64
}

// Peer is the identity of one connected participant.
type Peer struct {
	ID      PeerID
	Role    ProcessRole
	Name    string
	Process ProcessMetadata
}

func (p Peer) String() string {
	if p.Name == "" {
		return p.Role.String() + ":" + p.ID.String()
	}
	return p.Role.String() + ":" + p.Name + ":" + p.ID.String()
}

// RequestDescriptor describes the request carried by message or response.
type RequestDescriptor struct {
	ID       RequestID
	Channel  string
	Rejected bool
}

// Handshake is exchanged between peer and broker when connecting.
type Handshake struct {
	Peer     Peer
	LogLevel LogLevel
}

// Shutdown is sent by peer before it disconnects.
type Shutdown struct {
	Peer Peer
}

// AddChannelListener subscribes peer to the channel.
type AddChannelListener struct {
	Channel string
	Peer    Peer
}

// RemoveChannelListener drops one reference of peer's subscription to the channel.
type RemoveChannelListener struct {
	Channel string
	Peer    Peer
}

// RemoveChannelAllListeners drops peer's subscription to the channel.
type RemoveChannelAllListeners struct {
	Channel string
	Peer    Peer
}

// RemoveListeners drops all the subscriptions of peer.
type RemoveListeners struct {
	Peer Peer
}

// SendMessage carries message published by peer together with its serialized arguments.
// Zero target means the message is delivered to channel subscribers.
type SendMessage struct {
	Channel   string
	Peer      Peer
	Target    PeerID
	IsRequest bool
	Request   RequestDescriptor
	Payload   []byte
}

// RequestResponse carries the settlement of request together with the serialized result.
type RequestResponse struct {
	Channel string
	Peer    Peer
	Target  PeerID
	Request RequestDescriptor
	Payload []byte
}

// QueryState asks broker for the snapshot of its subscription registry.
type QueryState struct {
	Channel   string
	Peer      Peer
	RequestID RequestID
}

// SubscriberState is the subscription of one peer to the channel.
type SubscriberState struct {
	Peer     Peer
	RefCount uint64
}

// ChannelState lists subscribers of the channel.
type ChannelState struct {
	Channel     string
	Subscribers []SubscriberState
}

// QueryStateResponse is the answer to QueryState.
type QueryStateResponse struct {
	Peer      Peer
	Target    PeerID
	RequestID RequestID
	Channels  []ChannelState
}

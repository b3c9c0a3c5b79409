package courier

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/outofforest/courier/codec"
	"github.com/outofforest/courier/wire"
)

// DefaultMaxMessageSize is used when message size limit is not configured.
const DefaultMaxMessageSize = 1024 * 1024

// BrokerConfig defines broker configuration.
type BrokerConfig struct {
	// Name is the name of broker peer.
	Name string `yaml:"name"`

	// Socket is the endpoint for socket connections. Zero value disables socket listener.
	Socket Endpoint `yaml:"socket"`

	// WebSocket is the endpoint for WebSocket connections. Zero value disables WebSocket listener.
	WebSocket Endpoint `yaml:"websocket"`

	// MaxMessageSize limits the size of single wire message. Zero means DefaultMaxMessageSize.
	MaxMessageSize uint64 `yaml:"max_message_size"`

	// LogLevel is the hint sent to peers during handshake.
	LogLevel wire.LogLevel `yaml:"log_level"`

	// Timeout limits the time spent on binding listeners. Negative means no limit.
	Timeout time.Duration `yaml:"timeout"`
}

// TransportConfig defines transport configuration.
type TransportConfig struct {
	// Kind selects connector used by transport.
	Kind ConnectorKind `yaml:"kind"`

	// Endpoint is the address of broker, required by socket and WebSocket connectors.
	Endpoint Endpoint `yaml:"endpoint"`

	// Timeout limits the handshake. Zero means DefaultTimeout, negative means no limit.
	Timeout time.Duration `yaml:"timeout"`

	// MaxMessageSize limits the size of single wire message. Zero means DefaultMaxMessageSize.
	MaxMessageSize uint64 `yaml:"max_message_size"`

	// Name is the human-readable name of transport's peer.
	Name string `yaml:"name"`

	// Role is the role of the process hosting the transport.
	Role wire.ProcessRole `yaml:"role"`

	// RoutingID and FrameID are the optional process metadata of peer.
	RoutingID uint64 `yaml:"routing_id"`
	FrameID   uint64 `yaml:"frame_id"`

	// Broker is the broker used by in-process connector.
	Broker *Broker `yaml:"-"`

	// Serializer encodes message arguments. Msgpack is used if nil.
	Serializer codec.Serializer `yaml:"-"`
}

// LoadBrokerConfig reads broker configuration from YAML document.
func LoadBrokerConfig(r io.Reader) (BrokerConfig, error) {
	var config BrokerConfig
	if err := decodeYAML(r, &config); err != nil {
		return BrokerConfig{}, err
	}
	return config, nil
}

// LoadTransportConfig reads transport configuration from YAML document.
func LoadTransportConfig(r io.Reader) (TransportConfig, error) {
	var config TransportConfig
	if err := decodeYAML(r, &config); err != nil {
		return TransportConfig{}, err
	}
	if config.Kind == "" {
		config.Kind = ConnectorSocket
	}
	return config, nil
}

func decodeYAML(r io.Reader, config any) error {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return errors.Wrap(err, "decoding config failed")
	}
	return nil
}

func (c TransportConfig) validate() error {
	switch c.Kind {
	case ConnectorSocket, ConnectorWebSocket:
		if c.Endpoint.IsZero() {
			return errors.Errorf("endpoint is required by %s connector", c.Kind)
		}
	case ConnectorInProcess:
		if c.Broker == nil {
			return errors.New("broker is required by in-process connector")
		}
	default:
		return errors.Errorf("unknown connector kind %q", c.Kind)
	}
	return nil
}

func messageSizeLimit(size uint64) uint64 {
	if size == 0 {
		return DefaultMaxMessageSize
	}
	return size
}

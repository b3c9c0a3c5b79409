package courier

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/courier/wire"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		input    string
		expected Endpoint
		address  string
		network  string
	}{
		{input: "8080", expected: Endpoint{Port: 8080}, address: ":8080", network: "tcp"},
		{input: "localhost:9000", expected: Endpoint{Host: "localhost", Port: 9000}, address: "localhost:9000", network: "tcp"},
		{
			input:    "ws://example.com:81/ipc",
			expected: Endpoint{Scheme: "ws", Host: "example.com", Port: 81, Path: "/ipc"},
			address:  "example.com:81",
			network:  "tcp",
		},
		{input: "unix:///tmp/bus.sock", expected: Endpoint{Scheme: "unix", Path: "/tmp/bus.sock"}, address: "/tmp/bus.sock", network: "unix"},
		{input: "/tmp/bus.sock", expected: Endpoint{Path: "/tmp/bus.sock"}, address: "/tmp/bus.sock", network: "unix"},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			requireT := require.New(t)

			endpoint, err := ParseEndpoint(test.input)
			requireT.NoError(err)
			requireT.Equal(test.expected, endpoint)
			requireT.Equal(test.address, endpoint.Address())
			requireT.Equal(test.network, endpoint.Network())
		})
	}
}

func TestParseEndpointErrors(t *testing.T) {
	requireT := require.New(t)

	_, err := ParseEndpoint("")
	requireT.Error(err)

	_, err = ParseEndpoint("70000")
	requireT.Error(err)

	_, err = ParseEndpoint("localhost:port")
	requireT.Error(err)
}

func TestWebSocketURL(t *testing.T) {
	requireT := require.New(t)

	requireT.Equal("ws://localhost:8080/", Endpoint{Port: 8080}.WebSocketURL())
	requireT.Equal("wss://example.com:443/ipc", Endpoint{Scheme: "wss", Host: "example.com", Port: 443, Path: "/ipc"}.WebSocketURL())
}

func TestEffectiveTimeout(t *testing.T) {
	requireT := require.New(t)

	requireT.Equal(DefaultTimeout, effectiveTimeout(0))
	requireT.Equal(time.Second, effectiveTimeout(time.Second))
	requireT.Negative(effectiveTimeout(-1))
}

func TestLoadBrokerConfig(t *testing.T) {
	requireT := require.New(t)

	config, err := LoadBrokerConfig(strings.NewReader(`
name: main
socket: localhost:7000
websocket: ws://localhost:7001/bus
max_message_size: 4096
log_level: 1
timeout: 5s
`))
	requireT.NoError(err)
	requireT.Equal(BrokerConfig{
		Name:           "main",
		Socket:         Endpoint{Host: "localhost", Port: 7000},
		WebSocket:      Endpoint{Scheme: "ws", Host: "localhost", Port: 7001, Path: "/bus"},
		MaxMessageSize: 4096,
		LogLevel:       wire.LogLevelTraffic,
		Timeout:        5 * time.Second,
	}, config)
}

func TestLoadTransportConfig(t *testing.T) {
	requireT := require.New(t)

	config, err := LoadTransportConfig(strings.NewReader(`
endpoint: "7000"
name: worker
role: 2
timeout: -1s
`))
	requireT.NoError(err)
	requireT.Equal(ConnectorSocket, config.Kind)
	requireT.Equal(Endpoint{Port: 7000}, config.Endpoint)
	requireT.Equal("worker", config.Name)
	requireT.Equal(wire.RoleWorker, config.Role)
	requireT.Equal(-time.Second, config.Timeout)

	config, err = LoadTransportConfig(strings.NewReader(""))
	requireT.NoError(err)
	requireT.Equal(ConnectorSocket, config.Kind)

	_, err = LoadTransportConfig(strings.NewReader("unknown: 1\n"))
	requireT.Error(err)
}

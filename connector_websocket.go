package courier

import (
	"context"
	"net"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// newWebSocketConnector creates connector talking to the broker over WebSocket.
func newWebSocketConnector() *streamConnector {
	return newStreamConnector(ConnectorWebSocket, dialWebSocket)
}

func dialWebSocket(
	ctx context.Context,
	options HandshakeOptions,
	serve func(ctx context.Context, c wireConn) error,
) error {
	dialer := &websocket.Dialer{
		HandshakeTimeout: effectiveTimeout(options.Timeout),
	}
	if options.Endpoint.IsUnix() {
		path := options.Endpoint.Path
		dialer.NetDialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", path)
		}
	}
	if dialer.HandshakeTimeout < 0 {
		dialer.HandshakeTimeout = 0
	}

	conn, resp, err := dialer.DialContext(ctx, options.Endpoint.WebSocketURL(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return errors.Wrapf(err, "dialing %s failed", options.Endpoint.WebSocketURL())
	}

	return serve(ctx, newWebSocketConn(conn, messageSizeLimit(options.MaxMessageSize)))
}

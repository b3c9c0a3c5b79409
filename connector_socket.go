package courier

import (
	"context"
	"net"

	"github.com/pkg/errors"

	"github.com/outofforest/resonance"
)

// newSocketConnector creates connector talking to the broker over TCP or unix socket.
func newSocketConnector() *streamConnector {
	return newStreamConnector(ConnectorSocket, dialSocket)
}

func dialSocket(
	ctx context.Context,
	options HandshakeOptions,
	serve func(ctx context.Context, c wireConn) error,
) error {
	config := resonance.Config{
		MaxMessageSize: messageSizeLimit(options.MaxMessageSize),
	}
	handler := func(ctx context.Context, c *resonance.Connection) error {
		return serve(ctx, newSocketConn(c))
	}

	if !options.Endpoint.IsUnix() {
		return resonance.RunClient(ctx, options.Endpoint.Address(), config, handler)
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", options.Endpoint.Address())
	if err != nil {
		return errors.WithStack(err)
	}
	return runStreamConn(ctx, conn, config, handler)
}

package courier

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/courier/wire"
	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
)

// dialFn opens connection to the broker and runs serve on it until connection breaks.
type dialFn func(ctx context.Context, options HandshakeOptions, serve func(ctx context.Context, c wireConn) error) error

// streamConnector is the connector running over a connection carrying ordered stream of packets.
type streamConnector struct {
	connectorBase

	kind     ConnectorKind
	dial     dialFn
	cancel   context.CancelFunc
	group    *parallel.Group
	finished chan struct{}
}

func newStreamConnector(kind ConnectorKind, dial dialFn) *streamConnector {
	return &streamConnector{
		kind:     kind,
		dial:     dial,
		finished: make(chan struct{}),
	}
}

func (c *streamConnector) Handshake(
	ctx context.Context,
	handler ConnectorHandler,
	options HandshakeOptions,
) (HandshakeResult, error) {
	log := logger.Get(ctx).With(zap.String("connector", string(c.kind)), zap.Stringer("endpoint", options.Endpoint))
	if err := c.beginHandshake(handler, options.Peer, log); err != nil {
		return HandshakeResult{}, err
	}

	ready := make(chan *wire.Handshake, 1)
	exited := make(chan error, 1)
	decided := make(chan struct{})

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.group = parallel.NewGroup(runCtx)
	c.group.Spawn("connection", parallel.Fail, func(ctx context.Context) error {
		defer close(c.finished)

		err := c.dial(ctx, options, func(ctx context.Context, conn wireConn) error {
			return c.serve(ctx, conn, ready)
		})
		if err == nil {
			err = errors.New("connection closed by broker")
		}
		exited <- err

		<-decided
		c.lost(err)
		return nil
	})

	ack, err := c.awaitHandshake(ctx, effectiveTimeout(options.Timeout), ready, exited)
	close(decided)
	if err != nil {
		c.failHandshake()
		cancel()
		_ = c.group.Wait()
		return HandshakeResult{}, err
	}

	log.Debug("Connected to broker", zap.Stringer("broker", ack.Peer))

	return HandshakeResult{
		Peer:     options.Peer,
		Remote:   ack.Peer,
		LogLevel: ack.LogLevel,
	}, nil
}

func (c *streamConnector) Shutdown(ctx context.Context) error {
	return c.shutdown(ctx, func(ctx context.Context) error {
		// Sender closes connection once shutdown command is flushed.
		select {
		case <-c.finished:
		case <-ctx.Done():
		}
		c.cancel()
		if err := c.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			c.log.Debug("Connection terminated with error", zap.Error(err))
		}
		return nil
	})
}

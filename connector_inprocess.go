package courier

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
)

// inProcessConnector binds transport directly to the broker running in the same process.
type inProcessConnector struct {
	connectorBase

	broker  *Broker
	session *Session
	group   *parallel.Group
}

func newInProcessConnector(broker *Broker) *inProcessConnector {
	return &inProcessConnector{broker: broker}
}

func (c *inProcessConnector) Handshake(
	ctx context.Context,
	handler ConnectorHandler,
	options HandshakeOptions,
) (HandshakeResult, error) {
	if c.broker == nil {
		return HandshakeResult{}, connectError(nil, "no broker for in-process connector")
	}

	log := logger.Get(ctx).With(zap.String("connector", string(ConnectorInProcess)))
	if err := c.beginHandshake(handler, options.Peer, log); err != nil {
		return HandshakeResult{}, err
	}

	session, err := c.broker.AddClient(options.Peer, c)
	if err != nil {
		c.failHandshake()
		return HandshakeResult{}, connectError(err, "registering in broker failed")
	}
	c.session = session
	c.completeHandshake()

	c.group = parallel.NewGroup(context.WithoutCancel(ctx))
	c.group.Spawn("pump", parallel.Fail, func(ctx context.Context) error {
		for {
			p, ok := c.queue.Pop(ctx)
			if !ok {
				return nil
			}
			if err := c.session.Post(p); err != nil {
				c.log.Error("Posting to broker failed", zap.String("message", messageKind(p.Message)), zap.Error(err))
			}
		}
	})

	return HandshakeResult{
		Peer:     options.Peer,
		Remote:   c.broker.Peer(),
		LogLevel: c.broker.config.LogLevel,
	}, nil
}

// DeliverPacket is called by broker to deliver packet routed to the peer.
func (c *inProcessConnector) DeliverPacket(p Packet) error {
	if p.Args != nil {
		return c.handler.OnConnectorArgsReceived(p)
	}
	return c.handler.OnConnectorPacketReceived(p)
}

// Disconnected is called by broker when it drops the peer.
func (c *inProcessConnector) Disconnected() {
	// Queue is closed by lost, pump exits then.
	c.lost(errors.New("broker closed"))
}

func (c *inProcessConnector) Shutdown(ctx context.Context) error {
	return c.shutdown(ctx, func(ctx context.Context) error {
		if err := c.group.Wait(); err != nil {
			c.log.Debug("Pump terminated with error", zap.Error(err))
		}
		c.session.Close()
		return nil
	})
}

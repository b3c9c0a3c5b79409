package courier

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/courier/wire"
)

// ConnectorKind selects the wire used by transport.
type ConnectorKind string

// Connector kinds.
const (
	ConnectorSocket    ConnectorKind = "socket"
	ConnectorWebSocket ConnectorKind = "websocket"
	ConnectorInProcess ConnectorKind = "inprocess"
)

// ConnectorStatus is the lifecycle stage of connector.
type ConnectorStatus int

// Connector statuses. Shutdown is terminal, new connector is required to reconnect.
const (
	ConnectorUnconnected ConnectorStatus = iota
	ConnectorHandshaking
	ConnectorConnected
	ConnectorBeforeShutdown
	ConnectorShutdown
)

// HandshakeOptions are passed to connector when connecting.
type HandshakeOptions struct {
	Peer           wire.Peer
	Endpoint       Endpoint
	Timeout        time.Duration
	MaxMessageSize uint64
}

// HandshakeResult is the outcome of successful handshake.
type HandshakeResult struct {
	// Peer is the identity established with the remote end.
	Peer wire.Peer

	// Remote is the identity of the remote end.
	Remote wire.Peer

	// LogLevel is the logging hint received from the remote end.
	LogLevel wire.LogLevel
}

// ConnectorHandler receives events from connector.
type ConnectorHandler interface {
	// OnConnectorPacketReceived is called for packets carrying serialized payload.
	OnConnectorPacketReceived(p Packet) error

	// OnConnectorArgsReceived is called for packets carrying arguments which never left the process.
	OnConnectorArgsReceived(p Packet) error

	// OnConnectorBeforeShutdown is called before connector goes down.
	OnConnectorBeforeShutdown()

	// OnConnectorShutdown is called after connector released the wire.
	OnConnectorShutdown()
}

// Connector establishes identity with the remote end and carries packets over one kind of wire.
type Connector interface {
	// Handshake connects to the remote end.
	Handshake(ctx context.Context, handler ConnectorHandler, options HandshakeOptions) (HandshakeResult, error)

	// PostCommand sends control message.
	PostCommand(msg any) error

	// PostMessage sends message with payload.
	PostMessage(p Packet) error

	// Shutdown notifies handler, flushes shutdown command and releases the wire.
	Shutdown(ctx context.Context) error

	// Status returns lifecycle stage of connector.
	Status() ConnectorStatus
}

// newConnector creates connector of the kind selected in config.
func newConnector(config TransportConfig) (Connector, error) {
	switch config.Kind {
	case ConnectorSocket:
		return newSocketConnector(), nil
	case ConnectorWebSocket:
		return newWebSocketConnector(), nil
	case ConnectorInProcess:
		return newInProcessConnector(config.Broker), nil
	default:
		return nil, errors.Errorf("unknown connector kind %q", config.Kind)
	}
}

// connectorBase implements lifecycle shared by all the connectors.
type connectorBase struct {
	mu      sync.Mutex
	status  ConnectorStatus
	handler ConnectorHandler
	peer    wire.Peer
	log     *zap.Logger
	queue   *fifo[Packet]
}

func (c *connectorBase) Status() ConnectorStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.status
}

func (c *connectorBase) PostCommand(msg any) error {
	return c.post(Packet{Message: msg})
}

func (c *connectorBase) PostMessage(p Packet) error {
	return c.post(p)
}

func (c *connectorBase) beginHandshake(handler ConnectorHandler, peer wire.Peer, log *zap.Logger) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != ConnectorUnconnected {
		return errors.New("connector can't be reused, create new one")
	}
	c.status = ConnectorHandshaking
	c.handler = handler
	c.peer = peer
	c.log = log
	c.queue = newFIFO[Packet](0)
	return nil
}

func (c *connectorBase) completeHandshake() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status = ConnectorConnected
}

// failHandshake makes connector terminal after unsuccessful handshake.
func (c *connectorBase) failHandshake() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status = ConnectorShutdown
	c.closeQueueLocked()
}

func (c *connectorBase) post(p Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.status {
	case ConnectorShutdown:
		return errors.WithStack(ErrShutdown)
	case ConnectorConnected, ConnectorBeforeShutdown:
	default:
		return errors.WithStack(ErrNotConnected)
	}

	if err := c.queue.Push(p); err != nil {
		return errors.Wrap(ErrShutdown, err.Error())
	}
	return nil
}

func (c *connectorBase) closeQueue() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closeQueueLocked()
}

func (c *connectorBase) closeQueueLocked() {
	if c.queue != nil {
		c.queue.Close()
	}
}

// shutdown runs the shutdown choreography: handler is notified, shutdown command is flushed
// to the wire, then wire is released by the release function and handler is notified again.
func (c *connectorBase) shutdown(ctx context.Context, release func(ctx context.Context) error) error {
	c.mu.Lock()
	if c.status != ConnectorConnected {
		c.mu.Unlock()
		return nil
	}
	c.status = ConnectorBeforeShutdown
	c.mu.Unlock()

	c.handler.OnConnectorBeforeShutdown()

	if err := c.PostCommand(&wire.Shutdown{Peer: c.peer}); err != nil {
		c.log.Debug("Delivering shutdown command failed", zap.Error(err))
	}
	c.closeQueue()

	err := release(ctx)

	c.handler.OnConnectorShutdown()

	c.mu.Lock()
	c.status = ConnectorShutdown
	c.mu.Unlock()

	return err
}

// lost runs the shutdown choreography after the wire broke unexpectedly.
func (c *connectorBase) lost(err error) {
	c.mu.Lock()
	if c.status != ConnectorConnected {
		c.mu.Unlock()
		return
	}
	c.status = ConnectorBeforeShutdown
	c.mu.Unlock()

	c.log.Error("Connection to broker lost", zap.Stringer("peer", c.peer), zap.Error(err))

	c.handler.OnConnectorBeforeShutdown()
	c.closeQueue()
	c.handler.OnConnectorShutdown()

	c.mu.Lock()
	c.status = ConnectorShutdown
	c.mu.Unlock()
}

// awaitHandshake waits for the handshake reply, failure of the connection or timeout.
func (c *connectorBase) awaitHandshake(
	ctx context.Context,
	timeout time.Duration,
	ready <-chan *wire.Handshake,
	exited <-chan error,
) (*wire.Handshake, error) {
	var timeoutCh <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case ack := <-ready:
		c.completeHandshake()
		return ack, nil
	case err := <-exited:
		return nil, connectError(err, "connection closed during handshake")
	case <-timeoutCh:
		return nil, connectError(nil, "handshake timed out after %s", timeout)
	case <-ctx.Done():
		return nil, connectError(ctx.Err(), "handshake interrupted")
	}
}

// serve performs handshake on connection and then pumps packets until connection breaks.
func (c *connectorBase) serve(ctx context.Context, conn wireConn, ready chan<- *wire.Handshake) error {
	if err := conn.Send(Packet{Message: &wire.Handshake{Peer: c.peer}}); err != nil {
		conn.Close()
		return err
	}

	p, err := conn.Receive()
	if err != nil {
		conn.Close()
		return err
	}
	ack, ok := p.Message.(*wire.Handshake)
	if !ok {
		conn.Close()
		return errors.Wrapf(ErrProtocolViolation, "handshake expected, got %s", messageKind(p.Message))
	}
	ready <- ack

	return runConn(ctx, conn, c.queue, c.handler.OnConnectorPacketReceived, c.closeQueue)
}

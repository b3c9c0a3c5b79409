package courier

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/outofforest/courier/channels"
	"github.com/outofforest/courier/connstate"
	"github.com/outofforest/courier/wire"
	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/resonance"
)

const brokerQueueSize = 1000

// ClientAdapter receives packets broker routes to the peer added by AddClient or AddBridge.
type ClientAdapter interface {
	// DeliverPacket delivers packet to the peer. Returned error drops the peer.
	DeliverPacket(p Packet) error

	// Disconnected is called when broker drops the peer.
	Disconnected()
}

type connKey uint64

type brokerConn struct {
	key     connKey
	peer    wire.Peer
	bridge  bool
	adapter ClientAdapter
	queue   *fifo[Packet]
}

// close drops packets waiting for delivery. Connection goroutines exit then.
func (c *brokerConn) close() {
	c.queue.Discard()
}

// Session is the binding of peer added to the broker without network connection.
type Session struct {
	broker *Broker
	conn   *brokerConn
}

// Peer returns the peer bound by the session.
func (s *Session) Peer() wire.Peer {
	return s.conn.peer
}

// Post passes packet sent by the peer to the broker.
func (s *Session) Post(p Packet) error {
	return s.broker.handle(s.conn, p)
}

// Close removes the peer from the broker.
func (s *Session) Close() {
	s.broker.unregister(s.conn)
}

// Broker relays messages between connected peers. Messages sent to the channel are delivered
// to its subscribers, addressed messages are delivered to their target only.
type Broker struct {
	config   BrokerConfig
	peer     wire.Peer
	state    connstate.State
	upgrader websocket.Upgrader

	mu            sync.Mutex
	log           *zap.Logger
	running       bool
	cancel        context.CancelFunc
	stopped       chan struct{}
	stopErr       error
	socketAddr    net.Addr
	webSocketAddr net.Addr
	nextKey       connKey
	conns         map[connKey]*brokerConn
	peers         map[wire.PeerID]*brokerConn
	bridges       map[connKey]*brokerConn
	subscriptions *channels.Registry[connKey, *brokerConn]
}

// NewBroker creates new broker.
func NewBroker(config BrokerConfig) (*Broker, error) {
	name := config.Name
	if name == "" {
		name = "broker"
	}
	peer, err := NewPeer(PeerOptions{
		Role: wire.RoleNative,
		Name: name,
	})
	if err != nil {
		return nil, err
	}

	return &Broker{
		config: config,
		peer:   peer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log:           zap.NewNop(),
		conns:         map[connKey]*brokerConn{},
		peers:         map[wire.PeerID]*brokerConn{},
		bridges:       map[connKey]*brokerConn{},
		subscriptions: channels.New[connKey, *brokerConn](channels.Hooks[connKey]{}),
	}, nil
}

// Peer returns identity of the broker.
func (b *Broker) Peer() wire.Peer {
	return b.peer
}

// Status returns connection status of the broker.
func (b *Broker) Status() connstate.Status {
	return b.state.Status()
}

// SocketAddr returns address of the socket listener.
func (b *Broker) SocketAddr() net.Addr {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.socketAddr
}

// WebSocketAddr returns address of the WebSocket listener.
func (b *Broker) WebSocketAddr() net.Addr {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.webSocketAddr
}

// Connect binds listeners and starts accepting peers.
func (b *Broker) Connect(ctx context.Context) error {
	return b.state.Connect(ctx, b.listen)
}

// Close drops all the peers and closes listeners.
func (b *Broker) Close(ctx context.Context) error {
	return b.state.Close(ctx, func(ctx context.Context) error {
		b.mu.Lock()
		cancel := b.cancel
		stopped := b.stopped
		b.mu.Unlock()

		cancel()
		b.reset()

		select {
		case <-stopped:
		case <-ctx.Done():
			select {
			case <-stopped:
			default:
				return errors.WithStack(ctx.Err())
			}
		}

		b.mu.Lock()
		defer b.mu.Unlock()

		return b.stopErr
	})
}

// AddClient adds peer which is not connected over network. Packets routed to the peer are passed
// to the adapter.
func (b *Broker) AddClient(peer wire.Peer, adapter ClientAdapter) (*Session, error) {
	return b.addSession(peer, adapter, false)
}

// AddBridge adds bridge peer. Bridge receives every message sent to any channel and messages
// addressed to it.
func (b *Broker) AddBridge(peer wire.Peer, adapter ClientAdapter) (*Session, error) {
	return b.addSession(peer, adapter, true)
}

// State returns snapshot of subscriptions.
func (b *Broker) State() []wire.ChannelState {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.snapshotLocked()
}

func (b *Broker) listen(ctx context.Context) (retErr error) {
	log := logger.Get(ctx).With(zap.Stringer("broker", b.peer))

	listenCtx := ctx
	if timeout := effectiveTimeout(b.config.Timeout); timeout >= 0 {
		var cancel context.CancelFunc
		listenCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var lc net.ListenConfig
	var socketLs, webSocketLs net.Listener
	defer func() {
		if retErr == nil {
			return
		}
		if socketLs != nil {
			retErr = multierr.Append(retErr, errors.WithStack(socketLs.Close()))
		}
		if webSocketLs != nil {
			retErr = multierr.Append(retErr, errors.WithStack(webSocketLs.Close()))
		}
	}()

	if !b.config.Socket.IsZero() {
		var err error
		socketLs, err = lc.Listen(listenCtx, b.config.Socket.Network(), b.config.Socket.Address())
		if err != nil {
			return connectError(err, "binding socket endpoint %s failed", b.config.Socket)
		}
	}
	if !b.config.WebSocket.IsZero() {
		var err error
		webSocketLs, err = lc.Listen(listenCtx, b.config.WebSocket.Network(), b.config.WebSocket.Address())
		if err != nil {
			return connectError(err, "binding WebSocket endpoint %s failed", b.config.WebSocket)
		}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	group := parallel.NewGroup(runCtx)
	stopped := make(chan struct{})

	b.mu.Lock()
	b.log = log
	b.running = true
	b.cancel = cancel
	b.stopped = stopped
	b.stopErr = nil
	b.socketAddr = nil
	b.webSocketAddr = nil
	if socketLs != nil {
		b.socketAddr = socketLs.Addr()
	}
	if webSocketLs != nil {
		b.webSocketAddr = webSocketLs.Addr()
	}
	b.mu.Unlock()

	group.Spawn("lifetime", parallel.Fail, func(ctx context.Context) error {
		<-ctx.Done()
		return errors.WithStack(ctx.Err())
	})

	if socketLs != nil {
		ls := socketLs
		unix := b.config.Socket.IsUnix()
		group.Spawn("socket", parallel.Fail, func(ctx context.Context) error {
			defer cancel()

			config := resonance.Config{
				MaxMessageSize: messageSizeLimit(b.config.MaxMessageSize),
			}
			handler := func(ctx context.Context, c *resonance.Connection) error {
				b.serveConn(ctx, newSocketConn(c))
				return nil
			}

			var err error
			if unix {
				err = acceptStreams(ctx, ls, config, handler)
			} else {
				err = resonance.RunServer(ctx, ls, config, handler)
			}
			if ctx.Err() != nil {
				return errors.WithStack(ctx.Err())
			}
			return err
		})
		group.Spawn("socketCloser", parallel.Fail, func(ctx context.Context) error {
			<-ctx.Done()
			if err := ls.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				return errors.WithStack(err)
			}
			return errors.WithStack(ctx.Err())
		})
	}

	if webSocketLs != nil {
		ls := webSocketLs
		server := &http.Server{
			Handler:           http.HandlerFunc(b.serveWebSocket),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext: func(net.Listener) context.Context {
				return runCtx
			},
		}
		group.Spawn("websocket", parallel.Fail, func(ctx context.Context) error {
			defer cancel()

			err := server.Serve(ls)
			if errors.Is(err, http.ErrServerClosed) {
				return errors.WithStack(ctx.Err())
			}
			return errors.WithStack(err)
		})
		group.Spawn("websocketCloser", parallel.Fail, func(ctx context.Context) error {
			<-ctx.Done()
			return errors.WithStack(server.Close())
		})
	}

	go func() {
		err := group.Wait()
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		if err != nil {
			log.Error("Broker failed", zap.Error(err))
		}

		b.reset()
		b.state.Reset()

		b.mu.Lock()
		b.stopErr = err
		b.mu.Unlock()

		close(stopped)
	}()

	log.Info("Broker started", zap.Stringer("socket", b.config.Socket), zap.Stringer("webSocket", b.config.WebSocket))
	return nil
}

// reset drops all the peers and subscriptions. Peers are not notified.
func (b *Broker) reset() {
	b.mu.Lock()
	conns := b.conns
	b.running = false
	b.conns = map[connKey]*brokerConn{}
	b.peers = map[wire.PeerID]*brokerConn{}
	b.bridges = map[connKey]*brokerConn{}
	b.subscriptions.Clear()
	for _, conn := range conns {
		conn.close()
	}
	b.mu.Unlock()

	for _, conn := range conns {
		if conn.adapter != nil {
			conn.adapter.Disconnected()
		}
	}
}

func (b *Broker) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Get(r.Context()).Debug("WebSocket upgrade failed", zap.Error(err))
		return
	}
	b.serveConn(r.Context(), newWebSocketConn(conn, messageSizeLimit(b.config.MaxMessageSize)))
}

// serveConn runs the connection of the peer. Errors are logged, they never stop the broker.
func (b *Broker) serveConn(ctx context.Context, c wireConn) {
	log := logger.Get(ctx)

	p, err := c.Receive()
	if err != nil {
		c.Close()
		log.Debug("Receiving handshake failed", zap.Error(err))
		return
	}
	hs, ok := p.Message.(*wire.Handshake)
	if !ok {
		c.Close()
		log.Error("Handshake expected", zap.String("message", messageKind(p.Message)))
		return
	}

	log = log.With(zap.Stringer("peer", hs.Peer))

	conn, err := b.register(hs.Peer, nil, false)
	if err != nil {
		c.Close()
		log.Debug("Registering peer failed", zap.Error(err))
		return
	}

	if err := c.Send(Packet{Message: &wire.Handshake{
		Peer:     b.peer,
		LogLevel: b.config.LogLevel,
	}}); err != nil {
		b.unregister(conn)
		c.Close()
		log.Debug("Sending handshake failed", zap.Error(err))
		return
	}

	log.Debug("Peer connected")

	err = runConn(ctx, c, conn.queue, func(p Packet) error {
		return b.handle(conn, p)
	}, func() {
		b.unregister(conn)
	})

	switch {
	case ctx.Err() != nil:
	case errors.Is(err, ErrProtocolViolation):
		log.Error("Peer violated protocol", zap.Error(err))
	default:
		log.Debug("Peer disconnected", zap.Error(err))
	}
}

func (b *Broker) addSession(peer wire.Peer, adapter ClientAdapter, bridge bool) (*Session, error) {
	conn, err := b.register(peer, adapter, bridge)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	log := b.log.With(zap.Stringer("peer", peer))
	b.mu.Unlock()

	go func() {
		for {
			p, ok := conn.queue.Pop(context.Background())
			if !ok {
				return
			}
			if err := adapter.DeliverPacket(p); err != nil {
				log.Error("Delivering packet failed, dropping peer", zap.Error(err))
				if b.unregister(conn) {
					adapter.Disconnected()
				}
			}
		}
	}()

	log.Debug("Peer added", zap.Bool("bridge", bridge))
	return &Session{broker: b, conn: conn}, nil
}

func (b *Broker) register(peer wire.Peer, adapter ClientAdapter, bridge bool) (*brokerConn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return nil, errors.WithStack(ErrNotConnected)
	}

	b.nextKey++
	conn := &brokerConn{
		key:     b.nextKey,
		peer:    peer,
		bridge:  bridge,
		adapter: adapter,
		queue:   newFIFO[Packet](brokerQueueSize),
	}
	b.conns[conn.key] = conn
	b.peers[peer.ID] = conn
	if bridge {
		b.bridges[conn.key] = conn
	}
	return conn, nil
}

// unregister removes the connection. It returns false if connection has been already removed.
func (b *Broker) unregister(conn *brokerConn) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.unregisterLocked(conn)
}

func (b *Broker) unregisterLocked(conn *brokerConn) bool {
	conn.close()
	if b.conns[conn.key] != conn {
		return false
	}
	delete(b.conns, conn.key)
	b.removePeerLocked(conn)
	return true
}

func (b *Broker) removePeerLocked(conn *brokerConn) {
	b.subscriptions.RemoveKey(conn.key)
	delete(b.bridges, conn.key)
	if b.peers[conn.peer.ID] == conn {
		delete(b.peers, conn.peer.ID)
	}
}

// handle routes packet received from the peer. Peers whose queue is full are dropped,
// routing never waits for them.
func (b *Broker) handle(conn *brokerConn, p Packet) error {
	var dropped []*brokerConn

	b.mu.Lock()
	err := b.routeLocked(conn, p, &dropped)
	b.mu.Unlock()

	for _, c := range dropped {
		if c.adapter != nil {
			c.adapter.Disconnected()
		}
	}
	return err
}

func (b *Broker) routeLocked(conn *brokerConn, p Packet, dropped *[]*brokerConn) error {
	if b.conns[conn.key] != conn {
		return errors.WithStack(ErrNotConnected)
	}

	if b.config.LogLevel >= wire.LogLevelTraffic {
		b.log.Debug("Routing", zap.Stringer("peer", conn.peer), zap.String("message", messageKind(p.Message)))
	}

	switch msg := p.Message.(type) {
	case *wire.AddChannelListener:
		b.subscriptions.AddRef(msg.Channel, conn.key, conn, 1)
	case *wire.RemoveChannelListener:
		b.subscriptions.Release(msg.Channel, conn.key)
	case *wire.RemoveChannelAllListeners:
		b.subscriptions.ReleaseAll(msg.Channel, conn.key)
	case *wire.RemoveListeners:
		b.subscriptions.RemoveKey(conn.key)
	case *wire.SendMessage:
		if !msg.Target.IsZero() {
			b.deliverToLocked(msg.Target, p, dropped)
			return nil
		}
		b.subscriptions.ForEachSubscriber(msg.Channel, func(sub channels.Subscriber[connKey, *brokerConn]) {
			if sub.Key != conn.key && !sub.Payload.bridge {
				b.deliverLocked(sub.Payload, p, dropped)
			}
		})
		for key, bridge := range b.bridges {
			if key != conn.key {
				b.deliverLocked(bridge, p, dropped)
			}
		}
	case *wire.RequestResponse:
		b.deliverToLocked(msg.Target, p, dropped)
	case *wire.QueryState:
		// Every peer receives the snapshot, the target field tells the requester which one is its.
		response := Packet{Message: &wire.QueryStateResponse{
			Peer:      b.peer,
			Target:    msg.Peer.ID,
			RequestID: msg.RequestID,
			Channels:  b.snapshotLocked(),
		}}
		for _, c := range b.conns {
			b.deliverLocked(c, response, dropped)
		}
	case *wire.Shutdown:
		b.removePeerLocked(conn)
		b.log.Debug("Peer shut down", zap.Stringer("peer", conn.peer))
	default:
		return errors.Wrapf(ErrProtocolViolation, "unexpected message %s", messageKind(p.Message))
	}
	return nil
}

func (b *Broker) deliverToLocked(target wire.PeerID, p Packet, dropped *[]*brokerConn) {
	conn, exists := b.peers[target]
	if !exists {
		b.log.Debug("Message to unknown peer dropped", zap.Stringer("target", target),
			zap.String("message", messageKind(p.Message)))
		return
	}
	b.deliverLocked(conn, p, dropped)
}

// deliverLocked queues packet for the peer. Peer not keeping up with its queue is disconnected.
func (b *Broker) deliverLocked(conn *brokerConn, p Packet, dropped *[]*brokerConn) {
	err := conn.queue.Push(p)
	if err == nil || !errors.Is(err, errQueueFull) {
		return
	}

	b.log.Error("Peer is too slow, disconnecting", zap.Stringer("peer", conn.peer), zap.Error(err))
	if b.unregisterLocked(conn) {
		*dropped = append(*dropped, conn)
	}
}

func (b *Broker) snapshotLocked() []wire.ChannelState {
	channelList := b.subscriptions.Channels()
	result := make([]wire.ChannelState, 0, len(channelList))
	for _, channel := range channelList {
		state := wire.ChannelState{Channel: channel}
		b.subscriptions.ForEachSubscriber(channel, func(sub channels.Subscriber[connKey, *brokerConn]) {
			state.Subscribers = append(state.Subscribers, wire.SubscriberState{
				Peer:     sub.Payload.peer,
				RefCount: uint64(sub.RefCount),
			})
		})
		result = append(result, state)
	}
	return result
}

// acceptStreams serves connections accepted on the listener resonance.RunServer can't handle,
// like unix socket. It returns once listener is closed.
func acceptStreams(
	ctx context.Context,
	ls net.Listener,
	config resonance.Config,
	handler func(ctx context.Context, c *resonance.Connection) error,
) error {
	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("listener", parallel.Fail, func(ctx context.Context) error {
			for {
				conn, err := ls.Accept()
				if err != nil {
					return errors.WithStack(err)
				}
				spawn("client", parallel.Continue, func(ctx context.Context) error {
					if err := runStreamConn(ctx, conn, config, handler); err != nil {
						logger.Get(ctx).Debug("Connection closed", zap.Error(err))
					}
					return nil
				})
			}
		})
		return nil
	})
}

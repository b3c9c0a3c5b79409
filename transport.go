package courier

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/courier/channels"
	"github.com/outofforest/courier/codec"
	"github.com/outofforest/courier/connstate"
	"github.com/outofforest/courier/wire"
	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
)

// inboundEvent is the message received from the wire, waiting for local listeners.
type inboundEvent struct {
	channel   string
	sender    wire.Peer
	payload   Payload
	responder *Responder
}

// LocalSubscription is the subscription of local client to the channel.
type LocalSubscription struct {
	Channel  string
	ClientID uint64
	RefCount int
}

// Transport is shared by the clients living in one process. It delivers messages to local listeners
// before they reach the wire, and correlates responses with outstanding requests.
type Transport struct {
	config     TransportConfig
	serializer codec.Serializer
	passArgs   bool
	state      connstate.State
	attachMu   sync.Mutex

	mu            sync.Mutex
	log           *zap.Logger
	logLevel      wire.LogLevel
	peer          wire.Peer
	remote        wire.Peer
	connector     Connector
	connected     bool
	clients       map[uint64]*Client
	subscriptions *channels.Registry[uint64, *Client]
	postCommand   func(msg any) error
	postMessage   func(p Packet) error
	inbox         *fifo[inboundEvent]

	requests      *requestTable
	nextRequestID atomic.Uint64
	nextClientID  atomic.Uint64
	nextListener  atomic.Uint64
}

// NewTransport creates new transport.
func NewTransport(config TransportConfig) (*Transport, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	t := &Transport{
		config:     config,
		serializer: config.Serializer,
		passArgs:   config.Kind == ConnectorInProcess,
		log:        zap.NewNop(),
		clients:    map[uint64]*Client{},
		requests:   newRequestTable(),
	}
	if t.serializer == nil {
		t.serializer = codec.Msgpack{}
	}
	t.subscriptions = channels.New[uint64, *Client](channels.Hooks[uint64]{
		ChannelAdded:   t.onChannelAdded,
		ChannelRemoved: t.onChannelRemoved,
	})
	t.postCommand = t.deadPostCommand
	t.postMessage = t.deadPostMessage

	return t, nil
}

// Peer returns identity of the transport. It is minted on every connection.
func (t *Transport) Peer() wire.Peer {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.peer
}

// Broker returns identity of the broker transport is connected to.
func (t *Transport) Broker() wire.Peer {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.remote
}

// Status returns connection status of the transport.
func (t *Transport) Status() connstate.Status {
	return t.state.Status()
}

// LocalState returns subscriptions of local clients.
func (t *Transport) LocalState() []LocalSubscription {
	t.mu.Lock()
	defer t.mu.Unlock()

	var result []LocalSubscription
	for _, channel := range t.subscriptions.Channels() {
		t.subscriptions.ForEachSubscriber(channel, func(sub channels.Subscriber[uint64, *Client]) {
			result = append(result, LocalSubscription{
				Channel:  channel,
				ClientID: sub.Key,
				RefCount: sub.RefCount,
			})
		})
	}
	return result
}

// OnConnectorPacketReceived handles packet received from the wire.
func (t *Transport) OnConnectorPacketReceived(p Packet) error {
	return t.receive(p.Message, Payload{raw: p.Payload, serializer: t.serializer})
}

// OnConnectorArgsReceived handles packet whose arguments never left the process.
func (t *Transport) OnConnectorArgsReceived(p Packet) error {
	return t.receive(p.Message, Payload{values: p.Args, serializer: t.serializer})
}

// OnConnectorBeforeShutdown cancels all the outstanding requests.
func (t *Transport) OnConnectorBeforeShutdown() {
	for _, d := range t.requests.All() {
		d.Reject(errors.Wrapf(ErrRequestCancelled, "request %d on channel %q", d.ID(), d.Channel()))
	}
}

// OnConnectorShutdown disables posting and detaches all the clients.
func (t *Transport) OnConnectorShutdown() {
	t.mu.Lock()
	t.connected = false
	t.postCommand = t.deadPostCommand
	t.postMessage = t.deadPostMessage
	t.subscriptions.Clear()
	clients := t.clients
	t.clients = map[uint64]*Client{}
	inbox := t.inbox
	t.mu.Unlock()

	if inbox != nil {
		inbox.Discard()
	}

	for _, c := range clients {
		c.state.Reset()
	}
	t.state.Reset()
}

func (t *Transport) attach(ctx context.Context, c *Client) error {
	t.attachMu.Lock()
	defer t.attachMu.Unlock()

	if err := t.state.Connect(ctx, t.connect); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		return errors.WithStack(ErrNotConnected)
	}

	t.clients[c.id] = c
	for _, l := range c.listeners {
		t.subscriptions.AddRef(l.channel, c.id, c, 1)
	}
	return nil
}

func (t *Transport) detach(ctx context.Context, c *Client) error {
	t.attachMu.Lock()
	defer t.attachMu.Unlock()

	t.mu.Lock()
	if _, exists := t.clients[c.id]; !exists {
		t.mu.Unlock()
		return nil
	}
	delete(t.clients, c.id)
	t.subscriptions.RemoveKey(c.id)
	last := len(t.clients) == 0
	t.mu.Unlock()

	for _, d := range t.requests.Owned(c.id) {
		d.Reject(errors.Wrapf(ErrRequestCancelled, "request %d on channel %q", d.ID(), d.Channel()))
	}

	if !last {
		return nil
	}
	return t.state.Close(ctx, t.disconnect)
}

func (t *Transport) connect(ctx context.Context) error {
	peer, err := NewPeer(PeerOptions{
		Role:      t.config.Role,
		Name:      t.config.Name,
		RoutingID: t.config.RoutingID,
		FrameID:   t.config.FrameID,
	})
	if err != nil {
		return connectError(err, "creating peer failed")
	}

	connector, err := newConnector(t.config)
	if err != nil {
		return connectError(err, "creating connector failed")
	}

	log := logger.Get(ctx).With(zap.Stringer("peer", peer))

	// Listeners run on the dispatcher so receiver is free to read responses to requests
	// sent by listeners. Dispatcher exits once inbox is discarded on shutdown.
	inbox := newFIFO[inboundEvent](0)
	dispatcher := parallel.NewGroup(context.WithoutCancel(ctx))
	dispatcher.Spawn("dispatcher", parallel.Fail, func(ctx context.Context) error {
		for {
			e, ok := inbox.Pop(ctx)
			if !ok {
				return nil
			}
			t.dispatch(e.channel, e.sender, e.payload, e.responder)
		}
	})

	t.mu.Lock()
	t.log = log
	t.peer = peer
	t.connector = connector
	t.inbox = inbox
	t.mu.Unlock()

	result, err := connector.Handshake(ctx, t, HandshakeOptions{
		Peer:           peer,
		Endpoint:       t.config.Endpoint,
		Timeout:        t.config.Timeout,
		MaxMessageSize: t.config.MaxMessageSize,
	})
	if err != nil {
		inbox.Discard()
		_ = dispatcher.Wait()
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.remote = result.Remote
	t.logLevel = result.LogLevel
	t.postCommand = connector.PostCommand
	t.postMessage = connector.PostMessage
	t.connected = true

	log.Debug("Transport connected", zap.Stringer("broker", result.Remote), zap.Uint64("logLevel", uint64(result.LogLevel)))
	return nil
}

func (t *Transport) disconnect(ctx context.Context) error {
	t.mu.Lock()
	connector := t.connector
	log := t.log
	t.mu.Unlock()

	if err := connector.Shutdown(ctx); err != nil {
		return err
	}

	log.Debug("Transport disconnected")
	return nil
}

// send delivers message to local listeners and then to the wire. Zero target means broadcast,
// target equal to the transport's peer means local delivery only.
func (t *Transport) send(channel string, target wire.PeerID, args []any) error {
	peer, connected := t.current()
	if !connected {
		return errors.WithStack(ErrNotConnected)
	}

	if target.IsZero() || target == peer.ID {
		t.dispatch(channel, peer, Payload{values: args, serializer: t.serializer}, nil)
	}
	if target == peer.ID {
		return nil
	}

	return t.post(&wire.SendMessage{
		Channel: channel,
		Peer:    peer,
		Target:  target,
	}, args)
}

// request delivers request to local listeners first and falls back to the wire
// if none of them settled it.
func (t *Transport) request(
	ctx context.Context,
	owner uint64,
	channel string,
	target wire.PeerID,
	timeout time.Duration,
	args []any,
) (Result, error) {
	peer, connected := t.current()
	if !connected {
		return Result{}, errors.WithStack(ErrNotConnected)
	}

	d := newDeferredRequest(wire.RequestID(t.nextRequestID.Add(1)), channel, owner)
	t.requests.Add(d)

	if target.IsZero() || target == peer.ID {
		t.dispatch(channel, peer, Payload{values: args, serializer: t.serializer}, t.localResponder(d))
	}

	if !d.IsSettled() && target != peer.ID {
		if err := t.post(&wire.SendMessage{
			Channel:   channel,
			Peer:      peer,
			Target:    target,
			IsRequest: true,
			Request: wire.RequestDescriptor{
				ID:      d.ID(),
				Channel: channel,
			},
		}, args); err != nil {
			d.Reject(err)
		}
	}

	d.armTimeout(effectiveTimeout(timeout))

	payload, err := d.Wait(ctx)
	if err != nil {
		return Result{}, err
	}
	return Result{Payload: payload}, nil
}

func (t *Transport) queryState(ctx context.Context, owner uint64) ([]wire.ChannelState, error) {
	peer, connected := t.current()
	if !connected {
		return nil, errors.WithStack(ErrNotConnected)
	}

	d := newDeferredRequest(wire.RequestID(t.nextRequestID.Add(1)), "", owner)
	t.requests.Add(d)

	if err := t.command(&wire.QueryState{
		Peer:      peer,
		RequestID: d.ID(),
	}); err != nil {
		d.Reject(err)
	}
	d.armTimeout(DefaultTimeout)

	payload, err := d.Wait(ctx)
	if err != nil {
		return nil, err
	}
	states, _ := payload.values[0].([]wire.ChannelState)
	return states, nil
}

func (t *Transport) localResponder(d *DeferredRequest) *Responder {
	return &Responder{
		id:      d.ID(),
		channel: d.Channel(),
		resolve: func(value any) {
			d.Resolve(Payload{values: []any{value}, serializer: t.serializer})
		},
		reject: func(err error) {
			d.Reject(err)
		},
	}
}

func (t *Transport) remoteResponder(msg *wire.SendMessage) *Responder {
	respond := func(value any, rejected bool) {
		peer, connected := t.current()
		if !connected {
			return
		}
		if err := t.post(&wire.RequestResponse{
			Channel: msg.Request.Channel,
			Peer:    peer,
			Target:  msg.Peer.ID,
			Request: wire.RequestDescriptor{
				ID:       msg.Request.ID,
				Channel:  msg.Request.Channel,
				Rejected: rejected,
			},
		}, []any{value}); err != nil {
			t.logger().Error("Sending response failed", zap.String("channel", msg.Request.Channel), zap.Error(err))
		}
	}

	return &Responder{
		id:      msg.Request.ID,
		channel: msg.Request.Channel,
		resolve: func(value any) {
			respond(value, false)
		},
		reject: func(err error) {
			respond(err.Error(), true)
		},
	}
}

func (t *Transport) receive(msg any, payload Payload) error {
	t.traffic("in", msg, payload)

	peer, _ := t.current()

	switch msg := msg.(type) {
	case *wire.SendMessage:
		if !msg.Target.IsZero() && msg.Target != peer.ID {
			return nil
		}
		var responder *Responder
		if msg.IsRequest {
			responder = t.remoteResponder(msg)
		}
		t.mu.Lock()
		inbox := t.inbox
		t.mu.Unlock()
		if err := inbox.Push(inboundEvent{
			channel:   msg.Channel,
			sender:    msg.Peer,
			payload:   payload,
			responder: responder,
		}); err != nil {
			t.logger().Debug("Message received after shutdown dropped", zap.String("channel", msg.Channel))
		}
	case *wire.RequestResponse:
		if msg.Target != peer.ID {
			return nil
		}
		d := t.requests.Get(msg.Request.ID)
		if d == nil {
			t.logger().Debug("Response to unknown request dropped", zap.Uint64("requestID", uint64(msg.Request.ID)))
			return nil
		}
		if !msg.Request.Rejected {
			d.Resolve(payload)
			return nil
		}
		var reason string
		if err := payload.Decode(&reason); err != nil {
			reason = "request rejected"
		}
		d.Reject(&RemoteError{Message: reason})
	case *wire.QueryStateResponse:
		if msg.Target != peer.ID {
			return nil
		}
		if d := t.requests.Get(msg.RequestID); d != nil {
			d.Resolve(Payload{values: []any{msg.Channels}, serializer: t.serializer})
		}
	default:
		return errors.Wrapf(ErrProtocolViolation, "unexpected message %s", messageKind(msg))
	}
	return nil
}

type listenerCall struct {
	client *Client
	fn     Listener
}

// dispatch invokes local listeners of the channel in registration order. It returns true
// if any listener was called.
func (t *Transport) dispatch(channel string, sender wire.Peer, payload Payload, responder *Responder) bool {
	t.mu.Lock()
	var calls []listenerCall
	t.subscriptions.ForEachSubscriber(channel, func(sub channels.Subscriber[uint64, *Client]) {
		for _, l := range sub.Payload.takeListeners(channel) {
			calls = append(calls, listenerCall{client: sub.Payload, fn: l.fn})
		}
	})
	t.mu.Unlock()

	for _, call := range calls {
		call.fn(&Event{
			Payload: payload,
			Channel: channel,
			Sender:  sender,
			Request: responder,
			Client:  call.client,
		})
	}
	return len(calls) > 0
}

func (t *Transport) post(msg any, args []any) error {
	if args == nil {
		args = []any{}
	}
	payload, err := t.serializer.Marshal(args)
	if err != nil {
		return err
	}

	p := Packet{Message: msg, Payload: payload}
	if t.passArgs {
		p.Args = args
	}

	t.mu.Lock()
	postMessage := t.postMessage
	t.mu.Unlock()

	t.traffic("out", msg, Payload{values: args})
	return postMessage(p)
}

func (t *Transport) command(msg any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.commandLocked(msg)
}

func (t *Transport) commandLocked(msg any) error {
	if t.logLevel >= wire.LogLevelTraffic {
		t.log.Debug("Command", zap.String("message", messageKind(msg)))
	}
	return t.postCommand(msg)
}

func (t *Transport) onChannelAdded(channel string) {
	if !t.connected {
		return
	}
	if err := t.commandLocked(&wire.AddChannelListener{Channel: channel, Peer: t.peer}); err != nil {
		t.log.Error("Subscribing to channel failed", zap.String("channel", channel), zap.Error(err))
	}
}

func (t *Transport) onChannelRemoved(channel string) {
	if !t.connected {
		return
	}
	if err := t.commandLocked(&wire.RemoveChannelListener{Channel: channel, Peer: t.peer}); err != nil {
		t.log.Error("Unsubscribing from channel failed", zap.String("channel", channel), zap.Error(err))
	}
}

func (t *Transport) deadPostCommand(msg any) error {
	t.log.Error("Command posted while transport is not connected", zap.String("message", messageKind(msg)))
	return errors.WithStack(ErrNotConnected)
}

func (t *Transport) deadPostMessage(p Packet) error {
	t.log.Error("Message posted while transport is not connected", zap.String("message", messageKind(p.Message)))
	return errors.WithStack(ErrNotConnected)
}

func (t *Transport) current() (wire.Peer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.peer, t.connected
}

func (t *Transport) logger() *zap.Logger {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.log
}

func (t *Transport) traffic(direction string, msg any, payload Payload) {
	t.mu.Lock()
	level := t.logLevel
	log := t.log
	t.mu.Unlock()

	if level < wire.LogLevelTraffic {
		return
	}

	fields := []zap.Field{
		zap.String("direction", direction),
		zap.String("message", messageKind(msg)),
	}
	if level >= wire.LogLevelArgs {
		if args, err := payload.Args(); err == nil {
			fields = append(fields, zap.Any("args", args))
		}
	}
	log.Debug("Traffic", fields...)
}
